package core

import "lightdim/regs"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures a noteworthy control-path event for post-mortem analysis
type Event struct {
	Type   uint8  // Event type code
	Index  uint8  // Timer channel or converter slot
	Seq    uint32 // Interrupt or iteration count at the event
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSpuriousIRQ       = 1 // PIT interrupt with no channel flag set
	EvtConversionTimeout = 2 // COCO never rose within the wait budget
	EvtDutyChange        = 3 // Controller picked a new duty
	EvtConfigRejected    = 4 // Invalid channel/slot/config, no write issued
	EvtChannelRewritten  = 5 // Reserved input code replaced by the disabled sentinel
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer, written from both the ISR and the control loop
	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventCount    uint32
	eventClears   uint32

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, stdout, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call it from the tick callback; use DebugAsync or RecordEvent.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugEnabled && debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordEvent captures an event in the ring buffer. Safe from interrupt
// context: it never blocks and never allocates.
func RecordEvent(eventType, index uint8, value1, value2 uint32) {
	state := disableInterrupts()
	eventCount++
	idx := eventRingHead
	eventRing[idx] = Event{
		Type:   eventType,
		Index:  index,
		Seq:    eventCount,
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
	restoreInterrupts(state)
}

// Events returns the ring contents from oldest to newest, skipping empty
// slots.
func Events() []Event {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Type == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns the short name printed for an event type.
func EventName(t uint8) string {
	switch t {
	case EvtSpuriousIRQ:
		return "SPURIOUS_IRQ"
	case EvtConversionTimeout:
		return "ADC_TIMEOUT"
	case EvtDutyChange:
		return "DUTY"
	case EvtConfigRejected:
		return "CFG_REJECT"
	case EvtChannelRewritten:
		return "CH_REWRITE"
	}
	return "UNKNOWN"
}

// DumpEventRing outputs the event ring (call on shutdown/error, never from
// the ISR)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENT] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENT] " + EventName(evt.Type) +
			" idx=" + itoa(int(evt.Index)) +
			" seq=" + utoa(evt.Seq) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENT] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	state := disableInterrupts()
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
	eventCount = 0
	eventClears++
	restoreInterrupts(state)
}

// EventRingGeneration counts ClearEventRing calls. Sequence numbers
// restart at 1 after each clear.
func EventRingGeneration() uint32 {
	state := disableInterrupts()
	g := eventClears
	restoreInterrupts(state)
	return g
}

// GateRegisters are the SIM registers safe to read at any time: they show
// which peripheral clocks were on when something failed.
var GateRegisters = []*regs.Register{&regs.SIM_SCGC4, &regs.SIM_SCGC5, &regs.SIM_SCGC6, &regs.SIM_SOPT2}

// DumpRegisters prints each register's raw value. A register behind an
// ungated clock faults when read, so pass only registers whose peripheral
// is known to be clocked.
func DumpRegisters(bus regs.Bus, rs ...*regs.Register) {
	if debugPrintln == nil {
		return
	}
	for _, r := range rs {
		debugPrintln("[REG] " + r.Name + "=" + hex32(r.Value(bus)))
	}
}
