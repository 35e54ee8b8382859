package core

import (
	"io"
	"time"

	"lightdim/protocol"
	"lightdim/regs"
)

// txQueueSize holds a telemetry report plus a full event ring.
const txQueueSize = 1024

// TryWriter accepts as many bytes as it can take without waiting. The UART
// implements it; telemetry sent to one is queued and drained a little on
// every control step.
type TryWriter interface {
	TryWrite(p []byte) int
}

// PinPort is what the dimmer needs from the pin driver: setup plus output.
type PinPort interface {
	PinConfigurator
	PinDriver
}

// Dimmer owns every piece of the control core: the PIT scheduler, the ADC
// sequencer, the tick counter and the control loop. Nothing in the
// control path is package state, so several dimmers can run side by side
// against separate simulated boards.
type Dimmer struct {
	gates ClockGater
	pins  PinPort
	irq   IRQController

	sched *Scheduler
	seq   *Sequencer
	ticks TickCounter

	sensor *LightSensor
	led    *LED
	ctrl   *Controller
	timer  uint8
	pause  time.Duration

	telemetry io.Writer
	tx        TryWriter
	txq       *protocol.FifoBuffer
	every     uint32
	enc       protocol.Encoder
	scratch   protocol.ScratchOutput
	lastEvent uint32
	eventGen  uint32
	steps     uint32
	dropped   uint32
}

// NewDimmer returns an uninitialised dimmer on bus. Clock gating and pin
// setup go through the KL46Z SIM and PORT registers on the same bus.
func NewDimmer(bus regs.Bus, irq IRQController) *Dimmer {
	return &Dimmer{
		gates: NewClockGates(bus),
		pins:  NewPins(bus),
		irq:   irq,
		sched: NewScheduler(bus),
		seq:   NewSequencer(bus),
	}
}

// SetTelemetry directs status frames to w. Call before Init; nil disables.
// When w is also a TryWriter frames are queued and the control loop never
// waits on it; a frame that does not fit the queue is dropped.
func (d *Dimmer) SetTelemetry(w io.Writer) {
	d.telemetry = w
	d.tx, _ = w.(TryWriter)
	if d.tx != nil && d.txq == nil {
		d.txq = protocol.NewFifoBuffer(txQueueSize)
	}
}

// Init brings the hardware up in dependency order: clock gates, LED pin,
// converter clock, converter channel, timer module and channel, tick
// callback, interrupt line, timer start. The configuration is validated
// first; an invalid one returns before any register is written.
func (d *Dimmer) Init(cfg *Config) error {
	if cfg == nil {
		return opErr("init", -1, ErrNullConfiguration)
	}
	c := *cfg
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		RecordEvent(EvtConfigRejected, 0, 0, 0)
		return err
	}

	gates := append([]Gate{PortGate(c.LED.Port), GatePIT, GateADC0}, c.Gates...)
	for _, g := range gates {
		if err := d.gates.EnableClock(g); err != nil {
			return err
		}
	}

	d.led = NewLED(d.pins, c.LED.Port, c.LED.Pin, c.LEDActiveLow)
	pin := c.LED
	pin.InitialHigh = d.led.InactiveHigh()
	if err := d.pins.ConfigurePin(&pin); err != nil {
		return err
	}

	if err := d.seq.ConfigureClock(c.Clock); err != nil {
		return err
	}
	if _, err := d.seq.Configure(c.Converter); err != nil {
		return err
	}

	tc := *c.Timer
	if tc.LoadValue == 0 {
		tc.LoadValue = LoadValueFor(c.BusClockHz, c.TickHz)
	}
	if err := d.sched.ConfigureModule(&c.TimerModule); err != nil {
		return err
	}
	if err := d.sched.Configure(&tc); err != nil {
		return err
	}
	d.timer = tc.Index

	d.ticks.Reset()
	d.RegisterTickCallback(nil)
	if tc.InterruptEnabled && d.irq != nil {
		d.irq.EnableIRQ(IRQPIT)
	}

	d.sensor = NewLightSensor(d.seq, c.Converter, c.ConversionTimeout)
	d.ctrl = NewController(d.sensor, &d.ticks, d.led, c.Thresholds, c.TimeoutPolicy)
	d.every = c.TelemetryEvery
	d.pause = c.LoopPause
	d.steps = 0

	if tc.Enabled {
		if err := d.sched.Start(tc.Index); err != nil {
			return err
		}
	}
	DebugPrintln("[DIM] init ok: ldval=" + utoa(tc.LoadValue) + " ch=" + itoa(int(c.Converter.InputChannel)))
	return nil
}

// RegisterTickCallback installs fn as the per-tick hook. The tick counter
// advances before fn runs, and keeps advancing when fn is nil. fn runs in
// interrupt context.
func (d *Dimmer) RegisterTickCallback(fn func()) {
	d.sched.RegisterCallback(func() {
		d.ticks.Advance()
		if fn != nil {
			fn()
		}
	})
}

// HandleInterrupt is the PIT interrupt entry point.
func (d *Dimmer) HandleInterrupt() {
	d.sched.HandleInterrupt()
}

// Step runs one control iteration and, every TelemetryEvery steps, sends
// a status frame.
func (d *Dimmer) Step() error {
	if d.ctrl == nil {
		return opErr("dimmer.step", -1, ErrNullConfiguration)
	}
	err := d.ctrl.Step()
	d.steps++
	if d.telemetry != nil && d.every > 0 && d.steps%d.every == 0 {
		d.drain()
		d.emit()
	}
	d.drain()
	return err
}

// Run steps the loop until done is closed.
func (d *Dimmer) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		d.runOnce()
	}
}

// RunForever steps the loop and never returns.
func (d *Dimmer) RunForever() {
	for {
		d.runOnce()
	}
}

func (d *Dimmer) runOnce() {
	if err := d.Step(); err != nil {
		DebugAsync("[DIM] step: " + err.Error())
	}
	if d.pause > 0 {
		time.Sleep(d.pause)
	}
}

// Stop halts the tick timer. The LED is left at its last level.
func (d *Dimmer) Stop() error {
	return d.sched.Stop(d.timer)
}

// Tick returns the current PWM phase.
func (d *Dimmer) Tick() uint32 {
	return d.ticks.Load()
}

// State returns the current duty and level, zero before Init.
func (d *Dimmer) State() PwmState {
	if d.ctrl == nil {
		return PwmState{}
	}
	return d.ctrl.State()
}

// Scheduler exposes the timer scheduler, for diagnostics and tests.
func (d *Dimmer) Scheduler() *Scheduler {
	return d.sched
}

// Sequencer exposes the conversion sequencer.
func (d *Dimmer) Sequencer() *Sequencer {
	return d.seq
}

// Status builds the telemetry record for the current state.
func (d *Dimmer) Status() protocol.Telemetry {
	if d.ctrl == nil {
		return protocol.Telemetry{Tick: d.ticks.Load()}
	}
	st := d.ctrl.State()
	cs := d.ctrl.Stats()
	ss := d.sched.Stats()
	return protocol.Telemetry{
		Step:       d.steps,
		Tick:       d.ticks.Load(),
		Light:      d.ctrl.Light(),
		Duty:       st.DutyTicks,
		Level:      uint8(st.Level),
		Timeouts:   cs.Timeouts,
		Interrupts: ss.Interrupts,
		Spurious:   ss.Spurious,
		Rewrites:   d.seq.Rewrites(),
	}
}

// emit writes one telemetry frame, then one frame per event recorded
// since the previous report.
func (d *Dimmer) emit() {
	t := d.Status()
	d.send(t.Encode)

	if g := EventRingGeneration(); g != d.eventGen {
		d.eventGen = g
		d.lastEvent = 0
	}
	for _, evt := range Events() {
		if evt.Seq <= d.lastEvent {
			continue
		}
		e := protocol.Event{Type: evt.Type, Index: evt.Index, Seq: evt.Seq, Value1: evt.Value1, Value2: evt.Value2}
		d.send(e.Encode)
		d.lastEvent = evt.Seq
	}
}

func (d *Dimmer) send(payload func(protocol.OutputBuffer)) {
	d.scratch.Reset()
	if err := d.enc.EncodeFrame(&d.scratch, payload); err != nil {
		d.dropped++
		return
	}
	frame := d.scratch.Result()
	if d.tx != nil {
		if d.txq.Free() < len(frame) {
			d.dropped++
			return
		}
		d.txq.Write(frame)
		return
	}
	if _, err := d.telemetry.Write(frame); err != nil {
		d.dropped++
	}
}

// drain hands queued telemetry to the transmitter until it stops taking
// bytes.
func (d *Dimmer) drain() {
	if d.tx == nil {
		return
	}
	for !d.txq.IsEmpty() {
		seg := d.txq.Peek()
		n := d.tx.TryWrite(seg)
		d.txq.Pop(n)
		if n < len(seg) {
			return
		}
	}
}

// Pending returns the number of queued telemetry bytes not yet handed to
// the transmitter.
func (d *Dimmer) Pending() int {
	if d.txq == nil {
		return 0
	}
	return d.txq.Available()
}

// Dropped counts telemetry frames that could not be encoded or written.
func (d *Dimmer) Dropped() uint32 {
	return d.dropped
}
