// Package sim models the KL46Z peripherals the dimmer touches as an
// in-memory register file. It implements regs.Bus with the side effects
// the core depends on. PIT flags are write-one-to-clear and raise the
// installed interrupt handler. Writing ADC SC1A in software trigger mode
// starts a conversion that completes after a configurable number of status
// polls; SC1B, as on silicon, never starts on a write. GPIO strobes update
// the data output register, and UART0 data writes are captured while the
// transmitter is not stalled.
package sim

import (
	"sync"

	"lightdim/regs"
)

// Store is one recorded bus write.
type Store struct {
	Addr  uintptr
	Value uint32
	Size  regs.Size
}

// Snapshot is a copy of every register value the board holds.
type Snapshot struct {
	Words map[uintptr]uint32
	Bytes map[uintptr]uint8
}

// Equal reports whether two snapshots hold the same register contents.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Words) != len(o.Words) || len(s.Bytes) != len(o.Bytes) {
		return false
	}
	for a, v := range s.Words {
		if w, ok := o.Words[a]; !ok || w != v {
			return false
		}
	}
	for a, v := range s.Bytes {
		if w, ok := o.Bytes[a]; !ok || w != v {
			return false
		}
	}
	return true
}

// PinChange is called when a GPIO output bit changes level.
type PinChange func(port regs.Port, pin uint8, high bool)

// Board is a simulated FRDM-KL46Z. The zero value is not usable; call
// NewBoard.
type Board struct {
	mu    sync.Mutex
	words map[uintptr]uint32
	bytes map[uintptr]uint8
	log   []Store

	// ADC
	light    func(slot int) uint16
	latency  int
	stuck    bool
	pending  [regs.ADCSlots]int
	converts [regs.ADCSlots]int

	isr    func()
	irqs   map[uint32]bool
	faults []uintptr

	uart     []byte
	onChange PinChange
}

// NewBoard returns a board with reset values applied: PIT module
// disabled and both converter slots idle on the disabled channel.
func NewBoard() *Board {
	b := &Board{
		words:   make(map[uintptr]uint32),
		bytes:   make(map[uintptr]uint8),
		latency: 1,
		light:   func(int) uint16 { return 0 },
		irqs:    make(map[uint32]bool),
	}
	b.words[regs.PIT_MCR.Addr] = regs.PIT_MCR_MDIS.Mask()
	for n := range regs.ADC0_SC1 {
		b.words[regs.ADC0_SC1[n].Addr] = regs.ADC_SC1_ADCH.Mask()
		b.pending[n] = -1
	}
	b.bytes[regs.UART0_S1.Addr] = uint8(regs.UART0_S1_TDRE.Mask() | regs.UART0_S1_TC.Mask())
	return b
}

// SetLight makes every conversion return v.
func (b *Board) SetLight(v uint16) {
	b.SetLightSource(func(int) uint16 { return v })
}

// SetLightSource installs a per-conversion sample generator.
func (b *Board) SetLightSource(fn func(slot int) uint16) {
	b.mu.Lock()
	b.light = fn
	b.mu.Unlock()
}

// SetConversionLatency sets how many SC1n reads a conversion takes before
// COCO rises. Values below 1 complete on the first poll.
func (b *Board) SetConversionLatency(polls int) {
	b.mu.Lock()
	if polls < 1 {
		polls = 1
	}
	b.latency = polls
	b.mu.Unlock()
}

// SetStuck makes started conversions never complete.
func (b *Board) SetStuck(stuck bool) {
	b.mu.Lock()
	b.stuck = stuck
	b.mu.Unlock()
}

// SetTransmitStalled holds UART0 TDRE and TC low, as a wedged transmitter
// does, or releases them.
func (b *Board) SetTransmitStalled(stalled bool) {
	b.mu.Lock()
	if stalled {
		b.bytes[regs.UART0_S1.Addr] = 0
	} else {
		b.bytes[regs.UART0_S1.Addr] = uint8(regs.UART0_S1_TDRE.Mask() | regs.UART0_S1_TC.Mask())
	}
	b.mu.Unlock()
}

// SetInterruptHandler installs the function run when the PIT interrupt
// line fires.
func (b *Board) SetInterruptHandler(fn func()) {
	b.mu.Lock()
	b.isr = fn
	b.mu.Unlock()
}

// EnableIRQ implements the interrupt controller side of the board.
// FireTimer only reaches the handler once regs.IRQ_PIT is enabled.
func (b *Board) EnableIRQ(irq uint32) {
	b.mu.Lock()
	b.irqs[irq] = true
	b.mu.Unlock()
}

// IRQEnabled reports whether EnableIRQ was called for irq.
func (b *Board) IRQEnabled(irq uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.irqs[irq]
}

// Faults returns the addresses accessed while their peripheral's clock
// gate was off. Real silicon hard-faults on such an access.
func (b *Board) Faults() []uintptr {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uintptr(nil), b.faults...)
}

// OnPinChange installs a GPIO output observer.
func (b *Board) OnPinChange(fn PinChange) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Load32 implements regs.Bus.
func (b *Board) Load32(addr uintptr) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkGate(addr)

	if slot, ok := sc1Slot(addr); ok {
		b.advanceConversion(slot)
	}
	if slot, ok := resultSlot(addr); ok {
		// Reading the result acknowledges the conversion.
		sc1 := regs.ADC0_SC1[slot].Addr
		b.words[sc1] &^= regs.ADC_SC1_COCO.Mask()
	}
	if port, ok := gpioReg(addr, 0x10); ok {
		return b.words[regs.GPIO[port].PDOR.Addr]
	}
	return b.words[addr]
}

// Store32 implements regs.Bus.
func (b *Board) Store32(addr uintptr, v uint32) {
	b.mu.Lock()
	b.checkGate(addr)
	b.log = append(b.log, Store{Addr: addr, Value: v, Size: regs.Size32})

	var changes []pinEvent
	switch {
	case isTFLG(addr):
		b.words[addr] &^= v & regs.PIT_TFLG_TIF.Mask()
	case isSC1(addr):
		slot, _ := sc1Slot(addr)
		coco := regs.ADC_SC1_COCO.Mask()
		b.words[addr] = v &^ coco
		software := b.words[regs.ADC0_SC2.Addr]&regs.ADC_SC2_ADTRG.Mask() == 0
		if slot == 0 && software && v&regs.ADC_SC1_ADCH.Mask() != regs.ADC_SC1_ADCH.Mask() {
			b.pending[slot] = b.latency
			b.converts[slot]++
		} else {
			b.pending[slot] = -1
		}
	default:
		if port, ok := gpioReg(addr, 0x04); ok {
			changes = b.setOutput(port, b.outputOf(port)|v)
		} else if port, ok := gpioReg(addr, 0x08); ok {
			changes = b.setOutput(port, b.outputOf(port)&^v)
		} else if port, ok := gpioReg(addr, 0x0C); ok {
			changes = b.setOutput(port, b.outputOf(port)^v)
		} else if port, ok := gpioReg(addr, 0x00); ok {
			changes = b.setOutput(port, v)
		} else {
			b.words[addr] = v
		}
	}
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil {
		for _, c := range changes {
			notify(c.port, c.pin, c.high)
		}
	}
}

// Load8 implements regs.Bus.
func (b *Board) Load8(addr uintptr) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkGate(addr)
	return b.bytes[addr]
}

// Store8 implements regs.Bus.
func (b *Board) Store8(addr uintptr, v uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkGate(addr)
	b.log = append(b.log, Store{Addr: addr, Value: uint32(v), Size: regs.Size8})
	switch addr {
	case regs.UART0_D.Addr:
		b.uart = append(b.uart, v)
	case regs.UART0_S1.Addr:
		// status bits are hardware owned
	default:
		b.bytes[addr] = v
	}
}

// FireTimer models channel ch reaching zero. If the module runs and the
// channel is enabled its TIF is set; the handler then runs when the
// channel's TIE and the PIT line are both enabled. It reports whether the
// handler ran.
func (b *Board) FireTimer(ch int) bool {
	b.mu.Lock()
	if ch < 0 || ch >= regs.PITChannels || b.words[regs.PIT_MCR.Addr]&regs.PIT_MCR_MDIS.Mask() != 0 {
		b.mu.Unlock()
		return false
	}
	ctrl := b.words[regs.PIT_TCTRL[ch].Addr]
	if ctrl&regs.PIT_TCTRL_TEN.Mask() == 0 {
		b.mu.Unlock()
		return false
	}
	b.words[regs.PIT_TFLG[ch].Addr] |= regs.PIT_TFLG_TIF.Mask()
	isr := b.isr
	armed := ctrl&regs.PIT_TCTRL_TIE.Mask() != 0 && b.irqs[regs.IRQ_PIT]
	b.mu.Unlock()

	if !armed || isr == nil {
		return false
	}
	isr()
	return true
}

// SpuriousInterrupt runs the handler without raising any channel flag.
func (b *Board) SpuriousInterrupt() {
	b.mu.Lock()
	isr := b.isr
	b.mu.Unlock()
	if isr != nil {
		isr()
	}
}

// RaiseFlag sets channel ch's TIF without running the handler.
func (b *Board) RaiseFlag(ch int) {
	b.mu.Lock()
	b.words[regs.PIT_TFLG[ch].Addr] |= regs.PIT_TFLG_TIF.Mask()
	b.mu.Unlock()
}

// Pin reports the driven level of an output pin.
func (b *Board) Pin(port regs.Port, pin uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outputOf(port)&(1<<pin) != 0
}

// Conversions reports how many conversions slot has started.
func (b *Board) Conversions(slot int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.converts[slot]
}

// Word returns the raw stored value at addr without side effects.
func (b *Board) Word(addr uintptr) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.words[addr]
}

// UART returns and clears the bytes written to UART0_D.
func (b *Board) UART() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.uart
	b.uart = nil
	return out
}

// Writes returns a copy of the write log.
func (b *Board) Writes() []Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Store(nil), b.log...)
}

// Snapshot copies the register file.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{Words: make(map[uintptr]uint32, len(b.words)), Bytes: make(map[uintptr]uint8, len(b.bytes))}
	for a, v := range b.words {
		s.Words[a] = v
	}
	for a, v := range b.bytes {
		s.Bytes[a] = v
	}
	return s
}

func (b *Board) advanceConversion(slot int) {
	if b.pending[slot] < 0 || b.stuck {
		return
	}
	b.pending[slot]--
	if b.pending[slot] > 0 {
		return
	}
	b.pending[slot] = -1
	b.words[regs.ADC0_R[slot].Addr] = uint32(b.light(slot))
	b.words[regs.ADC0_SC1[slot].Addr] |= regs.ADC_SC1_COCO.Mask()
}

type pinEvent struct {
	port regs.Port
	pin  uint8
	high bool
}

func (b *Board) outputOf(port regs.Port) uint32 {
	return b.words[regs.GPIO[port].PDOR.Addr]
}

func (b *Board) setOutput(port regs.Port, v uint32) []pinEvent {
	addr := regs.GPIO[port].PDOR.Addr
	old := b.words[addr]
	b.words[addr] = v
	diff := old ^ v
	if diff == 0 || b.onChange == nil {
		return nil
	}
	var ev []pinEvent
	for pin := uint8(0); pin < regs.PinsPerPort; pin++ {
		if diff&(1<<pin) != 0 {
			ev = append(ev, pinEvent{port: port, pin: pin, high: v&(1<<pin) != 0})
		}
	}
	return ev
}

func sc1Slot(addr uintptr) (int, bool) {
	for n := range regs.ADC0_SC1 {
		if regs.ADC0_SC1[n].Addr == addr {
			return n, true
		}
	}
	return 0, false
}

func isSC1(addr uintptr) bool {
	_, ok := sc1Slot(addr)
	return ok
}

func resultSlot(addr uintptr) (int, bool) {
	for n := range regs.ADC0_R {
		if regs.ADC0_R[n].Addr == addr {
			return n, true
		}
	}
	return 0, false
}

func isTFLG(addr uintptr) bool {
	for n := range regs.PIT_TFLG {
		if regs.PIT_TFLG[n].Addr == addr {
			return true
		}
	}
	return false
}

func gpioReg(addr uintptr, offset uintptr) (regs.Port, bool) {
	for p := regs.Port(0); p < regs.NumPorts; p++ {
		if regs.GPIO[p].PDOR.Addr+offset == addr {
			return p, true
		}
	}
	return 0, false
}

type gateRegion struct {
	base, size uintptr
	reg        *regs.Register
	field      regs.Field
}

var gateRegions = []gateRegion{
	{regs.PITBase, 0x1000, &regs.SIM_SCGC6, regs.SIM_SCGC6_PIT},
	{regs.ADC0Base, 0x1000, &regs.SIM_SCGC6, regs.SIM_SCGC6_ADC0},
	{0x40049000, 0x1000, &regs.SIM_SCGC5, regs.SIM_SCGC5_PORTA},
	{0x4004A000, 0x1000, &regs.SIM_SCGC5, regs.SIM_SCGC5_PORTB},
	{0x4004B000, 0x1000, &regs.SIM_SCGC5, regs.SIM_SCGC5_PORTC},
	{0x4004C000, 0x1000, &regs.SIM_SCGC5, regs.SIM_SCGC5_PORTD},
	{0x4004D000, 0x1000, &regs.SIM_SCGC5, regs.SIM_SCGC5_PORTE},
	{regs.UART0Base, 0x1000, &regs.SIM_SCGC4, regs.SIM_SCGC4_UART0},
}

func (b *Board) checkGate(addr uintptr) {
	for _, g := range gateRegions {
		if addr < g.base || addr >= g.base+g.size {
			continue
		}
		if b.words[g.reg.Addr]&g.field.Mask() == 0 {
			b.faults = append(b.faults, addr)
		}
		return
	}
}
