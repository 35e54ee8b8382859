package core

import (
	"time"

	"lightdim/regs"
)

// InputChannel is an ADC0 SC1n ADCH input code.
type InputChannel uint8

// Named input codes. In single-ended mode 0..23 select SE0..SE23; in
// differential mode 0..3 select the DAD0..DAD3 pairs.
const (
	DADP0           InputChannel = 0
	DADP1           InputChannel = 1
	DADP2           InputChannel = 2
	DADP3           InputChannel = 3
	TempSensor      InputChannel = 26
	Bandgap         InputChannel = 27
	VREFSH          InputChannel = 29
	VREFSL          InputChannel = 30
	ChannelDisabled InputChannel = 31
)

// DefaultConversionTimeout bounds WaitComplete when the caller passes 0.
// A single 8-bit conversion on the bus clock takes a few microseconds.
const DefaultConversionTimeout = 2 * time.Millisecond

// ResolveInputChannel maps ch to the code actually written to ADCH.
// Reserved codes for the selected mode become ChannelDisabled.
func ResolveInputChannel(ch InputChannel, differential bool) InputChannel {
	if ch > ChannelDisabled {
		return ChannelDisabled
	}
	if !differential {
		switch ch {
		case 24, 25, 28:
			return ChannelDisabled
		}
		return ch
	}
	switch {
	case ch <= DADP3, ch == TempSensor, ch == Bandgap, ch == VREFSH, ch == ChannelDisabled:
		return ch
	}
	return ChannelDisabled
}

// ClockSource selects ADICLK.
type ClockSource uint8

const (
	ClockBus ClockSource = iota
	ClockBusHalf
	ClockAlternate
	ClockAsync
)

// ClockDivider selects ADIV.
type ClockDivider uint8

const (
	Div1 ClockDivider = iota
	Div2
	Div4
	Div8
)

// Resolution selects MODE. The numbering follows the KL46Z encoding, which
// is not monotonic in bits.
type Resolution uint8

const (
	Resolution8Bit Resolution = iota
	Resolution12Bit
	Resolution10Bit
	Resolution16Bit
)

// SampleTime selects ADLSMP.
type SampleTime uint8

const (
	SampleShort SampleTime = iota
	SampleLong
)

// ClockSourceConfig carries the ADC0 CFG1 settings.
type ClockSourceConfig struct {
	Source     ClockSource
	Divider    ClockDivider
	Resolution Resolution
	SampleTime SampleTime
}

type fieldValue struct {
	f regs.Field
	v uint32
}

func (cfg *ClockSourceConfig) fields() [4]fieldValue {
	return [4]fieldValue{
		{regs.ADC_CFG1_ADICLK, uint32(cfg.Source)},
		{regs.ADC_CFG1_ADIV, uint32(cfg.Divider)},
		{regs.ADC_CFG1_MODE, uint32(cfg.Resolution)},
		{regs.ADC_CFG1_ADLSMP, uint32(cfg.SampleTime)},
	}
}

func (cfg *ClockSourceConfig) validate() error {
	for _, w := range cfg.fields() {
		if w.v > w.f.Limit() {
			return regs.ErrFieldRange
		}
	}
	return nil
}

// ConverterSlotConfig selects what one SC1n slot converts.
type ConverterSlotConfig struct {
	Slot                uint8 // 0 = A, 1 = B
	Differential        bool
	InputChannel        InputChannel
	InterruptOnComplete bool
}

// Sequencer drives ADC0 conversions on its two SC1 slots.
type Sequencer struct {
	bus      regs.Bus
	rewrites uint32
}

// NewSequencer returns a sequencer driving ADC0 through bus.
func NewSequencer(bus regs.Bus) *Sequencer {
	return &Sequencer{bus: bus}
}

// ConfigureClock applies cfg to CFG1, selects the a-side input mux and
// software triggered single conversions without averaging. Every field is
// checked before the first write.
func (q *Sequencer) ConfigureClock(cfg *ClockSourceConfig) error {
	const op = "adc.clock"
	if cfg == nil {
		return opErr(op, -1, ErrNullConfiguration)
	}
	if err := cfg.validate(); err != nil {
		RecordEvent(EvtConfigRejected, 0, 0, 0)
		return opErr(op, -1, err)
	}
	for _, w := range cfg.fields() {
		if _, err := regs.Write(q.bus, &regs.ADC0_CFG1, w.f, w.v); err != nil {
			return opErr(op, -1, err)
		}
	}
	single := [...]struct {
		r *regs.Register
		fieldValue
	}{
		{&regs.ADC0_CFG2, fieldValue{regs.ADC_CFG2_MUXSEL, 0}},
		{&regs.ADC0_SC2, fieldValue{regs.ADC_SC2_ADTRG, 0}},
		{&regs.ADC0_SC3, fieldValue{regs.ADC_SC3_ADCO, 0}},
		{&regs.ADC0_SC3, fieldValue{regs.ADC_SC3_AVGE, 0}},
	}
	for _, w := range single {
		if _, err := regs.Write(q.bus, w.r, w.f, w.v); err != nil {
			return opErr(op, -1, err)
		}
	}
	return nil
}

// Configure applies the completion interrupt enable, then selects the
// slot's input channel, which starts a conversion. It returns the code
// actually written.
func (q *Sequencer) Configure(cfg *ConverterSlotConfig) (InputChannel, error) {
	const op = "adc.configure"
	if cfg == nil {
		return ChannelDisabled, opErr(op, -1, ErrNullConfiguration)
	}
	slot, err := slotIndex(op, cfg.Slot)
	if err != nil {
		return ChannelDisabled, err
	}
	if _, err := regs.Write(q.bus, &regs.ADC0_SC1[slot], regs.ADC_SC1_AIEN, b2u(cfg.InterruptOnComplete)); err != nil {
		return ChannelDisabled, opErr(op, slot, err)
	}
	return q.SelectChannel(cfg.Slot, cfg.InputChannel, cfg.Differential)
}

// SelectChannel writes the differential bit and then the resolved input
// code of slot. The ADCH write starts a conversion on slot 0 in software
// trigger mode; slot 1 waits for a hardware trigger. A reserved code is
// still written, as ChannelDisabled, and reported with
// ErrInvalidInputChannel so the caller can tell it apart from success.
func (q *Sequencer) SelectChannel(slot uint8, ch InputChannel, differential bool) (InputChannel, error) {
	const op = "adc.select"
	s, err := slotIndex(op, slot)
	if err != nil {
		return ChannelDisabled, err
	}
	sc1 := &regs.ADC0_SC1[s]
	if _, err := regs.Write(q.bus, sc1, regs.ADC_SC1_DIFF, b2u(differential)); err != nil {
		return ChannelDisabled, opErr(op, s, err)
	}
	resolved := ResolveInputChannel(ch, differential)
	if _, err := regs.Write(q.bus, sc1, regs.ADC_SC1_ADCH, uint32(resolved)); err != nil {
		return ChannelDisabled, opErr(op, s, err)
	}
	if resolved != ch {
		q.rewrites++
		RecordEvent(EvtChannelRewritten, slot, uint32(ch), uint32(resolved))
		return resolved, opErr(op, s, ErrInvalidInputChannel)
	}
	return resolved, nil
}

// WaitComplete polls the slot's COCO flag until it is set or timeout
// elapses. A zero timeout means DefaultConversionTimeout. It busy-waits
// and must not be called from the tick callback.
func (q *Sequencer) WaitComplete(slot uint8, timeout time.Duration) error {
	const op = "adc.wait"
	s, err := slotIndex(op, slot)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = DefaultConversionTimeout
	}
	sc1 := &regs.ADC0_SC1[s]
	deadline := time.Now().Add(timeout)
	for {
		if regs.Flag(q.bus, sc1, regs.ADC_SC1_COCO) {
			return nil
		}
		if !time.Now().Before(deadline) {
			RecordEvent(EvtConversionTimeout, slot, uint32(timeout/time.Microsecond), 0)
			return opErr(op, s, ErrConversionTimeout)
		}
	}
}

// TriggerAndWait selects ch on slot, which starts a conversion, and waits
// for it to complete. A rewritten reserved code is not waited on.
//
// Only SC1A starts on a channel write. SC1B converts on hardware triggers
// alone, so with software triggering selected slot 1 is refused before any
// register is written.
func (q *Sequencer) TriggerAndWait(slot uint8, ch InputChannel, differential bool, timeout time.Duration) error {
	if slot > 0 && int(slot) < regs.ADCSlots && !regs.Flag(q.bus, &regs.ADC0_SC2, regs.ADC_SC2_ADTRG) {
		RecordEvent(EvtConfigRejected, slot, 0, 0)
		return opErr("adc.trigger", int(slot), ErrInvalidConfig)
	}
	resolved, err := q.SelectChannel(slot, ch, differential)
	if err != nil {
		return err
	}
	if resolved == ChannelDisabled {
		// ADCH=31 disables the converter; COCO will never rise.
		return opErr("adc.trigger", int(slot), ErrInvalidInputChannel)
	}
	return q.WaitComplete(slot, timeout)
}

// ReadResult returns the slot's data register. Call it only after
// WaitComplete succeeded on the same slot; the value is otherwise stale.
func (q *Sequencer) ReadResult(slot uint8) (uint16, error) {
	const op = "adc.read"
	s, err := slotIndex(op, slot)
	if err != nil {
		return 0, err
	}
	v, err := regs.Read(q.bus, &regs.ADC0_R[s], regs.ADC_R_D)
	if err != nil {
		return 0, opErr(op, s, err)
	}
	return uint16(v), nil
}

// Rewrites counts reserved input codes replaced by ChannelDisabled.
func (q *Sequencer) Rewrites() uint32 {
	return q.rewrites
}

func slotIndex(op string, slot uint8) (int, error) {
	if int(slot) >= regs.ADCSlots {
		RecordEvent(EvtConfigRejected, slot, 0, 0)
		return 0, opErr(op, int(slot), ErrInvalidChannelIndex)
	}
	return int(slot), nil
}
