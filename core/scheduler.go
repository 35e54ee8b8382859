package core

import (
	"sync/atomic"

	"lightdim/regs"
)

// TimerChannelConfig describes one PIT channel.
type TimerChannelConfig struct {
	Index            uint8 // 0 or 1
	Enabled          bool
	Chained          bool
	InterruptEnabled bool
	LoadValue        uint32
}

// TimerModuleConfig describes the PIT module control register.
type TimerModuleConfig struct {
	Enabled       bool
	FreezeInDebug bool
}

// IRQPIT is the PIT's interrupt number in the KL46Z vector table.
const IRQPIT = regs.IRQ_PIT

// IRQController enables interrupt lines at the interrupt controller.
type IRQController interface {
	EnableIRQ(irq uint32)
}

// SchedulerStats counts interrupt activity since construction.
type SchedulerStats struct {
	Interrupts uint32
	Spurious   uint32
	Flagged    [regs.PITChannels]uint32
}

// Scheduler owns the two PIT channels, the single tick callback and the
// interrupt dispatch.
type Scheduler struct {
	bus      regs.Bus
	callback func()

	interrupts uint32
	spurious   uint32
	flagged    [regs.PITChannels]uint32
}

// NewScheduler returns a scheduler driving the PIT through bus.
func NewScheduler(bus regs.Bus) *Scheduler {
	return &Scheduler{bus: bus}
}

// LoadValueFor returns the LDVAL that makes a channel fire tickHz times a
// second from a busHz clock. The PIT counts LDVAL+1 cycles per period.
func LoadValueFor(busHz, tickHz uint32) uint32 {
	if tickHz == 0 || busHz < tickHz {
		return 0
	}
	return busHz/tickHz - 1
}

// ConfigureModule applies the PIT module enable and debug-freeze bits.
func (s *Scheduler) ConfigureModule(cfg *TimerModuleConfig) error {
	if cfg == nil {
		return opErr("timer.module", -1, ErrNullConfiguration)
	}
	if err := s.write("timer.module", -1, &regs.PIT_MCR, regs.PIT_MCR_FRZ, b2u(cfg.FreezeInDebug)); err != nil {
		return err
	}
	return s.write("timer.module", -1, &regs.PIT_MCR, regs.PIT_MCR_MDIS, b2u(!cfg.Enabled))
}

// Configure writes the load value, chain bit and interrupt enable of one
// channel. The channel's run state is left alone; use Start and Stop.
func (s *Scheduler) Configure(cfg *TimerChannelConfig) error {
	const op = "timer.configure"
	if cfg == nil {
		return opErr(op, -1, ErrNullConfiguration)
	}
	ch, err := channelIndex(op, cfg.Index)
	if err != nil {
		return err
	}
	if err := s.write(op, ch, &regs.PIT_LDVAL[ch], regs.PIT_LDVAL_TSV, cfg.LoadValue); err != nil {
		return err
	}
	if err := s.write(op, ch, &regs.PIT_TCTRL[ch], regs.PIT_TCTRL_CHN, b2u(cfg.Chained)); err != nil {
		return err
	}
	return s.write(op, ch, &regs.PIT_TCTRL[ch], regs.PIT_TCTRL_TIE, b2u(cfg.InterruptEnabled))
}

// Start sets the channel's enable bit.
func (s *Scheduler) Start(index uint8) error {
	ch, err := channelIndex("timer.start", index)
	if err != nil {
		return err
	}
	return s.write("timer.start", ch, &regs.PIT_TCTRL[ch], regs.PIT_TCTRL_TEN, 1)
}

// Stop clears the channel's enable bit.
func (s *Scheduler) Stop(index uint8) error {
	ch, err := channelIndex("timer.stop", index)
	if err != nil {
		return err
	}
	return s.write("timer.stop", ch, &regs.PIT_TCTRL[ch], regs.PIT_TCTRL_TEN, 0)
}

// Running reports whether the channel's enable bit is set.
func (s *Scheduler) Running(index uint8) (bool, error) {
	ch, err := channelIndex("timer.running", index)
	if err != nil {
		return false, err
	}
	return regs.Flag(s.bus, &regs.PIT_TCTRL[ch], regs.PIT_TCTRL_TEN), nil
}

// Remaining returns the channel's current down-counter value.
func (s *Scheduler) Remaining(index uint8) (uint32, error) {
	ch, err := channelIndex("timer.remaining", index)
	if err != nil {
		return 0, err
	}
	v, err := regs.Read(s.bus, &regs.PIT_CVAL[ch], regs.PIT_CVAL_TVL)
	if err != nil {
		return 0, opErr("timer.remaining", ch, err)
	}
	return v, nil
}

// RegisterCallback replaces the tick callback. A nil fn silences
// notification; the hardware interrupt stays armed.
func (s *Scheduler) RegisterCallback(fn func()) {
	state := disableInterrupts()
	s.callback = fn
	restoreInterrupts(state)
}

// HandleInterrupt is the PIT interrupt body. It acknowledges every channel
// whose flag is set, or both channels when none is, and then runs the
// callback exactly once. A firing with no flag set still counts as a tick.
//
// The callback runs in interrupt context and must not wait on hardware.
func (s *Scheduler) HandleInterrupt() {
	n := atomic.AddUint32(&s.interrupts, 1)

	seen := false
	for ch := 0; ch < regs.PITChannels; ch++ {
		flag := &regs.PIT_TFLG[ch]
		if regs.Flag(s.bus, flag, regs.PIT_TFLG_TIF) {
			regs.Clear(s.bus, flag, regs.PIT_TFLG_TIF)
			atomic.AddUint32(&s.flagged[ch], 1)
			seen = true
		}
	}
	if !seen {
		for ch := 0; ch < regs.PITChannels; ch++ {
			regs.Clear(s.bus, &regs.PIT_TFLG[ch], regs.PIT_TFLG_TIF)
		}
		atomic.AddUint32(&s.spurious, 1)
		RecordEvent(EvtSpuriousIRQ, 0, n, 0)
	}

	state := disableInterrupts()
	fn := s.callback
	restoreInterrupts(state)

	if fn != nil {
		fn()
	}
}

// Stats returns a copy of the interrupt counters.
func (s *Scheduler) Stats() SchedulerStats {
	st := SchedulerStats{
		Interrupts: atomic.LoadUint32(&s.interrupts),
		Spurious:   atomic.LoadUint32(&s.spurious),
	}
	for ch := range st.Flagged {
		st.Flagged[ch] = atomic.LoadUint32(&s.flagged[ch])
	}
	return st
}

func (s *Scheduler) write(op string, ch int, r *regs.Register, f regs.Field, v uint32) error {
	if _, err := regs.Write(s.bus, r, f, v); err != nil {
		return opErr(op, ch, err)
	}
	return nil
}

func channelIndex(op string, index uint8) (int, error) {
	if int(index) >= regs.PITChannels {
		RecordEvent(EvtConfigRejected, index, 0, 0)
		return 0, opErr(op, int(index), ErrInvalidChannelIndex)
	}
	return int(index), nil
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
