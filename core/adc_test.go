package core

import (
	"errors"
	"testing"
	"time"

	"lightdim/regs"
	"lightdim/sim"
)

func newADCBoard(t *testing.T) (*sim.Board, *Sequencer) {
	t.Helper()
	board := sim.NewBoard()
	if err := NewClockGates(board).EnableClock(GateADC0); err != nil {
		t.Fatalf("EnableClock: %v", err)
	}
	return board, NewSequencer(board)
}

func TestResolveInputChannel(t *testing.T) {
	single := map[InputChannel]bool{24: true, 25: true, 28: true}
	diff := map[InputChannel]bool{0: true, 1: true, 2: true, 3: true, 26: true, 27: true, 29: true, 31: true}

	for code := 0; code < 64; code++ {
		ch := InputChannel(code)

		want := ch
		if code > 31 || single[ch] {
			want = ChannelDisabled
		}
		if got := ResolveInputChannel(ch, false); got != want {
			t.Errorf("single-ended %d -> %d, want %d", code, got, want)
		}

		want = ChannelDisabled
		if diff[ch] {
			want = ch
		}
		if got := ResolveInputChannel(ch, true); got != want {
			t.Errorf("differential %d -> %d, want %d", code, got, want)
		}
	}
}

func TestSelectChannelAllSlotsCodesModes(t *testing.T) {
	board, q := newADCBoard(t)

	for slot := uint8(0); slot < regs.ADCSlots; slot++ {
		for code := 0; code <= 31; code++ {
			for _, differential := range []bool{false, true} {
				ch := InputChannel(code)
				want := ResolveInputChannel(ch, differential)

				got, err := q.SelectChannel(slot, ch, differential)
				if got != want {
					t.Errorf("slot %d code %d diff=%v: resolved %d, want %d", slot, code, differential, got, want)
				}
				if rewritten := want != ch; rewritten != errors.Is(err, ErrInvalidInputChannel) {
					t.Errorf("slot %d code %d diff=%v: err = %v", slot, code, differential, err)
				}

				sc1 := board.Word(regs.ADC0_SC1[slot].Addr)
				if adch := InputChannel(sc1 & regs.ADC_SC1_ADCH.Mask()); adch != want {
					t.Errorf("slot %d code %d diff=%v: ADCH = %d, want %d", slot, code, differential, adch, want)
				}
				if gotDiff := sc1&regs.ADC_SC1_DIFF.Mask() != 0; gotDiff != differential {
					t.Errorf("slot %d code %d: DIFF = %v, want %v", slot, code, gotDiff, differential)
				}
				if sc1&regs.ADC_SC1_AIEN.Mask() != 0 {
					t.Errorf("slot %d code %d: channel select set AIEN", slot, code)
				}
			}
		}
	}
}

func TestSelectChannelInvalidSlot(t *testing.T) {
	board, q := newADCBoard(t)
	before := board.Snapshot()
	writes := len(board.Writes())

	for slot := 2; slot < 256; slot++ {
		if _, err := q.SelectChannel(uint8(slot), DADP3, false); !errors.Is(err, ErrInvalidChannelIndex) {
			t.Fatalf("SelectChannel(slot %d) = %v", slot, err)
		}
		if _, err := q.Configure(&ConverterSlotConfig{Slot: uint8(slot), InputChannel: DADP3}); !errors.Is(err, ErrInvalidChannelIndex) {
			t.Fatalf("Configure(slot %d) = %v", slot, err)
		}
		if err := q.WaitComplete(uint8(slot), time.Millisecond); !errors.Is(err, ErrInvalidChannelIndex) {
			t.Fatalf("WaitComplete(slot %d) = %v", slot, err)
		}
		if _, err := q.ReadResult(uint8(slot)); !errors.Is(err, ErrInvalidChannelIndex) {
			t.Fatalf("ReadResult(slot %d) = %v", slot, err)
		}
	}
	if _, err := q.Configure(nil); !errors.Is(err, ErrNullConfiguration) {
		t.Errorf("Configure(nil) = %v", err)
	}

	if !board.Snapshot().Equal(before) {
		t.Error("invalid slot changed the register file")
	}
	if n := len(board.Writes()); n != writes {
		t.Errorf("invalid slot issued %d bus writes", n-writes)
	}
}

func TestConfigureClock(t *testing.T) {
	board, q := newADCBoard(t)

	cfg := &ClockSourceConfig{Source: ClockBus, Divider: Div8, Resolution: Resolution8Bit, SampleTime: SampleShort}
	if err := q.ConfigureClock(cfg); err != nil {
		t.Fatal(err)
	}
	if got := board.Word(regs.ADC0_CFG1.Addr); got != 0x60 {
		t.Errorf("CFG1 = %#x, want 0x60", got)
	}

	cfg = &ClockSourceConfig{Source: ClockAsync, Divider: Div1, Resolution: Resolution16Bit, SampleTime: SampleLong}
	if err := q.ConfigureClock(cfg); err != nil {
		t.Fatal(err)
	}
	if got := board.Word(regs.ADC0_CFG1.Addr); got != 0x1F {
		t.Errorf("CFG1 = %#x, want 0x1F", got)
	}
	if board.Word(regs.ADC0_SC2.Addr)&regs.ADC_SC2_ADTRG.Mask() != 0 {
		t.Error("hardware trigger selected")
	}
}

func TestConfigureClockSingleConversions(t *testing.T) {
	board, q := newADCBoard(t)
	board.Store32(regs.ADC0_CFG2.Addr, regs.ADC_CFG2_MUXSEL.Mask())
	board.Store32(regs.ADC0_SC3.Addr, regs.ADC_SC3_ADCO.Mask()|regs.ADC_SC3_AVGE.Mask())
	board.Store32(regs.ADC0_SC2.Addr, regs.ADC_SC2_ADTRG.Mask())

	cfg := &ClockSourceConfig{Source: ClockBus, Divider: Div8}
	if err := q.ConfigureClock(cfg); err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		reg  *regs.Register
		mask uint32
	}{
		{&regs.ADC0_CFG2, regs.ADC_CFG2_MUXSEL.Mask()},
		{&regs.ADC0_SC2, regs.ADC_SC2_ADTRG.Mask()},
		{&regs.ADC0_SC3, regs.ADC_SC3_ADCO.Mask() | regs.ADC_SC3_AVGE.Mask()},
	}
	for _, c := range checks {
		if got := board.Word(c.reg.Addr) & c.mask; got != 0 {
			t.Errorf("%s = %#x, want bits %#x clear", c.reg.Name, got, c.mask)
		}
	}
}

func TestTriggerAndWaitSlotBNeedsHardwareTrigger(t *testing.T) {
	board, q := newADCBoard(t)
	if err := q.ConfigureClock(&ClockSourceConfig{}); err != nil {
		t.Fatal(err)
	}
	writes := len(board.Writes())

	start := time.Now()
	err := q.TriggerAndWait(1, DADP3, false, time.Second)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("TriggerAndWait(slot 1) = %v, want ErrInvalidConfig", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("slot 1 refusal took %v", elapsed)
	}
	if n := len(board.Writes()); n != writes {
		t.Errorf("refused trigger issued %d bus writes", n-writes)
	}

	// Selecting the channel still works; the board just never converts.
	if _, err := q.SelectChannel(1, DADP3, false); err != nil {
		t.Fatal(err)
	}
	if board.Conversions(1) != 0 {
		t.Error("slot B converted without a hardware trigger")
	}
}

func TestConfigureClockRejectsBeforeWriting(t *testing.T) {
	bad := []*ClockSourceConfig{
		nil,
		{Source: 4},
		{Divider: 4},
		{Resolution: 4},
		{SampleTime: 2},
		// valid leading fields must not be applied either
		{Source: ClockAsync, Divider: Div8, Resolution: Resolution16Bit, SampleTime: 7},
	}
	for i, cfg := range bad {
		board, q := newADCBoard(t)
		writes := len(board.Writes())
		if err := q.ConfigureClock(cfg); err == nil {
			t.Errorf("case %d: accepted %+v", i, cfg)
		}
		if n := len(board.Writes()); n != writes {
			t.Errorf("case %d: %d bus writes before rejection", i, n-writes)
		}
	}
}

func TestConfigureInterruptEnable(t *testing.T) {
	board, q := newADCBoard(t)

	got, err := q.Configure(&ConverterSlotConfig{Slot: 0, InputChannel: DADP3, InterruptOnComplete: true})
	if err != nil || got != DADP3 {
		t.Fatalf("Configure = %d, %v", got, err)
	}
	sc1 := board.Word(regs.ADC0_SC1[0].Addr)
	if sc1&regs.ADC_SC1_AIEN.Mask() == 0 {
		t.Errorf("AIEN not set: %#x", sc1)
	}
	if board.Conversions(0) == 0 {
		t.Error("channel select did not start a conversion")
	}
}

func TestTriggerAndWaitReadsResult(t *testing.T) {
	board, q := newADCBoard(t)
	board.SetLight(0xA5)
	board.SetConversionLatency(4)

	if err := q.TriggerAndWait(0, DADP3, false, 10*time.Millisecond); err != nil {
		t.Fatalf("TriggerAndWait: %v", err)
	}
	v, err := q.ReadResult(0)
	if err != nil || v != 0xA5 {
		t.Errorf("ReadResult = %#x, %v; want 0xA5", v, err)
	}
}

func TestTriggerAndWaitReservedCode(t *testing.T) {
	_, q := newADCBoard(t)

	start := time.Now()
	err := q.TriggerAndWait(0, 28, false, time.Second)
	if !errors.Is(err, ErrInvalidInputChannel) {
		t.Errorf("TriggerAndWait(28) = %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("waited on a disabled channel")
	}
	if q.Rewrites() != 1 {
		t.Errorf("Rewrites = %d, want 1", q.Rewrites())
	}
}

func TestWaitCompleteTimesOut(t *testing.T) {
	ClearEventRing()
	board, q := newADCBoard(t)
	board.SetStuck(true)

	timeout := 2 * time.Millisecond
	start := time.Now()
	err := q.TriggerAndWait(0, DADP3, false, timeout)
	elapsed := time.Since(start)
	t.Logf("timed out after %v", elapsed)

	if !errors.Is(err, ErrConversionTimeout) {
		t.Fatalf("err = %v, want ErrConversionTimeout", err)
	}
	if elapsed < timeout {
		t.Errorf("returned after %v, before the %v timeout", elapsed, timeout)
	}
	if elapsed > time.Second {
		t.Errorf("wait not bounded: %v", elapsed)
	}

	var seen bool
	for _, e := range Events() {
		seen = seen || e.Type == EvtConversionTimeout
	}
	if !seen {
		t.Error("timeout not recorded in the event ring")
	}
}
