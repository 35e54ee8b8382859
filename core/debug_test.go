package core

import (
	"errors"
	"strings"
	"testing"

	"lightdim/sim"
)

func TestOpError(t *testing.T) {
	err := opErr("timer.configure", 2, ErrInvalidChannelIndex)
	if got := err.Error(); got != "timer.configure[2]: invalid_channel_index" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrInvalidChannelIndex) {
		t.Error("errors.Is does not see the sentinel")
	}
	var oe *OpError
	if !errors.As(err, &oe) || oe.Index != 2 {
		t.Errorf("errors.As = %+v", oe)
	}
	if got := opErr("config", -1, ErrNullConfiguration).Error(); got != "config: null_configuration" {
		t.Errorf("Error() = %q", got)
	}
}

func TestEventRingWraps(t *testing.T) {
	ClearEventRing()
	defer ClearEventRing()

	n := EventRingSize + 5
	for i := 0; i < n; i++ {
		RecordEvent(EvtDutyChange, 0, uint32(i), 0)
	}
	evts := Events()
	if len(evts) != EventRingSize {
		t.Fatalf("ring holds %d events, want %d", len(evts), EventRingSize)
	}
	if evts[0].Value1 != 5 || evts[len(evts)-1].Value1 != uint32(n-1) {
		t.Errorf("oldest=%d newest=%d", evts[0].Value1, evts[len(evts)-1].Value1)
	}
	for i := 1; i < len(evts); i++ {
		if evts[i].Seq != evts[i-1].Seq+1 {
			t.Fatalf("sequence gap at %d", i)
		}
	}
}

func TestDumpEventRing(t *testing.T) {
	ClearEventRing()
	defer ClearEventRing()

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	RecordEvent(EvtConversionTimeout, 1, 2000, 0)
	RecordEvent(EvtChannelRewritten, 0, 24, 31)
	DumpEventRing()

	out := strings.Join(lines, "\n")
	t.Log(out)
	if len(lines) != 4 {
		t.Fatalf("dump has %d lines, want 4", len(lines))
	}
	if !strings.Contains(lines[1], "ADC_TIMEOUT idx=1 seq=1 v1=2000") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "CH_REWRITE idx=0 seq=2 v1=24 v2=31") {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestEventRingGeneration(t *testing.T) {
	before := EventRingGeneration()
	RecordEvent(EvtDutyChange, 0, 1, 0)
	if EventRingGeneration() != before {
		t.Error("recording an event changed the generation")
	}
	ClearEventRing()
	if got := EventRingGeneration(); got != before+1 {
		t.Errorf("generation = %d, want %d", got, before+1)
	}
}

func TestDumpRegisters(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	board := sim.NewBoard()
	NewClockGates(board).EnableClock(GatePIT)
	DumpRegisters(board, GateRegisters...)

	t.Log(strings.Join(lines, "\n"))
	if len(lines) != len(GateRegisters) {
		t.Fatalf("dump has %d lines, want %d", len(lines), len(GateRegisters))
	}
	if lines[2] != "[REG] SIM_SCGC6=0x00800000" {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestDebugPrintlnGate(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if len(got) != 1 || got[0] != "shown" {
		t.Errorf("debug output = %q", got)
	}
}

func TestStringHelpers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{itoa(0), "0"},
		{itoa(-42), "-42"},
		{itoa(2096), "2096"},
		{utoa(4294967295), "4294967295"},
		{hex32(0), "0x00000000"},
		{hex32(0x4003B010), "0x4003B010"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
