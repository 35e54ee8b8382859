package simulate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"lightdim/core"
	"lightdim/protocol"
	"lightdim/regs"
)

const exampleProfile = `
duration_ms = 150

[light]
mode = "ramp"
from = 0
to = 10
step = 4

[timer]
tick_hz = 2000

[control]
low = 100
high = 200
policy = "hold-last"
telemetry_every = 25

[gpio]
chip = "gpiochip0"
line = 17

[logging]
level = "debug"
`

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(exampleProfile))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if p.Light.Mode != LightRamp || p.Light.Step != 4 || p.Light.To != 10 {
		t.Errorf("light = %+v", p.Light)
	}
	if p.Light.LatencyPolls != 1 {
		t.Errorf("latency_polls default lost: %d", p.Light.LatencyPolls)
	}
	if p.GPIO.Chip != "gpiochip0" || p.GPIO.Line != 17 {
		t.Errorf("gpio = %+v", p.GPIO)
	}
	if p.Logging.Level != "debug" {
		t.Errorf("logging level = %q", p.Logging.Level)
	}

	cfg, err := p.FirmwareConfig()
	if err != nil {
		t.Fatalf("FirmwareConfig: %v", err)
	}
	if cfg.TimeoutPolicy != core.HoldLast {
		t.Errorf("policy = %v, want hold-last", cfg.TimeoutPolicy)
	}
	if cfg.Thresholds != (core.Thresholds{Low: 100, High: 200}) {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if cfg.TickHz != 2000 || cfg.TelemetryEvery != 25 {
		t.Errorf("tick_hz=%d telemetry_every=%d", cfg.TickHz, cfg.TelemetryEvery)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("profile produced an invalid firmware config: %v", err)
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte(exampleProfile), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err != nil {
		t.Errorf("LoadProfile: %v", err)
	}
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestParseProfileRejects(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"bad toml", "duration_ms = ["},
		{"unknown mode", "[light]\nmode = \"strobe\""},
		{"ramp inverted", "[light]\nmode = \"ramp\"\nfrom = 200\nto = 100"},
		{"ramp zero step", "[light]\nmode = \"ramp\"\nstep = 0"},
		{"zero tick rate", "[timer]\ntick_hz = 0"},
		{"unknown policy", "[control]\npolicy = \"panic\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseProfile([]byte(tt.toml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRampLightSource(t *testing.T) {
	p := DefaultProfile()
	p.Light = LightProfile{Mode: LightRamp, From: 0, To: 10, Step: 4, LatencyPolls: 1}
	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	b := s.Board()
	b.Store32(regs.SIM_SCGC6.Addr, regs.SIM_SCGC6_ADC0.Mask())

	want := []uint32{0, 4, 8, 10, 6, 2, 0, 4}
	for i, w := range want {
		b.Store32(regs.ADC0_SC1[0].Addr, uint32(core.DADP3))
		b.Load32(regs.ADC0_SC1[0].Addr)
		if got := b.Load32(regs.ADC0_R[0].Addr); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func decodeTelemetry(t *testing.T, stream []byte) []protocol.Telemetry {
	t.Helper()
	fifo := protocol.NewFifoBuffer(len(stream) + 1)
	fifo.Write(stream)
	dec := protocol.NewDecoder(fifo)
	var out []protocol.Telemetry
	for {
		f, ok := dec.Next()
		if !ok {
			break
		}
		if id, _ := protocol.MessageID(f.Payload); id != protocol.MsgTelemetry {
			continue
		}
		tm, err := protocol.DecodeTelemetry(f.Payload)
		if err != nil {
			t.Fatalf("DecodeTelemetry: %v", err)
		}
		out = append(out, tm)
	}
	return out
}

func TestRunConstantLight(t *testing.T) {
	p := DefaultProfile()
	p.DurationMS = 100
	p.Light.Value = 216
	p.Control.TelemetryEvery = 20

	var telemetry bytes.Buffer
	s, err := New(p, &telemetry)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	t.Logf("result: %+v", res)

	if res.Final.Duty != 50 {
		t.Errorf("final duty = %d, want 50", res.Final.Duty)
	}
	if res.Faults != 0 {
		t.Errorf("%d ungated register accesses", res.Faults)
	}
	if res.Conversions == 0 {
		t.Error("no conversions ran")
	}
	reports := decodeTelemetry(t, telemetry.Bytes())
	if len(reports) == 0 {
		t.Fatal("no telemetry decoded")
	}
	if reports[0].Step != 20 {
		t.Errorf("first report at step %d, want 20", reports[0].Step)
	}
	if last := reports[len(reports)-1]; last.Light != 216 || last.Duty != 50 {
		t.Errorf("last report = %+v", last)
	}
}

func TestRunStuckConverter(t *testing.T) {
	p := DefaultProfile()
	p.DurationMS = 60
	p.Light.Mode = LightStuck
	p.Control.ConversionTimeoutMS = 1

	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Final.Timeouts == 0 {
		t.Error("stuck converter produced no timeouts")
	}
	if res.Final.Duty != 0 || res.Final.Level != uint8(core.Inactive) {
		t.Errorf("stuck converter left duty=%d level=%d", res.Final.Duty, res.Final.Level)
	}
	// Active-low LED held off means the pin stays high.
	if !s.Board().Pin(regs.PortD, 5) {
		t.Error("LED pin driven active during a stuck conversion")
	}
}

type recordingMirror struct {
	mu     sync.Mutex
	levels []bool
	closed bool
}

func (m *recordingMirror) Set(high bool) error {
	m.mu.Lock()
	m.levels = append(m.levels, high)
	m.mu.Unlock()
	return nil
}

func (m *recordingMirror) Close() error {
	m.closed = true
	return nil
}

func TestRunMirrorsLED(t *testing.T) {
	p := DefaultProfile()
	p.DurationMS = 80
	p.Light.Value = 216
	p.Timer.TickHz = 5000

	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := &recordingMirror{}
	s.SetMirror(m)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.levels) == 0 {
		t.Fatal("mirror saw no pin changes")
	}
	sawLow, sawHigh := false, false
	for _, l := range m.levels {
		sawLow = sawLow || !l
		sawHigh = sawHigh || l
	}
	t.Logf("%d mirrored transitions", len(m.levels))
	if !sawLow || !sawHigh {
		t.Error("half duty should toggle the mirrored line both ways")
	}
}

func TestRunCancelled(t *testing.T) {
	p := DefaultProfile()
	p.DurationMS = 0
	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
