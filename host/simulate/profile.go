// Package simulate runs the dimmer firmware core on a simulated KL46Z,
// driven by a light profile read from TOML.
package simulate

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"lightdim/core"
	"lightdim/host/logging"
)

// Light source modes.
const (
	LightConstant = "constant"
	LightRamp     = "ramp"
	LightStuck    = "stuck"
)

// Profile is a simulation run description.
type Profile struct {
	DurationMS int `toml:"duration_ms"`

	Light   LightProfile   `toml:"light"`
	Timer   TimerProfile   `toml:"timer"`
	Control ControlProfile `toml:"control"`
	GPIO    GPIOProfile    `toml:"gpio"`
	Logging logging.Config `toml:"logging"`
}

// LightProfile shapes the photosensor readings.
type LightProfile struct {
	Mode  string `toml:"mode"`
	Value uint16 `toml:"value"`
	// Ramp bounces between From and To, moving Step per conversion.
	From uint16 `toml:"from"`
	To   uint16 `toml:"to"`
	Step uint16 `toml:"step"`
	// LatencyPolls is how many status polls a conversion takes.
	LatencyPolls int `toml:"latency_polls"`
}

// TimerProfile sets the simulated PIT interrupt rate.
type TimerProfile struct {
	TickHz int `toml:"tick_hz"`
}

// ControlProfile overrides the firmware configuration.
type ControlProfile struct {
	Low                 uint16 `toml:"low"`
	High                uint16 `toml:"high"`
	Policy              string `toml:"policy"`
	TelemetryEvery      uint32 `toml:"telemetry_every"`
	ConversionTimeoutMS int    `toml:"conversion_timeout_ms"`
	LoopPauseUS         int    `toml:"loop_pause_us"`
}

// GPIOProfile mirrors the LED onto a Linux GPIO line when Chip is set.
type GPIOProfile struct {
	Chip      string `toml:"chip"`
	Line      int    `toml:"line"`
	ActiveLow bool   `toml:"active_low"`
}

// DefaultProfile returns a five second constant-light run at the board's
// reference tick rate.
func DefaultProfile() *Profile {
	return &Profile{
		DurationMS: 5000,
		Light:      LightProfile{Mode: LightConstant, Value: 216, From: 0, To: 255, Step: 1, LatencyPolls: 1},
		Timer:      TimerProfile{TickHz: core.DefaultTickHz},
		Control: ControlProfile{
			Low:            core.DefaultThresholds().Low,
			High:           core.DefaultThresholds().High,
			Policy:         core.FallbackOff.String(),
			TelemetryEvery: core.DefaultTelemetryEvery,
			LoopPauseUS:    int(core.DefaultLoopPause / time.Microsecond),
		},
		Logging: logging.Config{Level: "info", Format: "text"},
	}
}

// LoadProfile reads a TOML profile. Keys missing from the file keep their
// DefaultProfile values.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a TOML profile.
func ParseProfile(data []byte) (*Profile, error) {
	p := DefaultProfile()
	if err := toml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse TOML profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the fields the firmware configuration does not.
func (p *Profile) Validate() error {
	switch p.Light.Mode {
	case LightConstant, LightStuck:
	case LightRamp:
		if p.Light.From > p.Light.To {
			return errors.New("profile: light.from above light.to")
		}
		if p.Light.Step == 0 {
			return errors.New("profile: light.step must be positive")
		}
	default:
		return fmt.Errorf("profile: unknown light mode %q", p.Light.Mode)
	}
	if p.Timer.TickHz <= 0 {
		return errors.New("profile: timer.tick_hz must be positive")
	}
	if p.DurationMS < 0 {
		return errors.New("profile: negative duration_ms")
	}
	if _, err := parsePolicy(p.Control.Policy); err != nil {
		return err
	}
	return nil
}

// Duration returns the run length, 0 meaning until cancelled.
func (p *Profile) Duration() time.Duration {
	return time.Duration(p.DurationMS) * time.Millisecond
}

// FirmwareConfig builds the dimmer configuration the profile describes.
func (p *Profile) FirmwareConfig() (*core.Config, error) {
	policy, err := parsePolicy(p.Control.Policy)
	if err != nil {
		return nil, err
	}
	cfg := core.DefaultConfig()
	cfg.Thresholds = core.Thresholds{Low: p.Control.Low, High: p.Control.High}
	cfg.TimeoutPolicy = policy
	cfg.TelemetryEvery = p.Control.TelemetryEvery
	cfg.ConversionTimeout = time.Duration(p.Control.ConversionTimeoutMS) * time.Millisecond
	cfg.LoopPause = time.Duration(p.Control.LoopPauseUS) * time.Microsecond
	if p.Timer.TickHz > 0 {
		cfg.TickHz = uint32(p.Timer.TickHz)
	}
	return cfg, nil
}

func parsePolicy(s string) (core.TimeoutPolicy, error) {
	switch strings.ToLower(s) {
	case "", core.FallbackOff.String():
		return core.FallbackOff, nil
	case core.HoldLast.String():
		return core.HoldLast, nil
	}
	return 0, fmt.Errorf("profile: unknown timeout policy %q", s)
}
