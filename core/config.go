package core

import (
	"time"

	"lightdim/regs"
)

// Board constants for the FRDM-KL46Z reference build.
const (
	DefaultBusClockHz     = 20971520
	DefaultTickHz         = 10000 // 100 Hz PWM at CycleLength ticks
	DefaultTelemetryEvery = 1000
	DefaultLoopPause      = 10 * time.Microsecond
)

// Config is the complete startup configuration of a Dimmer.
//
// Clock, Converter and Timer are required. Everything else falls back to
// the reference board values in applyDefaults.
type Config struct {
	Clock       *ClockSourceConfig
	Converter   *ConverterSlotConfig
	Timer       *TimerChannelConfig
	TimerModule TimerModuleConfig

	LED          PinConfig
	LEDActiveLow bool

	// Gates lists extra clock gates. The PIT, ADC0 and LED port gates are
	// always enabled.
	Gates []Gate

	Thresholds        Thresholds
	ConversionTimeout time.Duration
	TimeoutPolicy     TimeoutPolicy

	// TelemetryEvery emits a status frame every N control steps, 0 disables.
	TelemetryEvery uint32

	// BusClockHz and TickHz compute Timer.LoadValue when it is 0.
	BusClockHz uint32
	TickHz     uint32

	// LoopPause is slept after every control step so other goroutines run.
	LoopPause time.Duration
}

// DefaultConfig returns the FRDM-KL46Z reference configuration: photosensor
// on DADP3 through slot A in 8-bit mode, green LED on PTD5 (active low),
// PIT channel 0 ticking at DefaultTickHz.
func DefaultConfig() *Config {
	return &Config{
		Clock: &ClockSourceConfig{
			Source:     ClockBus,
			Divider:    Div8,
			Resolution: Resolution8Bit,
			SampleTime: SampleShort,
		},
		Converter: &ConverterSlotConfig{
			Slot:         0,
			Differential: false,
			InputChannel: DADP3,
		},
		Timer: &TimerChannelConfig{
			Index:            0,
			Enabled:          true,
			InterruptEnabled: true,
		},
		TimerModule: TimerModuleConfig{Enabled: true, FreezeInDebug: true},
		LED: PinConfig{
			Port:      regs.PortD,
			Pin:       5,
			Direction: Output,
		},
		LEDActiveLow:   true,
		Thresholds:     DefaultThresholds(),
		TimeoutPolicy:  FallbackOff,
		TelemetryEvery: DefaultTelemetryEvery,
		BusClockHz:     DefaultBusClockHz,
		TickHz:         DefaultTickHz,
		LoopPause:      DefaultLoopPause,
	}
}

// applyDefaults fills zero values with reference values. It never touches
// the required pointers.
func (c *Config) applyDefaults() {
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = DefaultThresholds()
	}
	if c.ConversionTimeout <= 0 {
		c.ConversionTimeout = DefaultConversionTimeout
	}
	if c.BusClockHz == 0 {
		c.BusClockHz = DefaultBusClockHz
	}
	if c.TickHz == 0 {
		c.TickHz = DefaultTickHz
	}
}

// Validate checks the configuration without touching hardware.
func (c *Config) Validate() error {
	const op = "config"
	if c == nil || c.Clock == nil || c.Converter == nil || c.Timer == nil {
		return opErr(op, -1, ErrNullConfiguration)
	}
	if int(c.Timer.Index) >= regs.PITChannels {
		return opErr(op, int(c.Timer.Index), ErrInvalidChannelIndex)
	}
	if int(c.Converter.Slot) >= regs.ADCSlots {
		return opErr(op, int(c.Converter.Slot), ErrInvalidChannelIndex)
	}
	if c.Converter.Slot != 0 {
		// SC1B converts on hardware triggers only; the loop triggers by software.
		return opErr(op, int(c.Converter.Slot), ErrInvalidConfig)
	}
	if ch := c.Converter.InputChannel; ch == ChannelDisabled || ResolveInputChannel(ch, c.Converter.Differential) != ch {
		return opErr(op, int(c.Converter.Slot), ErrInvalidInputChannel)
	}
	if err := c.Clock.validate(); err != nil {
		return opErr(op+".clock", -1, err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return opErr(op+".thresholds", -1, err)
	}
	if c.TimeoutPolicy > HoldLast {
		return opErr(op+".policy", -1, ErrInvalidConfig)
	}
	if c.LED.Direction != Output {
		return opErr(op+".led", int(c.LED.Pin), ErrInvalidConfig)
	}
	if err := checkPin(c.LED.Port, c.LED.Pin); err != nil {
		return opErr(op+".led", int(c.LED.Pin), err)
	}
	if c.LED.Pull > PullUp {
		return opErr(op+".led", int(c.LED.Pin), ErrInvalidConfig)
	}
	for _, g := range c.Gates {
		if g >= numGates {
			return opErr(op+".gates", int(g), ErrInvalidConfig)
		}
	}
	if c.Timer.LoadValue == 0 && LoadValueFor(c.BusClockHz, c.TickHz) == 0 {
		return opErr(op+".timer", int(c.Timer.Index), ErrInvalidConfig)
	}
	return nil
}
