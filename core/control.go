package core

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Thresholds bound the light range that is dimmed proportionally. At or
// below Low the LED is off, at or above High it is fully on.
type Thresholds struct {
	Low  uint16
	High uint16
}

// DefaultThresholds returns the reference calibration, 0xC0..0xF0.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0xC0, High: 0xF0}
}

// Validate requires a non-empty interpolation range.
func (t Thresholds) Validate() error {
	if t.Low >= t.High {
		return ErrInvalidConfig
	}
	return nil
}

// Duty maps a light reading to a duty cycle in ticks, 0..CycleLength.
// The result never decreases as v increases.
func (t Thresholds) Duty(v uint16) uint8 {
	switch {
	case v <= t.Low:
		return 0
	case v >= t.High:
		return CycleLength
	}
	return uint8(uint32(v-t.Low) * CycleLength / uint32(t.High-t.Low))
}

// Level is the logical actuator state, independent of pin polarity.
type Level uint8

const (
	Inactive Level = iota
	Active
)

func (l Level) String() string {
	if l == Active {
		return "active"
	}
	return "inactive"
}

// LevelAt returns the PWM output for a tick of the cycle. A zero duty is
// off for the whole cycle, CycleLength is on for all of it.
func LevelAt(tick uint32, duty uint8) Level {
	if duty > 0 && tick <= uint32(duty) {
		return Active
	}
	return Inactive
}

// PwmState is the controller's current output.
type PwmState struct {
	DutyTicks uint8
	Level     Level
}

// TimeoutPolicy selects what the loop drives after a failed conversion.
type TimeoutPolicy uint8

const (
	// FallbackOff forces duty 0 and drives the LED inactive.
	FallbackOff TimeoutPolicy = iota
	// HoldLast keeps the last good duty and keeps rendering it.
	HoldLast
)

func (p TimeoutPolicy) String() string {
	if p == HoldLast {
		return "hold-last"
	}
	return "fallback-off"
}

// Actuator is the output the loop renders PWM onto.
type Actuator interface {
	Drive(lvl Level) error
}

// ControllerStats counts loop outcomes.
type ControllerStats struct {
	Steps    uint32
	Timeouts uint32
	Errors   uint32
	Changes  uint32
}

// Controller is one iteration of the sample, map, compare and drive loop.
type Controller struct {
	sensor     drivers.Sensor
	raw        func() uint16
	ticks      *TickCounter
	out        Actuator
	thresholds Thresholds
	policy     TimeoutPolicy

	light uint16
	state PwmState
	valid bool // a sample has completed since start
	stats ControllerStats
}

// NewController wires the loop. The sensor must be the one whose Raw
// returns the value Update produced.
func NewController(sensor *LightSensor, ticks *TickCounter, out Actuator, th Thresholds, policy TimeoutPolicy) *Controller {
	return &Controller{
		sensor:     sensor,
		raw:        sensor.Raw,
		ticks:      ticks,
		out:        out,
		thresholds: th,
		policy:     policy,
	}
}

// Step runs one iteration. On a failed conversion it applies the timeout
// policy, drives the resulting level and returns the conversion error.
func (c *Controller) Step() error {
	c.stats.Steps++

	err := c.sensor.Update(drivers.Luminosity)
	if err != nil {
		if errors.Is(err, ErrConversionTimeout) {
			c.stats.Timeouts++
		} else {
			c.stats.Errors++
		}
		if c.policy == FallbackOff || !c.valid {
			c.setDuty(0)
		}
	} else {
		c.light = c.raw()
		c.valid = true
		c.setDuty(c.thresholds.Duty(c.light))
	}

	c.state.Level = LevelAt(c.ticks.Load(), c.state.DutyTicks)
	if derr := c.out.Drive(c.state.Level); derr != nil && err == nil {
		err = derr
	}
	return err
}

func (c *Controller) setDuty(d uint8) {
	if d == c.state.DutyTicks {
		return
	}
	c.stats.Changes++
	RecordEvent(EvtDutyChange, 0, uint32(c.state.DutyTicks), uint32(d))
	c.state.DutyTicks = d
}

// State returns the current duty and level.
func (c *Controller) State() PwmState {
	return c.state
}

// Light returns the last good reading.
func (c *Controller) Light() uint16 {
	return c.light
}

// Stats returns a copy of the loop counters.
func (c *Controller) Stats() ControllerStats {
	return c.stats
}

