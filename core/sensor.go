package core

import (
	"time"

	"tinygo.org/x/drivers"
)

// LightSensor is the photosensor on one converter slot, exposed as a
// tinygo drivers.Sensor so the control loop samples it the same way any
// other driver is sampled.
type LightSensor struct {
	seq          *Sequencer
	slot         uint8
	channel      InputChannel
	differential bool
	timeout      time.Duration

	raw uint16
}

var _ drivers.Sensor = (*LightSensor)(nil)

// NewLightSensor binds a sensor to one slot and input channel.
func NewLightSensor(seq *Sequencer, cfg *ConverterSlotConfig, timeout time.Duration) *LightSensor {
	return &LightSensor{
		seq:          seq,
		slot:         cfg.Slot,
		channel:      cfg.InputChannel,
		differential: cfg.Differential,
		timeout:      timeout,
	}
}

// Update runs one conversion when which includes drivers.Luminosity.
// The cached value only changes on success, so a timed out conversion
// never surfaces as a reading.
func (s *LightSensor) Update(which drivers.Measurement) error {
	if which&drivers.Luminosity == 0 {
		return nil
	}
	if err := s.seq.TriggerAndWait(s.slot, s.channel, s.differential, s.timeout); err != nil {
		return err
	}
	v, err := s.seq.ReadResult(s.slot)
	if err != nil {
		return err
	}
	s.raw = v
	return nil
}

// Raw returns the last converted value, 0..255 in 8-bit mode.
func (s *LightSensor) Raw() uint16 {
	return s.raw
}
