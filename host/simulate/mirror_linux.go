//go:build linux

package simulate

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOMirror drives one Linux GPIO line, so a bench LED follows the
// simulated one.
type GPIOMirror struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	activeLow bool
}

// OpenGPIOMirror requests line on chip as an output, initially off.
func OpenGPIOMirror(cfg GPIOProfile) (*GPIOMirror, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", cfg.Chip, err)
	}
	off := 0
	if cfg.ActiveLow {
		off = 1
	}
	line, err := chip.RequestLine(cfg.Line,
		gpiocdev.AsOutput(off),
		gpiocdev.WithConsumer("lightdim-sim"))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request GPIO line %d: %w", cfg.Line, err)
	}
	return &GPIOMirror{chip: chip, line: line, activeLow: cfg.ActiveLow}, nil
}

// Set copies the simulated pin level. The simulated LED is itself active
// low, so high means off; activeLow describes the bench LED.
func (m *GPIOMirror) Set(high bool) error {
	on := !high
	v := 0
	if on != m.activeLow {
		v = 1
	}
	return m.line.SetValue(v)
}

// Close releases the line and the chip.
func (m *GPIOMirror) Close() error {
	err := m.line.Close()
	if cerr := m.chip.Close(); err == nil {
		err = cerr
	}
	return err
}
