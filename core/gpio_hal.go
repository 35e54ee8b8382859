package core

import "lightdim/regs"

// Direction of a digital pin.
type Direction uint8

const (
	Input Direction = iota
	Output
)

// Pull selects the pin's internal resistor.
type Pull uint8

const (
	PullNone Pull = iota
	PullDown
	PullUp
)

// PinConfig describes one GPIO pin's setup.
type PinConfig struct {
	Port        regs.Port
	Pin         uint8
	Direction   Direction
	Pull        Pull
	InitialHigh bool // output level latched before the pin turns into an output
}

// PinConfigurator sets a pin's mux, pull and direction.
type PinConfigurator interface {
	ConfigurePin(cfg *PinConfig) error
}

// PinDriver is the abstract digital output/input interface the control
// loop drives the actuator through.
type PinDriver interface {
	// SetPin sets the pin to high (true) or low (false)
	SetPin(port regs.Port, pin uint8, high bool) error

	// GetPin reads the current pin state
	GetPin(port regs.Port, pin uint8) (bool, error)
}
