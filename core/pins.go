package core

import (
	"errors"

	"lightdim/regs"
)

// ErrInvalidPin is returned for a port or pin outside the KL46Z range.
var ErrInvalidPin = errors.New("invalid_pin")

// PORTx_PCRn MUX alternatives used on this board.
const (
	muxGPIO  = 1
	muxUART0 = 2 // PTA1 RX, PTA2 TX
)

// Pins implements PinConfigurator and PinDriver over the PORT and GPIO
// register blocks.
type Pins struct {
	bus regs.Bus
}

// NewPins returns a pin driver on bus.
func NewPins(bus regs.Bus) *Pins {
	return &Pins{bus: bus}
}

// ConfigurePin muxes the pin to GPIO, applies the pull, latches the
// initial output level and only then sets the direction, so an output
// never glitches to the wrong level.
func (p *Pins) ConfigurePin(cfg *PinConfig) error {
	const op = "pin.configure"
	if cfg == nil {
		return opErr(op, -1, ErrNullConfiguration)
	}
	if err := checkPin(cfg.Port, cfg.Pin); err != nil {
		return opErr(op, int(cfg.Pin), err)
	}
	if cfg.Pull > PullUp {
		return opErr(op, int(cfg.Pin), ErrInvalidConfig)
	}

	pcr := regs.PCR(cfg.Port, cfg.Pin)
	steps := [...]fieldValue{
		{regs.PORT_PCR_MUX, muxGPIO},
		{regs.PORT_PCR_PE, b2u(cfg.Pull != PullNone)},
		{regs.PORT_PCR_PS, b2u(cfg.Pull == PullUp)},
	}
	for _, s := range steps {
		if _, err := regs.Write(p.bus, &pcr, s.f, s.v); err != nil {
			return opErr(op, int(cfg.Pin), err)
		}
	}

	if cfg.Direction == Output {
		if err := p.SetPin(cfg.Port, cfg.Pin, cfg.InitialHigh); err != nil {
			return err
		}
	}
	g := &regs.GPIO[cfg.Port]
	if _, err := regs.Write(p.bus, &g.PDDR, regs.GPIOPin(cfg.Pin), b2u(cfg.Direction == Output)); err != nil {
		return opErr(op, int(cfg.Pin), err)
	}
	return nil
}

// SetPin drives an output through the set/clear strobes so the other pins
// of the port are never read back and rewritten.
func (p *Pins) SetPin(port regs.Port, pin uint8, high bool) error {
	if err := checkPin(port, pin); err != nil {
		return opErr("pin.set", int(pin), err)
	}
	g := &regs.GPIO[port]
	r := &g.PCOR
	if high {
		r = &g.PSOR
	}
	if _, err := regs.Write(p.bus, r, regs.GPIOStrobe(pin), 1); err != nil {
		return opErr("pin.set", int(pin), err)
	}
	return nil
}

// GetPin reads the pin's input level.
func (p *Pins) GetPin(port regs.Port, pin uint8) (bool, error) {
	if err := checkPin(port, pin); err != nil {
		return false, opErr("pin.get", int(pin), err)
	}
	v, err := regs.Read(p.bus, &regs.GPIO[port].PDIR, regs.GPIOInput(pin))
	if err != nil {
		return false, opErr("pin.get", int(pin), err)
	}
	return v != 0, nil
}

// Mux routes a pin to alternative function alt without touching its pull
// or direction.
func (p *Pins) Mux(port regs.Port, pin uint8, alt uint8) error {
	if err := checkPin(port, pin); err != nil {
		return opErr("pin.mux", int(pin), err)
	}
	pcr := regs.PCR(port, pin)
	if _, err := regs.Write(p.bus, &pcr, regs.PORT_PCR_MUX, uint32(alt)); err != nil {
		return opErr("pin.mux", int(pin), err)
	}
	return nil
}

func checkPin(port regs.Port, pin uint8) error {
	if port >= regs.NumPorts || pin >= regs.PinsPerPort {
		return ErrInvalidPin
	}
	return nil
}

// LED is the dimmer's actuator: one output pin with a configurable active
// polarity.
type LED struct {
	pins      PinDriver
	port      regs.Port
	pin       uint8
	activeLow bool
	level     Level
}

// NewLED wraps one output pin. The FRDM-KL46Z LEDs are active low.
func NewLED(pins PinDriver, port regs.Port, pin uint8, activeLow bool) *LED {
	return &LED{pins: pins, port: port, pin: pin, activeLow: activeLow}
}

// Drive sets the pin to the electrical level that represents lvl.
func (l *LED) Drive(lvl Level) error {
	high := lvl == Active
	if l.activeLow {
		high = !high
	}
	if err := l.pins.SetPin(l.port, l.pin, high); err != nil {
		return err
	}
	l.level = lvl
	return nil
}

// Level returns the last level driven.
func (l *LED) Level() Level {
	return l.level
}

// InactiveHigh reports the electrical level of the off state, for the
// pin's InitialHigh setting.
func (l *LED) InactiveHigh() bool {
	return l.activeLow
}
