package core

import "lightdim/regs"

// Gate names a peripheral clock gate in the SIM.
type Gate uint8

const (
	GateUART0 Gate = iota
	GatePortA
	GatePortB
	GatePortC
	GatePortD
	GatePortE
	GatePIT
	GateADC0
	numGates
)

// PortGate returns the clock gate of a GPIO port.
func PortGate(p regs.Port) Gate {
	return GatePortA + Gate(p)
}

// ClockGater turns peripheral clocks on and off. A peripheral's registers
// fault on access until its gate is enabled.
type ClockGater interface {
	EnableClock(g Gate) error
	DisableClock(g Gate) error
}

type gateBit struct {
	reg   *regs.Register
	field regs.Field
}

var gateBits = [numGates]gateBit{
	GateUART0: {&regs.SIM_SCGC4, regs.SIM_SCGC4_UART0},
	GatePortA: {&regs.SIM_SCGC5, regs.SIM_SCGC5_PORTA},
	GatePortB: {&regs.SIM_SCGC5, regs.SIM_SCGC5_PORTB},
	GatePortC: {&regs.SIM_SCGC5, regs.SIM_SCGC5_PORTC},
	GatePortD: {&regs.SIM_SCGC5, regs.SIM_SCGC5_PORTD},
	GatePortE: {&regs.SIM_SCGC5, regs.SIM_SCGC5_PORTE},
	GatePIT:   {&regs.SIM_SCGC6, regs.SIM_SCGC6_PIT},
	GateADC0:  {&regs.SIM_SCGC6, regs.SIM_SCGC6_ADC0},
}

// ClockGates implements ClockGater over SIM_SCGC4/5/6.
type ClockGates struct {
	bus regs.Bus
}

// NewClockGates returns a gater on bus.
func NewClockGates(bus regs.Bus) *ClockGates {
	return &ClockGates{bus: bus}
}

// EnableClock sets the gate bit.
func (c *ClockGates) EnableClock(g Gate) error {
	return c.set("clock.enable", g, 1)
}

// DisableClock clears the gate bit.
func (c *ClockGates) DisableClock(g Gate) error {
	return c.set("clock.disable", g, 0)
}

// Enabled reports whether the gate bit is set.
func (c *ClockGates) Enabled(g Gate) bool {
	if g >= numGates {
		return false
	}
	b := gateBits[g]
	return regs.Flag(c.bus, b.reg, b.field)
}

func (c *ClockGates) set(op string, g Gate, v uint32) error {
	if g >= numGates {
		return opErr(op, int(g), ErrInvalidConfig)
	}
	b := gateBits[g]
	if _, err := regs.Write(c.bus, b.reg, b.field, v); err != nil {
		return opErr(op, int(g), err)
	}
	return nil
}
