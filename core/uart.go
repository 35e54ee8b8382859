package core

import (
	"time"

	"lightdim/regs"
)

// DefaultBaud is the telemetry rate of UART0.
const DefaultBaud = 115200

// uartSourceFLL selects MCGFLLCLK as the UART0 clock in SIM_SOPT2.
const uartSourceFLL = 1

// maxBaudError is the largest baud error accepted, in percent.
const maxBaudError = 3

// txTimeout bounds the wait for one byte, about 20 byte times at
// DefaultBaud.
const txTimeout = 2 * time.Millisecond

// BaudDivisors picks the UART0 oversampling ratio (C4 OSR) and baud
// modulo (SBR) closest to baud. Ratios below 8 need both-edge sampling and
// are not considered.
func BaudDivisors(clockHz, baud uint32) (osr, sbr uint32, err error) {
	if clockHz == 0 || baud == 0 {
		return 0, 0, ErrInvalidConfig
	}
	best := ^uint32(0)
	for o := uint32(7); o <= 31; o++ {
		div := (o + 1) * baud
		s := (clockHz + div/2) / div
		if s == 0 || s > 0x1FFF {
			continue
		}
		actual := clockHz / ((o + 1) * s)
		e := actual - baud
		if actual < baud {
			e = baud - actual
		}
		if e <= best {
			best, osr, sbr = e, o, s
		}
	}
	if best == ^uint32(0) || uint64(best)*100 > uint64(baud)*maxBaudError {
		return 0, 0, ErrInvalidConfig
	}
	return osr, sbr, nil
}

// UART0 TX is PTA2, wired to the OpenSDA virtual COM port.
const (
	UARTTxPort = regs.PortA
	UARTTxPin  = 2
)

// OpenTelemetryUART gates UART0 and its pin port, routes PTA2 to UART0 TX
// and configures the transmitter for baud.
func OpenTelemetryUART(bus regs.Bus, clockHz, baud uint32) (*UART, error) {
	gates := NewClockGates(bus)
	for _, g := range [...]Gate{PortGate(UARTTxPort), GateUART0} {
		if err := gates.EnableClock(g); err != nil {
			return nil, err
		}
	}
	if err := NewPins(bus).Mux(UARTTxPort, UARTTxPin, muxUART0); err != nil {
		return nil, err
	}
	u := NewUART(bus)
	if err := u.Configure(clockHz, baud); err != nil {
		return nil, err
	}
	return u, nil
}

// UART is a transmit-only, polled UART0 used for telemetry and debug text.
type UART struct {
	bus regs.Bus
}

// NewUART returns a UART0 writer on bus. UART0's clock gate must be on
// before Configure.
func NewUART(bus regs.Bus) *UART {
	return &UART{bus: bus}
}

// Configure selects the FLL clock, programs the divisors for baud and
// enables the transmitter. The transmitter is held off while the
// divisors change.
func (u *UART) Configure(clockHz, baud uint32) error {
	const op = "uart.configure"
	osr, sbr, err := BaudDivisors(clockHz, baud)
	if err != nil {
		return opErr(op, 0, err)
	}
	steps := [...]struct {
		r *regs.Register
		fieldValue
	}{
		{&regs.UART0_C2, fieldValue{regs.UART0_C2_TE, 0}},
		{&regs.UART0_C2, fieldValue{regs.UART0_C2_RE, 0}},
		{&regs.SIM_SOPT2, fieldValue{regs.SIM_SOPT2_UART0SRC, uartSourceFLL}},
		{&regs.UART0_C4, fieldValue{regs.UART0_C4_OSR, osr}},
		{&regs.UART0_BDH, fieldValue{regs.UART0_BDH_SBR, sbr >> 8}},
		{&regs.UART0_BDL, fieldValue{regs.UART0_BDL_SBR, sbr & 0xFF}},
		{&regs.UART0_C2, fieldValue{regs.UART0_C2_TE, 1}},
	}
	for _, s := range steps {
		if _, err := regs.Write(u.bus, s.r, s.f, s.v); err != nil {
			return opErr(op, 0, err)
		}
	}
	return nil
}

// Write sends p byte by byte, waiting up to txTimeout for the data register
// to empty before each one. It implements io.Writer.
func (u *UART) Write(p []byte) (int, error) {
	for i, c := range p {
		if err := u.writeByte(c); err != nil {
			return i, opErr("uart.write", 0, err)
		}
	}
	return len(p), nil
}

// WriteString sends s and a line break. Its signature matches
// DebugWriter. The rest of the line is dropped once a byte times out.
func (u *UART) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		if u.writeByte(s[i]) != nil {
			return
		}
	}
	if u.writeByte('\r') == nil {
		u.writeByte('\n')
	}
}

// TryWrite sends bytes from p for as long as the data register is empty
// and returns how many went out. It never waits.
func (u *UART) TryWrite(p []byte) int {
	n := 0
	for n < len(p) && u.ready() {
		if _, err := regs.Write(u.bus, &regs.UART0_D, regs.UART0_D_RT, uint32(p[n])); err != nil {
			break
		}
		n++
	}
	return n
}

func (u *UART) ready() bool {
	return regs.Flag(u.bus, &regs.UART0_S1, regs.UART0_S1_TDRE)
}

func (u *UART) writeByte(c byte) error {
	if !u.ready() {
		deadline := time.Now().Add(txTimeout)
		for !u.ready() {
			if !time.Now().Before(deadline) {
				return ErrTransmitTimeout
			}
		}
	}
	_, err := regs.Write(u.bus, &regs.UART0_D, regs.UART0_D_RT, uint32(c))
	return err
}
