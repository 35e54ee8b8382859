package regs

// Register map of the MKL46Z4 peripherals the dimmer uses. Addresses and
// bit positions follow the KL46 sub-family reference manual (rev 3).

// SIM clock gates.
var (
	SIM_SOPT2_UART0SRC = Bits("UART0SRC", 26, 2)

	SIM_SCGC4_UART0 = Bit("UART0", 10)

	SIM_SCGC5_PORTA = Bit("PORTA", 9)
	SIM_SCGC5_PORTB = Bit("PORTB", 10)
	SIM_SCGC5_PORTC = Bit("PORTC", 11)
	SIM_SCGC5_PORTD = Bit("PORTD", 12)
	SIM_SCGC5_PORTE = Bit("PORTE", 13)

	SIM_SCGC6_PIT  = Bit("PIT", 23)
	SIM_SCGC6_ADC0 = Bit("ADC0", 27)
)

var (
	SIM_SOPT2 = Register{Name: "SIM_SOPT2", Addr: 0x40048004, Size: Size32,
		Fields: []Field{SIM_SOPT2_UART0SRC}}
	SIM_SCGC4 = Register{Name: "SIM_SCGC4", Addr: 0x40048034, Size: Size32,
		Fields: []Field{SIM_SCGC4_UART0}}
	SIM_SCGC5 = Register{Name: "SIM_SCGC5", Addr: 0x40048038, Size: Size32,
		Fields: []Field{SIM_SCGC5_PORTA, SIM_SCGC5_PORTB,
			SIM_SCGC5_PORTC, SIM_SCGC5_PORTD, SIM_SCGC5_PORTE}}
	SIM_SCGC6 = Register{Name: "SIM_SCGC6", Addr: 0x4004803C, Size: Size32,
		Fields: []Field{SIM_SCGC6_PIT, SIM_SCGC6_ADC0}}
)

// PIT: two 32-bit down counters sharing one interrupt line.
const (
	PITBase       = 0x40037000
	PITChannels   = 2
	pitChanStride = 0x10

	// IRQ_PIT is the PIT's line in the Cortex-M0+ vector table. Both
	// channels share it.
	IRQ_PIT = 22
)

var (
	PIT_MCR_FRZ  = Bit("FRZ", 0)
	PIT_MCR_MDIS = Bit("MDIS", 1)

	PIT_LDVAL_TSV = Bits("TSV", 0, 32)
	PIT_CVAL_TVL  = Bits("TVL", 0, 32).As(ReadOnly)

	PIT_TCTRL_TEN = Bit("TEN", 0)
	PIT_TCTRL_TIE = Bit("TIE", 1)
	PIT_TCTRL_CHN = Bit("CHN", 2)

	PIT_TFLG_TIF = Bit("TIF", 0).As(WriteOneToClear)
)

var (
	PIT_MCR = Register{Name: "PIT_MCR", Addr: PITBase, Size: Size32,
		Fields: []Field{PIT_MCR_FRZ, PIT_MCR_MDIS}}

	PIT_LDVAL [PITChannels]Register
	PIT_CVAL  [PITChannels]Register
	PIT_TCTRL [PITChannels]Register
	PIT_TFLG  [PITChannels]Register
)

// ADC0: one converter with two status/control slots (SC1A, SC1B) and a
// result register per slot.
const (
	ADC0Base = 0x4003B000
	ADCSlots = 2
)

var (
	ADC_SC1_ADCH = Bits("ADCH", 0, 5)
	ADC_SC1_DIFF = Bit("DIFF", 5)
	ADC_SC1_AIEN = Bit("AIEN", 6)
	ADC_SC1_COCO = Bit("COCO", 7).As(ReadOnly)

	ADC_CFG1_ADICLK = Bits("ADICLK", 0, 2)
	ADC_CFG1_MODE   = Bits("MODE", 2, 2)
	ADC_CFG1_ADLSMP = Bit("ADLSMP", 4)
	ADC_CFG1_ADIV   = Bits("ADIV", 5, 2)
	ADC_CFG1_ADLPC  = Bit("ADLPC", 7)

	ADC_CFG2_ADLSTS = Bits("ADLSTS", 0, 2)
	ADC_CFG2_MUXSEL = Bit("MUXSEL", 4)

	ADC_R_D = Bits("D", 0, 16).As(ReadOnly)

	ADC_SC2_REFSEL = Bits("REFSEL", 0, 2).Upto(1)
	ADC_SC2_ADTRG  = Bit("ADTRG", 6)
	ADC_SC2_ADACT  = Bit("ADACT", 7).As(ReadOnly)

	ADC_SC3_AVGS = Bits("AVGS", 0, 2)
	ADC_SC3_AVGE = Bit("AVGE", 2)
	ADC_SC3_ADCO = Bit("ADCO", 3)
)

var (
	ADC0_SC1 [ADCSlots]Register
	ADC0_R   [ADCSlots]Register

	ADC0_CFG1 = Register{Name: "ADC0_CFG1", Addr: ADC0Base + 0x08, Size: Size32,
		Fields: []Field{ADC_CFG1_ADICLK, ADC_CFG1_MODE, ADC_CFG1_ADLSMP, ADC_CFG1_ADIV, ADC_CFG1_ADLPC}}
	ADC0_CFG2 = Register{Name: "ADC0_CFG2", Addr: ADC0Base + 0x0C, Size: Size32,
		Fields: []Field{ADC_CFG2_ADLSTS, ADC_CFG2_MUXSEL}}
	ADC0_SC2 = Register{Name: "ADC0_SC2", Addr: ADC0Base + 0x20, Size: Size32,
		Fields: []Field{ADC_SC2_REFSEL, ADC_SC2_ADTRG, ADC_SC2_ADACT}}
	ADC0_SC3 = Register{Name: "ADC0_SC3", Addr: ADC0Base + 0x24, Size: Size32,
		Fields: []Field{ADC_SC3_AVGS, ADC_SC3_AVGE, ADC_SC3_ADCO}}
)

// Port pin control and GPIO.
type Port uint8

const (
	PortA Port = iota
	PortB
	PortC
	PortD
	PortE
	NumPorts
)

const PinsPerPort = 32

var (
	PORT_PCR_PS  = Bit("PS", 0)
	PORT_PCR_PE  = Bit("PE", 1)
	PORT_PCR_MUX = Bits("MUX", 8, 3)
)

var pcrFields = []Field{PORT_PCR_PS, PORT_PCR_PE, PORT_PCR_MUX}

// pinFields holds one single-bit field per pin; GPIO registers are
// pin-per-bit.
var pinFields = func() []Field {
	f := make([]Field, PinsPerPort)
	for i := range f {
		f[i] = Bit("PIN", uint8(i))
	}
	return f
}()

var strobeFields = func() []Field {
	f := make([]Field, PinsPerPort)
	for i := range f {
		f[i] = Bit("PIN", uint8(i)).As(WriteOnly)
	}
	return f
}()

var inputFields = func() []Field {
	f := make([]Field, PinsPerPort)
	for i := range f {
		f[i] = Bit("PIN", uint8(i)).As(ReadOnly)
	}
	return f
}()

// GPIORegs is the register set of one GPIO port.
type GPIORegs struct {
	PDOR, PSOR, PCOR, PTOR, PDIR, PDDR Register
}

var GPIO [NumPorts]GPIORegs

// GPIOPin is the field of pin n in a pin-per-bit read/write register.
func GPIOPin(n uint8) Field { return pinFields[n%PinsPerPort] }

// GPIOStrobe is the field of pin n in PSOR/PCOR/PTOR.
func GPIOStrobe(n uint8) Field { return strobeFields[n%PinsPerPort] }

// GPIOInput is the field of pin n in PDIR.
func GPIOInput(n uint8) Field { return inputFields[n%PinsPerPort] }

var portBase = [NumPorts]uintptr{0x40049000, 0x4004A000, 0x4004B000, 0x4004C000, 0x4004D000}
var gpioBase = [NumPorts]uintptr{0x400FF000, 0x400FF040, 0x400FF080, 0x400FF0C0, 0x400FF100}

// PCR returns the pin control register of pin n on port p.
func PCR(p Port, n uint8) Register {
	return Register{Name: "PORT_PCR", Addr: portBase[p%NumPorts] + uintptr(n%PinsPerPort)*4,
		Size: Size32, Fields: pcrFields}
}

// UART0: 8-bit registers, used for telemetry output.
const UART0Base = 0x4006A000

var (
	UART0_BDH_SBR = Bits("SBR", 0, 5)
	UART0_BDL_SBR = Bits("SBR", 0, 8)
	UART0_C2_RE   = Bit("RE", 2)
	UART0_C2_TE   = Bit("TE", 3)
	UART0_S1_TC   = Bit("TC", 6).As(ReadOnly)
	UART0_S1_TDRE = Bit("TDRE", 7).As(ReadOnly)
	UART0_D_RT    = Bits("RT", 0, 8).As(WriteOnly) // reading D pops receive data
	UART0_C4_OSR  = Bits("OSR", 0, 5).Upto(31)
)

var (
	UART0_BDH = Register{Name: "UART0_BDH", Addr: UART0Base + 0x0, Size: Size8, Fields: []Field{UART0_BDH_SBR}}
	UART0_BDL = Register{Name: "UART0_BDL", Addr: UART0Base + 0x1, Size: Size8, Fields: []Field{UART0_BDL_SBR}}
	UART0_C2  = Register{Name: "UART0_C2", Addr: UART0Base + 0x3, Size: Size8, Fields: []Field{UART0_C2_RE, UART0_C2_TE}}
	UART0_S1  = Register{Name: "UART0_S1", Addr: UART0Base + 0x4, Size: Size8, Fields: []Field{UART0_S1_TC, UART0_S1_TDRE}}
	UART0_D   = Register{Name: "UART0_D", Addr: UART0Base + 0x7, Size: Size8, Fields: []Field{UART0_D_RT}}
	UART0_C4  = Register{Name: "UART0_C4", Addr: UART0Base + 0xA, Size: Size8, Fields: []Field{UART0_C4_OSR}}
)

func init() {
	for n := 0; n < PITChannels; n++ {
		base := uintptr(PITBase + 0x100 + n*pitChanStride)
		PIT_LDVAL[n] = Register{Name: "PIT_LDVAL", Addr: base + 0x0, Size: Size32, Fields: []Field{PIT_LDVAL_TSV}}
		PIT_CVAL[n] = Register{Name: "PIT_CVAL", Addr: base + 0x4, Size: Size32, Fields: []Field{PIT_CVAL_TVL}}
		PIT_TCTRL[n] = Register{Name: "PIT_TCTRL", Addr: base + 0x8, Size: Size32,
			Fields: []Field{PIT_TCTRL_TEN, PIT_TCTRL_TIE, PIT_TCTRL_CHN}}
		PIT_TFLG[n] = Register{Name: "PIT_TFLG", Addr: base + 0xC, Size: Size32, Fields: []Field{PIT_TFLG_TIF}}
	}
	for n := 0; n < ADCSlots; n++ {
		ADC0_SC1[n] = Register{Name: "ADC0_SC1", Addr: uintptr(ADC0Base + n*4), Size: Size32,
			Fields: []Field{ADC_SC1_ADCH, ADC_SC1_DIFF, ADC_SC1_AIEN, ADC_SC1_COCO}}
		ADC0_R[n] = Register{Name: "ADC0_R", Addr: uintptr(ADC0Base + 0x10 + n*4), Size: Size32,
			Fields: []Field{ADC_R_D}}
	}
	for p := Port(0); p < NumPorts; p++ {
		b := gpioBase[p]
		GPIO[p] = GPIORegs{
			PDOR: Register{Name: "GPIO_PDOR", Addr: b + 0x00, Size: Size32, Fields: pinFields},
			PSOR: Register{Name: "GPIO_PSOR", Addr: b + 0x04, Size: Size32, Fields: strobeFields},
			PCOR: Register{Name: "GPIO_PCOR", Addr: b + 0x08, Size: Size32, Fields: strobeFields},
			PTOR: Register{Name: "GPIO_PTOR", Addr: b + 0x0C, Size: Size32, Fields: strobeFields},
			PDIR: Register{Name: "GPIO_PDIR", Addr: b + 0x10, Size: Size32, Fields: inputFields},
			PDDR: Register{Name: "GPIO_PDDR", Addr: b + 0x14, Size: Size32, Fields: pinFields},
		}
	}
}

// Map lists every fixed register in this file, for tests and dumps. Pin
// control registers are generated on demand and are not included.
func Map() []*Register {
	m := []*Register{&SIM_SOPT2, &SIM_SCGC4, &SIM_SCGC5, &SIM_SCGC6, &PIT_MCR,
		&ADC0_CFG1, &ADC0_CFG2, &ADC0_SC2, &ADC0_SC3,
		&UART0_BDH, &UART0_BDL, &UART0_C2, &UART0_S1, &UART0_D, &UART0_C4}
	for n := range PIT_TCTRL {
		m = append(m, &PIT_LDVAL[n], &PIT_CVAL[n], &PIT_TCTRL[n], &PIT_TFLG[n])
	}
	for n := range ADC0_SC1 {
		m = append(m, &ADC0_SC1[n], &ADC0_R[n])
	}
	for p := range GPIO {
		g := &GPIO[p]
		m = append(m, &g.PDOR, &g.PSOR, &g.PCOR, &g.PTOR, &g.PDIR, &g.PDDR)
	}
	return m
}
