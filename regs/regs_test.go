package regs

import (
	"errors"
	"testing"
)

// memBus is a flat register file with no side effects.
type memBus struct {
	words  map[uintptr]uint32
	bytes  map[uintptr]uint8
	stores int
}

func newMemBus() *memBus {
	return &memBus{words: make(map[uintptr]uint32), bytes: make(map[uintptr]uint8)}
}

func (m *memBus) Load32(a uintptr) uint32     { return m.words[a] }
func (m *memBus) Store32(a uintptr, v uint32) { m.words[a] = v; m.stores++ }
func (m *memBus) Load8(a uintptr) uint8       { return m.bytes[a] }
func (m *memBus) Store8(a uintptr, v uint8)   { m.bytes[a] = v; m.stores++ }

func TestFieldMaskAndLimit(t *testing.T) {
	testCases := []struct {
		f     Field
		mask  uint32
		limit uint32
	}{
		{ADC_SC1_ADCH, 0x1F, 31},
		{ADC_SC1_DIFF, 0x20, 1},
		{ADC_CFG1_MODE, 0x0C, 3},
		{ADC_CFG1_ADIV, 0x60, 3},
		{PIT_LDVAL_TSV, 0xFFFFFFFF, 0xFFFFFFFF},
		{PORT_PCR_MUX, 0x700, 7},
		{ADC_SC2_REFSEL, 0x03, 1},
	}
	for _, tc := range testCases {
		if got := tc.f.Mask(); got != tc.mask {
			t.Errorf("%s mask: expected 0x%X, got 0x%X", tc.f.Name, tc.mask, got)
		}
		if got := tc.f.Limit(); got != tc.limit {
			t.Errorf("%s limit: expected %d, got %d", tc.f.Name, tc.limit, got)
		}
	}
}

func TestWritePreservesSiblings(t *testing.T) {
	bus := newMemBus()
	r := &ADC0_CFG1
	bus.words[r.Addr] = 0xFF

	if _, err := Write(bus, r, ADC_CFG1_MODE, 0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// Zero must clear both MODE bits and nothing else.
	if got := bus.words[r.Addr]; got != 0xF3 {
		t.Errorf("Expected 0xF3 after clearing MODE, got 0x%X", got)
	}

	if _, err := Write(bus, r, ADC_CFG1_ADIV, 2); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := bus.words[r.Addr]; got != 0xD3 {
		t.Errorf("Expected 0xD3 after ADIV=2, got 0x%X", got)
	}
}

func TestWriteRejectsOutOfRange(t *testing.T) {
	bus := newMemBus()
	r := &ADC0_SC2
	bus.words[r.Addr] = 0x40

	_, err := Write(bus, r, ADC_SC2_REFSEL, 2)
	if !errors.Is(err, ErrFieldRange) {
		t.Fatalf("Expected ErrFieldRange, got %v", err)
	}
	_, err = Write(bus, &ADC0_SC1[0], ADC_SC1_ADCH, 32)
	if !errors.Is(err, ErrFieldRange) {
		t.Fatalf("Expected ErrFieldRange for ADCH=32, got %v", err)
	}
	if bus.stores != 0 {
		t.Errorf("Rejected writes touched the bus %d times", bus.stores)
	}
	if bus.words[r.Addr] != 0x40 {
		t.Errorf("Register changed after rejected write: 0x%X", bus.words[r.Addr])
	}
}

func TestWriteRejectsForeignField(t *testing.T) {
	bus := newMemBus()
	// AIEN is an SC1 field; CFG1 must refuse it rather than alias bit 6.
	_, err := Write(bus, &ADC0_CFG1, ADC_SC1_AIEN, 1)
	if !errors.Is(err, ErrForeignField) {
		t.Fatalf("Expected ErrForeignField, got %v", err)
	}
	if bus.stores != 0 {
		t.Errorf("Foreign field write reached the bus")
	}
}

func TestWriteReadOnly(t *testing.T) {
	bus := newMemBus()
	_, err := Write(bus, &ADC0_SC1[0], ADC_SC1_COCO, 1)
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Expected ErrReadOnly, got %v", err)
	}
}

func TestWriteOneToClearStoresOnlyMask(t *testing.T) {
	bus := newMemBus()
	r := &PIT_TFLG[1]
	bus.words[r.Addr] = 0x1

	changed, err := Write(bus, r, PIT_TFLG_TIF, 1)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !changed {
		t.Errorf("Expected changed=true for a set flag")
	}
	// memBus has no W1C behaviour, so the stored word is exactly the mask.
	if got := bus.words[r.Addr]; got != PIT_TFLG_TIF.Mask() {
		t.Errorf("Expected store of mask 0x%X, got 0x%X", PIT_TFLG_TIF.Mask(), got)
	}

	before := bus.stores
	if _, err := Write(bus, r, PIT_TFLG_TIF, 0); err != nil {
		t.Fatalf("Write 0 failed: %v", err)
	}
	if bus.stores != before {
		t.Errorf("Writing 0 to a W1C flag must not store")
	}
}

func TestWriteChangedReport(t *testing.T) {
	bus := newMemBus()
	r := &PIT_TCTRL[0]

	changed, _ := Write(bus, r, PIT_TCTRL_TIE, 1)
	if !changed {
		t.Errorf("First enable should report a change")
	}
	changed, _ = Write(bus, r, PIT_TCTRL_TIE, 1)
	if changed {
		t.Errorf("Second enable should report no change")
	}
}

func TestWriteOnlyStrobe(t *testing.T) {
	bus := newMemBus()
	r := &GPIO[PortD].PSOR
	if _, err := Write(bus, r, GPIOStrobe(5), 1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := bus.words[r.Addr]; got != 1<<5 {
		t.Errorf("Expected PSOR=0x20, got 0x%X", got)
	}
	if _, err := Read(bus, r, GPIOStrobe(5)); !errors.Is(err, ErrWriteOnly) {
		t.Errorf("Expected ErrWriteOnly on strobe read, got %v", err)
	}
}

func TestEightBitRegisters(t *testing.T) {
	bus := newMemBus()
	if _, err := Write(bus, &UART0_C2, UART0_C2_TE, 1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := bus.bytes[UART0_C2.Addr]; got != 0x08 {
		t.Errorf("Expected C2=0x08, got 0x%X", got)
	}
	if len(bus.words) != 0 {
		t.Errorf("8-bit register leaked into 32-bit space")
	}
}

// Every writable field of every register reads back what was written.
func TestRoundTripAllFields(t *testing.T) {
	regsInScope := append(Map(), func() *Register { r := PCR(PortD, 5); return &r }())
	for _, r := range regsInScope {
		for _, f := range r.Fields {
			if f.Access != ReadWrite {
				continue
			}
			for _, v := range []uint32{0, 1, f.Limit() / 2, f.Limit()} {
				bus := newMemBus()
				bus.words[r.Addr] = 0xA5A5A5A5
				bus.bytes[r.Addr] = 0xA5
				if _, err := Write(bus, r, f, v); err != nil {
					t.Fatalf("%s.%s=%d: %v", r.Name, f.Name, v, err)
				}
				got, err := Read(bus, r, f)
				if err != nil {
					t.Fatalf("%s.%s read: %v", r.Name, f.Name, err)
				}
				if got != v {
					t.Errorf("%s.%s: wrote %d, read %d", r.Name, f.Name, v, got)
				}
			}
		}
	}
}

func TestMapAddressesUnique(t *testing.T) {
	seen := make(map[uintptr]string)
	for _, r := range Map() {
		if prev, ok := seen[r.Addr]; ok {
			t.Errorf("%s and %s share address 0x%X", prev, r.Name, r.Addr)
		}
		seen[r.Addr] = r.Name
	}
	t.Logf("%d registers mapped", len(seen))
}

func TestKnownAddresses(t *testing.T) {
	testCases := []struct {
		r    *Register
		addr uintptr
	}{
		{&PIT_TCTRL[0], 0x40037108},
		{&PIT_TFLG[1], 0x4003711C},
		{&PIT_LDVAL[1], 0x40037110},
		{&ADC0_SC1[1], 0x4003B004},
		{&ADC0_R[0], 0x4003B010},
		{&GPIO[PortD].PDDR, 0x400FF0D4},
	}
	for _, tc := range testCases {
		if tc.r.Addr != tc.addr {
			t.Errorf("%s: expected 0x%X, got 0x%X", tc.r.Name, tc.addr, tc.r.Addr)
		}
	}
	if pcr := PCR(PortD, 5); pcr.Addr != 0x4004C014 {
		t.Errorf("PORTD_PCR5: expected 0x4004C014, got 0x%X", pcr.Addr)
	}
}
