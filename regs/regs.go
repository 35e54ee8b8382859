// Package regs describes memory-mapped peripheral registers as data and
// provides the one read-modify-write primitive every driver goes through.
//
// A Register names an address, an access width and the fields it owns. A
// Field names a bit offset, a width, an access kind and the largest legal
// value. Write, Read and Clear consult that description instead of
// open-coding shifts and masks at each call site, so a field can only ever
// be written through the register it belongs to.
package regs

import "errors"

var (
	// ErrFieldRange reports a value outside the field's legal set.
	ErrFieldRange = errors.New("field_value_out_of_range")
	// ErrReadOnly reports a write to a hardware-owned field.
	ErrReadOnly = errors.New("field_read_only")
	// ErrWriteOnly reports a read of a field that does not read back.
	ErrWriteOnly = errors.New("field_write_only")
	// ErrForeignField reports a field used with a register that does not own it.
	ErrForeignField = errors.New("field_not_in_register")
)

// Access describes how software may touch a field.
type Access uint8

const (
	ReadWrite       Access = iota
	ReadOnly               // hardware status, writes rejected
	WriteOneToClear        // writing 1 clears, writing 0 has no effect
	WriteOnly              // set/clear/toggle strobes, reads return nothing useful
)

// Size is the access width of a register in bits.
type Size uint8

const (
	Size8  Size = 8
	Size32 Size = 32
)

// Bus is the raw path to register memory. On the target it is volatile
// MMIO; under test it is a simulated register file.
type Bus interface {
	Load32(addr uintptr) uint32
	Store32(addr uintptr, v uint32)
	Load8(addr uintptr) uint8
	Store8(addr uintptr, v uint8)
}

// Field is one named bit field of a register.
type Field struct {
	Name   string
	Shift  uint8
	Width  uint8
	Access Access
	// Max is the largest legal value. Zero means every value that fits
	// in Width is legal.
	Max uint32
}

// Bits declares a read-write field spanning width bits from shift.
func Bits(name string, shift, width uint8) Field {
	return Field{Name: name, Shift: shift, Width: width}
}

// Bit declares a single read-write bit.
func Bit(name string, shift uint8) Field {
	return Bits(name, shift, 1)
}

// As returns a copy of f with a different access kind.
func (f Field) As(a Access) Field {
	f.Access = a
	return f
}

// Upto returns a copy of f whose legal values stop at max.
func (f Field) Upto(max uint32) Field {
	f.Max = max
	return f
}

// Mask is the in-register mask covered by the field.
func (f Field) Mask() uint32 {
	return f.span() << f.Shift
}

// Limit is the largest value Write accepts for the field.
func (f Field) Limit() uint32 {
	if f.Max != 0 && f.Max < f.span() {
		return f.Max
	}
	return f.span()
}

func (f Field) span() uint32 {
	return uint32((uint64(1) << f.Width) - 1)
}

// Register is one addressable register and the fields it owns.
type Register struct {
	Name   string
	Addr   uintptr
	Size   Size
	Fields []Field
}

// Owns reports whether f is declared on r.
func (r *Register) Owns(f Field) bool {
	for i := range r.Fields {
		g := &r.Fields[i]
		if g.Shift == f.Shift && g.Width == f.Width && g.Name == f.Name {
			return true
		}
	}
	return false
}

// Field looks a field up by name. Registers with repeated per-bit fields
// return the lowest one.
func (r *Register) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Value reads the whole register. Reading has the same side effects as a
// field read, so keep it away from data and status registers.
func (r *Register) Value(b Bus) uint32 {
	return r.load(b)
}

func (r *Register) load(b Bus) uint32 {
	if r.Size == Size8 {
		return uint32(b.Load8(r.Addr))
	}
	return b.Load32(r.Addr)
}

func (r *Register) store(b Bus, v uint32) {
	if r.Size == Size8 {
		b.Store8(r.Addr, uint8(v))
		return
	}
	b.Store32(r.Addr, v)
}

// Write sets field f of register r to v, leaving every other field as it
// was. Illegal values and foreign fields are rejected before the bus is
// touched. changed reports whether the field held a different value
// before the write; the store itself always happens because some
// registers (ADC SC1n) act on every write.
func Write(b Bus, r *Register, f Field, v uint32) (changed bool, err error) {
	if !r.Owns(f) {
		return false, ErrForeignField
	}
	if f.Access == ReadOnly {
		return false, ErrReadOnly
	}
	if v > f.Limit() {
		return false, ErrFieldRange
	}
	mask := f.Mask()
	bits := (v << f.Shift) & mask

	switch f.Access {
	case WriteOneToClear:
		if v == 0 {
			return false, nil
		}
		// Store only this field's mask so sibling flags are not acknowledged.
		old := r.load(b)
		r.store(b, mask)
		return old&mask != 0, nil
	case WriteOnly:
		r.store(b, bits)
		return true, nil
	}

	old := r.load(b)
	r.store(b, (old&^mask)|bits)
	return old&mask != bits, nil
}

// Read returns the right-aligned value of field f.
func Read(b Bus, r *Register, f Field) (uint32, error) {
	if !r.Owns(f) {
		return 0, ErrForeignField
	}
	if f.Access == WriteOnly {
		return 0, ErrWriteOnly
	}
	return (r.load(b) & f.Mask()) >> f.Shift, nil
}

// Clear returns a field to its inactive state: a write of 1 for
// write-one-to-clear flags, a write of 0 otherwise.
func Clear(b Bus, r *Register, f Field) error {
	v := uint32(0)
	if f.Access == WriteOneToClear {
		v = 1
	}
	_, err := Write(b, r, f, v)
	return err
}

// Set writes the field's all-ones value, which for single bits means
// "enable".
func Set(b Bus, r *Register, f Field) error {
	_, err := Write(b, r, f, f.Limit())
	return err
}

// Flag reads a single-bit field as a bool. Errors read as false.
func Flag(b Bus, r *Register, f Field) bool {
	v, err := Read(b, r, f)
	return err == nil && v != 0
}
