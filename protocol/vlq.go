package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqBounds are the ranges a value must fall in to fit in 1..4 bytes.
// Values outside all of them take five.
var vlqBounds = [4]struct{ lo, hi int32 }{
	{-(1 << 5), 3 << 5},
	{-(1 << 12), 3 << 12},
	{-(1 << 19), 3 << 19},
	{-(1 << 26), 3 << 26},
}

// EncodeVLQInt writes v as 1..5 bytes, most significant group first. The
// top two value bits of the first group carry the sign.
func EncodeVLQInt(output OutputBuffer, v int32) {
	n := 5
	for i, b := range vlqBounds {
		if b.lo <= v && v < b.hi {
			n = i + 1
			break
		}
	}
	var buf [5]byte
	for i := 0; i < n; i++ {
		shift := uint(7 * (n - 1 - i))
		buf[i] = byte(v>>shift) & 0x7F
		if i < n-1 {
			buf[i] |= 0x80
		}
	}
	output.Output(buf[:n])
}

// EncodeVLQUint writes an unsigned value. Counters above 1<<31 wrap to
// negative on the wire and decode back to the same uint32.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt reads one VLQ from the front of *data and advances it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}
	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i == 5 {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[i])
		v = v<<7 | c&0x7F
		i++
	}
	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint reads one unsigned VLQ.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}
