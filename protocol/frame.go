package protocol

import "errors"

// ErrFrameTooLong is returned when a payload does not fit in one frame.
var ErrFrameTooLong = errors.New("frame exceeds MessageLengthMax")

// Encoder frames payloads with a rolling 4-bit sequence number.
type Encoder struct {
	seq uint8
}

// EncodeFrame writes one frame to output. payload fills the body. If the
// body makes the frame longer than MessageLengthMax the partial frame is
// still in output and ErrFrameTooLong is returned; the caller should
// discard the buffer.
func (e *Encoder) EncodeFrame(output OutputBuffer, payload func(OutputBuffer)) error {
	cursor := output.CurPosition()
	output.Output([]byte{0, MessageDest | e.seq})
	payload(output)

	n := len(output.DataSince(cursor)) + MessageTrailerSize
	if n > MessageLengthMax {
		return ErrFrameTooLong
	}
	output.Update(cursor, uint8(n))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	e.seq = (e.seq + 1) & MessageSeqMask
	return nil
}

// Frame is one decoded frame.
type Frame struct {
	Seq     uint8 // low four bits of the sequence byte
	Payload []byte
}

// DecoderStats counts what the decoder threw away.
type DecoderStats struct {
	Frames    uint32
	BadCRC    uint32
	BadHeader uint32
	Skipped   uint32 // bytes discarded while resynchronising
	Lost      uint32 // frames missing according to the sequence numbers
}

// Decoder extracts frames from a byte stream that may start mid-frame or
// contain line noise. It resynchronises on the 0x7E trailer byte.
type Decoder struct {
	in      InputBuffer
	synced  bool
	haveSeq bool
	lastSeq uint8
	stats   DecoderStats
}

// NewDecoder reads frames from in. A FifoBuffer fed by the serial reader
// is the usual input.
func NewDecoder(in InputBuffer) *Decoder {
	return &Decoder{in: in}
}

// Next returns the next complete frame, or false when more bytes are
// needed. The payload is a copy and stays valid after further calls.
func (d *Decoder) Next() (Frame, bool) {
	for {
		data := d.in.Data()
		if len(data) == 0 {
			return Frame{}, false
		}

		if !d.synced {
			i := indexSync(data)
			if i < 0 {
				d.stats.Skipped += uint32(len(data))
				d.in.Pop(len(data))
				return Frame{}, false
			}
			d.stats.Skipped += uint32(i)
			d.in.Pop(i + 1)
			d.synced = true
			continue
		}

		if data[0] == MessageValueSync {
			d.in.Pop(1)
			continue
		}
		if len(data) < MessageLengthMin {
			return Frame{}, false
		}

		n := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if n < MessageLengthMin || n > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			d.stats.BadHeader++
			d.synced = false
			continue
		}
		if len(data) < n {
			return Frame{}, false
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			d.stats.BadHeader++
			d.synced = false
			continue
		}
		if frameCRC(data[:n]) != CRC16(data[:n-MessageTrailerSize]) {
			d.stats.BadCRC++
			d.synced = false
			continue
		}

		f := Frame{
			Seq:     seq & MessageSeqMask,
			Payload: append([]byte(nil), data[MessageHeaderSize:n-MessageTrailerSize]...),
		}
		d.in.Pop(n)
		d.track(f.Seq)
		return f, true
	}
}

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

func (d *Decoder) track(seq uint8) {
	d.stats.Frames++
	if d.haveSeq {
		if gap := (seq - d.lastSeq - 1) & MessageSeqMask; gap != 0 {
			d.stats.Lost += uint32(gap)
		}
	}
	d.lastSeq = seq
	d.haveSeq = true
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}
