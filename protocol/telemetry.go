package protocol

import "errors"

// ErrUnknownMessage is returned for a payload with an unexpected message ID.
var ErrUnknownMessage = errors.New("unknown message id")

// Telemetry is the periodic status report of the dimmer.
type Telemetry struct {
	Step       uint32 // control iterations since start
	Tick       uint32 // PWM phase when the report was built
	Light      uint16 // last good converter reading
	Duty       uint8  // duty cycle in ticks, 0..100
	Level      uint8  // 1 when the LED was driven active
	Timeouts   uint32
	Interrupts uint32
	Spurious   uint32
	Rewrites   uint32
}

// Encode writes t as a MsgTelemetry payload.
func (t *Telemetry) Encode(output OutputBuffer) {
	for _, v := range [...]uint32{
		MsgTelemetry,
		t.Step,
		t.Tick,
		uint32(t.Light),
		uint32(t.Duty),
		uint32(t.Level),
		t.Timeouts,
		t.Interrupts,
		t.Spurious,
		t.Rewrites,
	} {
		EncodeVLQUint(output, v)
	}
}

// Event mirrors one entry of the firmware's event ring.
type Event struct {
	Type   uint8
	Index  uint8
	Seq    uint32
	Value1 uint32
	Value2 uint32
}

// Encode writes e as a MsgEvent payload.
func (e *Event) Encode(output OutputBuffer) {
	for _, v := range [...]uint32{
		MsgEvent,
		uint32(e.Type),
		uint32(e.Index),
		e.Seq,
		e.Value1,
		e.Value2,
	} {
		EncodeVLQUint(output, v)
	}
}

// MessageID returns the ID of a payload without consuming it.
func MessageID(payload []byte) (uint32, error) {
	return DecodeVLQUint(&payload)
}

// DecodeTelemetry parses a MsgTelemetry payload.
func DecodeTelemetry(payload []byte) (Telemetry, error) {
	var v [10]uint32
	if err := decodeAll(payload, MsgTelemetry, v[:]); err != nil {
		return Telemetry{}, err
	}
	return Telemetry{
		Step:       v[1],
		Tick:       v[2],
		Light:      uint16(v[3]),
		Duty:       uint8(v[4]),
		Level:      uint8(v[5]),
		Timeouts:   v[6],
		Interrupts: v[7],
		Spurious:   v[8],
		Rewrites:   v[9],
	}, nil
}

// DecodeEvent parses a MsgEvent payload.
func DecodeEvent(payload []byte) (Event, error) {
	var v [6]uint32
	if err := decodeAll(payload, MsgEvent, v[:]); err != nil {
		return Event{}, err
	}
	return Event{
		Type:   uint8(v[1]),
		Index:  uint8(v[2]),
		Seq:    v[3],
		Value1: v[4],
		Value2: v[5],
	}, nil
}

func decodeAll(payload []byte, id uint32, out []uint32) error {
	for i := range out {
		v, err := DecodeVLQUint(&payload)
		if err != nil {
			return err
		}
		if i == 0 && v != id {
			return ErrUnknownMessage
		}
		out[i] = v
	}
	return nil
}
