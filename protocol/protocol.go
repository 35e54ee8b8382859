// Package protocol frames the dimmer's telemetry for a serial link.
//
// A frame is
//
//	len | 0x10|seq | payload... | crc16 hi | crc16 lo | 0x7E
//
// where len counts the whole frame and the CRC covers len, seq and the
// payload. Payload fields are VLQ integers, the first one being the
// message ID.
package protocol

// Version is the telemetry format version reported by the host tools.
const Version = "1"

// Frame layout.
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax is the scratch space one encoder call may fill.
	MessageMax = MessageLengthMax
)

// Message IDs, the first VLQ of every payload.
const (
	MsgTelemetry = 1
	MsgEvent     = 2
)
