package protocol

// CRC16 is the CCITT variant used on the wire (initial value 0xFFFF,
// reflected, no final xor).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		w := uint16(b)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}

// frameCRC reads the big-endian CRC stored in a complete frame.
func frameCRC(frame []byte) uint16 {
	at := len(frame) - MessageTrailerCRC
	return uint16(frame[at])<<8 | uint16(frame[at+1])
}
