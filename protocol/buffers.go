package protocol

// InputBuffer is a byte source the frame decoder consumes from the front.
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer is a byte sink frames are encoded into. Update patches an
// already written byte, which is how the length field is filled in.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// ScratchOutput is a fixed-size OutputBuffer that never allocates, for
// building frames on the MCU. Writes past the end are dropped.
type ScratchOutput struct {
	buf [MessageMax * 2]byte
	pos int
}

// NewScratchOutput returns an empty scratch buffer.
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset.
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset empties the buffer for the next frame.
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a byte ring for the receive side of a serial link. One
// slot stays free to tell full from empty.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
}

// NewFifoBuffer returns a ring holding up to capacity-1 bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	if capacity < 2 {
		capacity = 2
	}
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns how much that was.
func (f *FifoBuffer) Write(data []byte) int {
	n := f.Free()
	if n > len(data) {
		n = len(data)
	}
	for _, b := range data[:n] {
		f.buf[f.write] = b
		f.write = f.next(f.write)
	}
	return n
}

// Read moves up to len(data) bytes out of the ring.
func (f *FifoBuffer) Read(data []byte) int {
	n := f.Available()
	if n > len(data) {
		n = len(data)
	}
	for i := 0; i < n; i++ {
		data[i] = f.buf[f.read]
		f.read = f.next(f.read)
	}
	return n
}

// Available returns the number of buffered bytes.
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return len(f.buf) - f.read + f.write
}

// Free returns how many more bytes fit.
func (f *FifoBuffer) Free() int {
	return len(f.buf) - 1 - f.Available()
}

// Data returns the buffered bytes as one slice. When the content wraps it
// is copied, so the result must not be written through.
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	out := make([]byte, 0, f.Available())
	out = append(out, f.buf[f.read:]...)
	return append(out, f.buf[:f.write]...)
}

// Peek returns the front of the buffered bytes without copying, stopping
// at the end of the ring storage. After Pop the wrapped rest follows.
func (f *FifoBuffer) Peek() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	return f.buf[f.read:]
}

// Pop discards up to n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	if a := f.Available(); n > a {
		n = a
	}
	f.read = (f.read + n) % len(f.buf)
}

// IsEmpty reports whether nothing is buffered.
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset drops all buffered bytes.
func (f *FifoBuffer) Reset() {
	f.read, f.write = 0, 0
}

func (f *FifoBuffer) next(i int) int {
	i++
	if i == len(f.buf) {
		return 0
	}
	return i
}
