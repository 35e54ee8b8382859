package protocol

import (
	"bytes"
	"testing"
)

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	scratch.Output([]byte{1, 2, 3})
	if scratch.CurPosition() != 3 {
		t.Errorf("Expected position 3, got %d", scratch.CurPosition())
	}

	scratch.Output([]byte{4, 5})
	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	if got := scratch.Result()[0]; got != 99 {
		t.Errorf("Expected first byte to be 99, got %d", got)
	}

	// Update beyond the written region is ignored
	scratch.Update(10, 1)
	if scratch.CurPosition() != 5 {
		t.Errorf("Update past end moved position to %d", scratch.CurPosition())
	}

	if since := scratch.DataSince(2); !bytes.Equal(since, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2) = %v, want [3 4 5]", since)
	}
	if since := scratch.DataSince(6); since != nil {
		t.Errorf("DataSince past end = %v, want nil", since)
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	big := make([]byte, MessageMax*3)
	scratch.Output(big)
	if scratch.CurPosition() != MessageMax*2 {
		t.Errorf("Overflowing write stored %d bytes, want %d", scratch.CurPosition(), MessageMax*2)
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	written := fifo.Write([]byte{1, 2, 3, 4, 5})
	if written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}
	if fifo.Available() != 5 || fifo.Free() != 4 {
		t.Errorf("Available/Free = %d/%d, want 5/4", fifo.Available(), fifo.Free())
	}

	readBuf := make([]byte, 3)
	if read := fifo.Read(readBuf); read != 3 {
		t.Errorf("Expected to read 3 bytes, read %d", read)
	}
	if !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("Read data mismatch: got %v", readBuf)
	}

	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("After popping 1, expected 1 available, got %d", fifo.Available())
	}
	fifo.Pop(5)
	if !fifo.IsEmpty() {
		t.Errorf("Pop beyond content left %d bytes", fifo.Available())
	}

	fifo.Reset()
	bigData := make([]byte, 12)
	if written = fifo.Write(bigData); written != 9 {
		t.Errorf("Expected to write 9 bytes to size-10 FIFO, wrote %d", written)
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Read(make([]byte, 2))

	if written := fifo.Write([]byte{5, 6}); written != 2 {
		t.Errorf("Expected to write 2 bytes, wrote %d", written)
	}

	// Data must return the wrapped content in order
	if got := fifo.Data(); !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("Wrapped Data() = %v, want [3 4 5 6]", got)
	}

	allData := make([]byte, 4)
	if read := fifo.Read(allData); read != 4 {
		t.Errorf("Expected to read 4 bytes, read %d", read)
	}
	if !bytes.Equal(allData, []byte{3, 4, 5, 6}) {
		t.Errorf("Wrap-around data mismatch: got %v", allData)
	}
}

func TestFifoBufferPeek(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Read(make([]byte, 2))
	fifo.Write([]byte{5, 6})

	// The first peek stops at the end of the storage.
	if got := fifo.Peek(); !bytes.Equal(got, []byte{3, 4, 5}) {
		t.Fatalf("Peek() = %v, want [3 4 5]", got)
	}
	fifo.Pop(3)
	if got := fifo.Peek(); !bytes.Equal(got, []byte{6}) {
		t.Fatalf("Peek() after Pop = %v, want [6]", got)
	}
	fifo.Pop(1)
	if got := fifo.Peek(); len(got) != 0 || !fifo.IsEmpty() {
		t.Errorf("Peek() on empty = %v", got)
	}
}
