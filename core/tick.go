package core

import "sync/atomic"

// CycleLength is the number of ticks in one software PWM period.
const CycleLength = 100

// TickCounter is the free-running PWM phase. The tick callback is its only
// writer and runs in interrupt context; the control loop only reads it.
// Both sides go through sync/atomic so the loop never works from a cached
// value.
type TickCounter struct {
	value uint32
}

// Advance moves the counter one tick, wrapping to 0 on reaching
// CycleLength.
func (t *TickCounter) Advance() {
	next := atomic.LoadUint32(&t.value) + 1
	if next >= CycleLength {
		next = 0
	}
	atomic.StoreUint32(&t.value, next)
}

// Load returns the current tick in [0, CycleLength-1].
func (t *TickCounter) Load() uint32 {
	return atomic.LoadUint32(&t.value)
}

// Reset puts the counter back to the start of a cycle. Only call it while
// the timer interrupt is stopped.
func (t *TickCounter) Reset() {
	atomic.StoreUint32(&t.value, 0)
}
