//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqMu stands in for the interrupt mask when the "interrupt" is a
// goroutine driving a simulated board. Critical sections must not nest.
var irqMu sync.Mutex

// disableInterrupts enters a critical section shared with simulated ISRs
func disableInterrupts() State {
	irqMu.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	irqMu.Unlock()
}
