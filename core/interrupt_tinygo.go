//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks the PIT handler (and every other) around state
// shared with it. The returned state must be passed to restoreInterrupts.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
