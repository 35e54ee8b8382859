//go:build kl46z

package main

import (
	"device/arm"
	"runtime/interrupt"

	"lightdim/regs"
)

// installTimerISR routes the PIT vector to the dimmer. The NVIC line
// itself is enabled by Dimmer.Init once the timer is configured.
func installTimerISR() {
	interrupt.New(regs.IRQ_PIT, func(interrupt.Interrupt) {
		dimmer.HandleInterrupt()
	})
}

func sleepForever() {
	arm.Asm("wfi")
}
