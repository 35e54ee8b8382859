//go:build tinygo && kl46z

package core

import "device/arm"

// NVIC enables interrupt lines at the Cortex-M0+ NVIC.
type NVIC struct{}

// EnableIRQ implements IRQController.
func (NVIC) EnableIRQ(irq uint32) {
	arm.EnableIRQ(irq)
}
