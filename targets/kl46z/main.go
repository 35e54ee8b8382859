//go:build kl46z

// Firmware for the FRDM-KL46Z light-following dimmer. The green LED on
// PTD5 is dimmed in proportion to the ambient light seen by the
// photosensor on ADC0 DADP3; status frames go out on UART0.
//
// Build with: tinygo flash -target=./targets/kl46z/kl46z.json ./targets/kl46z
package main

import (
	"lightdim/core"
	"lightdim/regs"
)

// debugText mixes plain-text diagnostics into the telemetry stream. The
// host decoder skips them, at the cost of resynchronising after each line.
const debugText = false

var dimmer *core.Dimmer

func main() {
	bus := regs.MMIO{}

	uart, err := core.OpenTelemetryUART(bus, core.DefaultBusClockHz, core.DefaultBaud)
	if err == nil {
		core.SetDebugWriter(uart.WriteString)
		core.SetDebugEnabled(debugText)
		core.InitAsyncDebug()
	}

	dimmer = core.NewDimmer(bus, core.NVIC{})
	if uart != nil {
		dimmer.SetTelemetry(uart)
	}
	installTimerISR()

	if err := dimmer.Init(core.DefaultConfig()); err != nil {
		core.DebugPrintln("[DIM] init failed: " + err.Error())
		core.DumpEventRing()
		core.DumpRegisters(bus, core.GateRegisters...)
		// Nothing to dim without a timer or converter; leave the LED off.
		for {
			sleepForever()
		}
	}
	dimmer.RunForever()
}
