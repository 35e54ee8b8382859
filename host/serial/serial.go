// Package serial opens the link the dimmer's telemetry arrives on.
package serial

import (
	"io"
)

// Port is a telemetry link. The native implementation wraps
// github.com/tarm/serial; tests use any io.ReadWriteCloser.
type Port interface {
	io.ReadWriteCloser

	// Flush discards nothing and returns once pending writes are out.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path, e.g. /dev/ttyACM0 for the OpenSDA virtual COM port.
	Device string

	// Baud must match the firmware's UART0 setting.
	Baud int

	// ReadTimeout in milliseconds, 0 blocks.
	ReadTimeout int
}

// DefaultBaud is the firmware's UART0 rate.
const DefaultBaud = 115200

// DefaultConfig returns the configuration for a FRDM-KL46Z on device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
