//go:build !linux

package simulate

import "errors"

// GPIOMirror is only available on Linux.
type GPIOMirror struct{}

// OpenGPIOMirror always fails off Linux.
func OpenGPIOMirror(GPIOProfile) (*GPIOMirror, error) {
	return nil, errors.New("gpio mirror requires linux")
}

func (*GPIOMirror) Set(bool) error { return nil }

func (*GPIOMirror) Close() error { return nil }
