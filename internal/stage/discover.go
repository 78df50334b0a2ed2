package stage

import (
	"errors"
	"strings"
)

// ErrDeviceNotFound is returned when no serial device matches the configured
// manufacturer substring.
var ErrDeviceNotFound = errors.New("no matching serial device found")

// Device describes a serial device offered by the OS.
type Device struct {
	Path         string
	Name         string
	Description  string
	Manufacturer string
	Product      string
	VID          string
	PID          string
	SerialNumber string
	IsUSB        bool
}

// Enumerator lists the serial devices currently available.
type Enumerator interface {
	Devices() ([]Device, error)
}

// EnumeratorFunc adapts a function to Enumerator.
type EnumeratorFunc func() ([]Device, error)

// Devices implements Enumerator.
func (f EnumeratorFunc) Devices() ([]Device, error) {
	return f()
}

// Match returns the index of the first device whose manufacturer contains
// substr, or -1. Matching is a plain case-sensitive substring test. An empty
// substr or an empty manufacturer never matches.
func Match(devices []Device, substr string) int {
	if substr == "" {
		return -1
	}
	for i, dev := range devices {
		if dev.Manufacturer == "" {
			continue
		}
		if strings.Contains(dev.Manufacturer, substr) {
			return i
		}
	}
	return -1
}

// Discover enumerates devices and returns the first match.
func Discover(enum Enumerator, substr string) (Device, error) {
	devices, err := enum.Devices()
	if err != nil {
		return Device{}, err
	}
	idx := Match(devices, substr)
	if idx < 0 {
		return Device{}, ErrDeviceNotFound
	}
	return devices[idx], nil
}
