// Package device provides the device bus of the reversible CPU, and the
// peripherals that can be attached to it.
//
// The set of devices is closed: only types in this package implement
// Device.
package device

import (
	"iter"
)

// Device is a peripheral attached to the Bus.
type Device interface {
	// Name returns the short name of the device kind.
	Name() string
	// Read takes a value from the device.
	Read() uint16
	// Write gives a value to the device.
	Write(value uint16)
	// Reset returns the device to its power-on state.
	Reset()
	// Dump returns an iterator of lines describing the device state.
	Dump() iter.Seq[string]

	device()
}
