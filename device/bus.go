// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package device

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/ezrec/rel/internal"
)

const (
	BUS_LIMIT = 16 // Devices addressable by a 4-bit device field.
)

// Bus is the registry of devices attached to the CPU. Devices are added
// before a run starts, and are never removed.
type Bus struct {
	devices []Device
	sealed  bool
}

// Add attaches a device, returning its bus index.
func (bus *Bus) Add(dev Device) (index int, err error) {
	if bus.sealed {
		err = ErrBusSealed
		return
	}

	if len(bus.devices) >= BUS_LIMIT {
		err = ErrBusFull
		return
	}

	index = len(bus.devices)
	bus.devices = append(bus.devices, dev)

	return
}

// Seal prevents any further devices being added.
func (bus *Bus) Seal() {
	bus.sealed = true
}

// Sealed returns true once the bus accepts no more devices.
func (bus *Bus) Sealed() bool {
	return bus.sealed
}

// Len returns the number of attached devices.
func (bus *Bus) Len() int {
	return len(bus.devices)
}

// Device gets the device at a bus index.
func (bus *Bus) Device(index int) (dev Device, err error) {
	if index < 0 || index >= len(bus.devices) {
		err = ErrDeviceInvalid
		return
	}

	dev = bus.devices[index]
	return
}

// All returns an iterator of the devices by bus index.
func (bus *Bus) All() iter.Seq2[int, Device] {
	return func(yield func(index int, dev Device) bool) {
		for n, dev := range bus.devices {
			if !yield(n, dev) {
				return
			}
		}
	}
}

// Reset resets the state of every device.
func (bus *Bus) Reset() {
	for _, dev := range bus.devices {
		dev.Reset()
	}
}

// Defines yields an assembler equate per device: DEV_<NAME> for the first
// device of a kind, DEV_<NAME>_<INDEX> for the others.
func (bus *Bus) Defines() iter.Seq2[string, string] {
	return func(yield func(name, value string) bool) {
		seen := map[string]bool{}
		for n, dev := range bus.devices {
			name := "DEV_" + strings.ToUpper(dev.Name())
			if seen[name] {
				name = fmt.Sprintf("%s_%d", name, n)
			} else {
				seen[name] = true
			}
			if !yield(name, fmt.Sprintf("%d", n)) {
				return
			}
		}
	}
}

// Dump returns an iterator over the state of all devices.
func (bus *Bus) Dump() iter.Seq[string] {
	var seqs []iter.Seq[string]
	for n, dev := range bus.devices {
		header := fmt.Sprintf("dev %d (%s):", n, dev.Name())
		seqs = append(seqs,
			internal.Single(header),
			internal.Indent("  ", dev.Dump()),
		)
	}

	return internal.Concat(seqs...)
}

// DebugDump writes the state of all devices.
func (bus *Bus) DebugDump(w io.Writer) (err error) {
	for line := range bus.Dump() {
		_, err = fmt.Fprintln(w, line)
		if err != nil {
			return
		}
	}

	return
}
