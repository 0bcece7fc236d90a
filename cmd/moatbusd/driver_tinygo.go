//go:build tinygo

package main

import "moatbus/internal/halgpio"

// newLocalDriver backs the wire driver with the microcontroller's own
// GPIO pins, numbered 0..nWires-1, when moatbusd is cross-compiled with
// tinygo for a real board.
func newLocalDriver(nWires int) (halgpio.Driver, error) {
	pins := make([]halgpio.WirePin, nWires)
	for i := range pins {
		pins[i] = halgpio.WirePin(i)
	}
	return halgpio.NewPinArray(halgpio.MCUPins{}, pins)
}
