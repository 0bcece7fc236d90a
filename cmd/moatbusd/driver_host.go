//go:build !tinygo

package main

import "moatbus/internal/halgpio"

// newLocalDriver backs the wire driver with HostPins, an in-memory
// stand-in for real GPIO, when moatbusd is built as an ordinary host
// binary rather than flashed to a microcontroller. Production
// deployments on real hardware should build with tinygo instead, which
// picks up driver_tinygo.go's MCUPins-backed driver.
func newLocalDriver(nWires int) (halgpio.Driver, error) {
	pins := make([]halgpio.WirePin, nWires)
	for i := range pins {
		pins[i] = halgpio.WirePin(i)
	}
	return halgpio.NewPinArray(halgpio.NewHostPins(), pins)
}
