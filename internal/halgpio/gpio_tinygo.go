//go:build tinygo

package halgpio

import "machine"

// MCUPins is a PinDriver over the microcontroller's own GPIO, configured
// open-drain with an internal pull-up so a released wire reads high and
// a driven wire pulls it to ground, matching the teacher's
// ConfigureInputPullUp/SetPin split but collapsed into one pin mode
// since MoatBus toggles each pin between output-low and input-pullup
// rather than holding it as a plain output.
type MCUPins struct{}

func (MCUPins) ConfigureOpenDrain(pin WirePin) error {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return nil
}

func (MCUPins) Pull(pin WirePin, low bool) error {
	p := machine.Pin(pin)
	if low {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	} else {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	return nil
}

func (MCUPins) Read(pin WirePin) (bool, error) {
	p := machine.Pin(pin)
	return !p.Get(), nil
}
