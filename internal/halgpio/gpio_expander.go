//go:build tinygo

package halgpio

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/pcf8574"
)

// ExpanderPins is a PinDriver backed by a PCF8574 I2C GPIO expander, for
// boards whose MCU doesn't have enough spare pins for a wide bus. The
// expander's open-drain quasi-bidirectional ports already match
// MoatBus's pull-low/release wire semantics: writing 1 releases a port
// to its pulled-up idle state, writing 0 pulls it low.
type ExpanderPins struct {
	dev pcf8574.Device
	// shadow tracks the last written port byte, since the PCF8574 has no
	// separate direction register: every Pull must resend the full byte
	// with only the target bit changed.
	shadow uint8
}

// NewExpanderPins wraps an already-configured I2C bus device at addr.
func NewExpanderPins(bus drivers.I2C, addr uint8) *ExpanderPins {
	e := &ExpanderPins{dev: pcf8574.New(bus, addr), shadow: 0xFF}
	return e
}

func (e *ExpanderPins) ConfigureOpenDrain(pin WirePin) error {
	e.dev.Configure()
	return e.dev.WriteGPIO(e.shadow)
}

func (e *ExpanderPins) Pull(pin WirePin, low bool) error {
	bit := uint8(1) << uint(pin)
	if low {
		e.shadow &^= bit
	} else {
		e.shadow |= bit
	}
	return e.dev.WriteGPIO(e.shadow)
}

func (e *ExpanderPins) Read(pin WirePin) (bool, error) {
	v, err := e.dev.ReadGPIO()
	if err != nil {
		return false, err
	}
	bit := uint8(1) << uint(pin)
	return v&bit == 0, nil
}
