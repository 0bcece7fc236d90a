// Package halgpio adapts MoatBus's wired-OR wire model onto concrete pin
// hardware. A Driver drives and samples the combined state of the bus's
// wires; internal/bus's Callbacks.SetWire/GetWire are implemented on top
// of one.
package halgpio

// WirePin identifies one physical MoatBus wire by index (0 = the
// priority-1 wire, the highest priority), mirroring core.GPIOPin's role as the addressable unit
// a PinDriver operates on.
type WirePin uint32

// Driver drives and samples the combined state of a fixed set of wires.
// Bit i of the value passed to Drive/returned from Sample corresponds to
// wire i. Drive(0) must release every wire to the passive (pulled-up,
// high) level; any set bit pulls that wire low, which is how multiple
// nodes wired-OR onto the same physical line.
type Driver interface {
	Drive(bits uint32) error
	Sample() (uint32, error)
}

// PinDriver is the per-pin primitive a Driver is built from, modeled on
// the teacher's GPIODriver interface but narrowed to the open-drain
// pull-low/release idiom MoatBus wires use instead of Klipper's plain
// digital output.
type PinDriver interface {
	ConfigureOpenDrain(pin WirePin) error
	Pull(pin WirePin, low bool) error
	Read(pin WirePin) (bool, error)
}

// PinArray is a Driver built from a flat slice of wires, each backed by
// one PinDriver pin, matching core.GPIODriver's single-pin-at-a-time
// shape generalized to the N-wire bus.
type PinArray struct {
	pins []WirePin
	drv  PinDriver
}

// NewPinArray configures one open-drain pin per wire and returns the
// resulting Driver.
func NewPinArray(drv PinDriver, pins []WirePin) (*PinArray, error) {
	for _, p := range pins {
		if err := drv.ConfigureOpenDrain(p); err != nil {
			return nil, err
		}
	}
	a := &PinArray{pins: append([]WirePin(nil), pins...), drv: drv}
	if err := a.Drive(0); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *PinArray) Drive(bits uint32) error {
	for i, p := range a.pins {
		low := bits&(1<<uint(i)) != 0
		if err := a.drv.Pull(p, low); err != nil {
			return err
		}
	}
	return nil
}

func (a *PinArray) Sample() (uint32, error) {
	var v uint32
	for i, p := range a.pins {
		low, err := a.drv.Read(p)
		if err != nil {
			return 0, err
		}
		// A line reads high (idle) unless some node, possibly this one,
		// is pulling it low.
		if low {
			v |= 1 << uint(i)
		}
	}
	return v, nil
}

// Global singleton, mirroring core.SetGPIODriver's registration pattern
// for target-specific wiring code. cmd/moatbusd does not use it; it
// builds its Driver directly.
var driver Driver

// SetDriver registers the process-wide Driver that MustDriver returns.
func SetDriver(d Driver) {
	driver = d
}

// MustDriver returns the configured Driver or panics if none was
// registered.
func MustDriver() Driver {
	if driver == nil {
		panic("halgpio: no wire driver configured")
	}
	return driver
}
