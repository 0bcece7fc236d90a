//go:build !tinygo

package halgpio

import "sync"

// HostPins is an in-memory PinDriver for running a Handler on the host
// without real hardware. cmd/moatbusd's host build and this package's
// own test wrap it in a PinArray, the same wiring path hardware builds
// use.
type HostPins struct {
	mu   sync.Mutex
	low  map[WirePin]bool
}

func NewHostPins() *HostPins {
	return &HostPins{low: map[WirePin]bool{}}
}

func (h *HostPins) ConfigureOpenDrain(pin WirePin) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.low[pin] = false
	return nil
}

func (h *HostPins) Pull(pin WirePin, low bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.low[pin] = low
	return nil
}

func (h *HostPins) Read(pin WirePin) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.low[pin], nil
}
