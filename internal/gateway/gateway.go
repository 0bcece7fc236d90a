package gateway

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Gateway owns a serial Port and turns it into a stream of decoded
// Frames, logging resync events the way a host daemon needs visibility
// into a flaky USB-serial link.
type Gateway struct {
	port Port
	rx   Receiver
	log  *log.Logger
}

// New wraps an already-open Port. logger may be nil, in which case a
// default charmbracelet/log logger writing to stderr is used.
func New(port Port, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{port: port, log: logger}
}

// Send encodes and writes one frame.
func (g *Gateway) Send(priority uint8, data []byte) error {
	_, err := g.port.Write(EncodeFrame(priority, data))
	if err != nil {
		return fmt.Errorf("gateway: write: %w", err)
	}
	return g.port.Flush()
}

// ReadLoop blocks, reading from the port and invoking onFrame for every
// frame decoded, until Read returns an error (typically port closure).
func (g *Gateway) ReadLoop(onFrame func(Frame)) error {
	buf := make([]byte, 256)
	for {
		n, err := g.port.Read(buf)
		if err != nil {
			return fmt.Errorf("gateway: read: %w", err)
		}
		if n == 0 {
			continue
		}
		before := len(g.rx.buf)
		frames := g.rx.Feed(buf[:n])
		skipped := before + n - len(g.rx.buf) - totalFrameBytes(frames)
		if skipped > 0 {
			g.log.Warn("gateway: discarded garbage bytes while resynchronizing", "bytes", skipped)
		}
		for _, f := range frames {
			onFrame(f)
		}
	}
}

func totalFrameBytes(frames []Frame) int {
	n := 0
	for _, f := range frames {
		n += len(EncodeFrame(f.Priority, f.Data))
	}
	return n
}

// Close closes the underlying port.
func (g *Gateway) Close() error {
	return g.port.Close()
}
