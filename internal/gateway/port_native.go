//go:build !wasm

package gateway

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// NativePort wraps github.com/tarm/serial, exactly as the teacher's
// serial.NativePort does.
type NativePort struct {
	port *serial.Port
}

// OpenPort opens a native serial port.
func OpenPort(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gateway: config cannot be nil")
	}

	sc := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(sc)
	if err != nil {
		return nil, fmt.Errorf("gateway: open %s: %w", cfg.Device, err)
	}

	return &NativePort{port: port}, nil
}

func (p *NativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *NativePort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *NativePort) Close() error                { return p.port.Close() }

// Flush is a no-op: tarm/serial doesn't expose one, and Write already
// blocks until the bytes are handed to the OS.
func (p *NativePort) Flush() error { return nil }
