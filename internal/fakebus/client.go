package fakebus

import (
	"net"
	"sync"
)

// Driver is a halgpio.Driver implementation backed by a connection to a
// fakebus Server. It is the simulator-side counterpart to
// halgpio.PinArray, named independently so internal/halgpio stays free
// of any knowledge of the simulator.
type Driver struct {
	conn net.Conn

	mu      sync.Mutex
	sampled uint32
}

// Dial connects to a fakebus socket at path.
func Dial(path string) (*Driver, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	d := &Driver{conn: conn}
	go d.readLoop()
	return d, nil
}

func (d *Driver) readLoop() {
	buf := make([]byte, 1)
	for {
		if _, err := d.conn.Read(buf); err != nil {
			return
		}
		d.mu.Lock()
		d.sampled = uint32(buf[0])
		d.mu.Unlock()
	}
}

func (d *Driver) Drive(bits uint32) error {
	_, err := d.conn.Write([]byte{byte(bits)})
	return err
}

func (d *Driver) Sample() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampled, nil
}

func (d *Driver) Close() error {
	return d.conn.Close()
}
