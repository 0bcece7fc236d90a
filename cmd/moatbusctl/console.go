package main

import (
	"fmt"
	"sync"
	"time"

	"moatbus/internal/bus"
	"moatbus/internal/fakebus"
	"moatbus/internal/gateway"
	"moatbus/internal/halgpio"
	"moatbus/internal/message"
)

// console owns whichever transport moatbusctl was pointed at and keeps
// the last accepted message around for the "status" command.
type console struct {
	address uint8

	rt *halgpio.Runtime
	gw *gateway.Gateway

	pollStop chan struct{}

	mu      sync.Mutex
	lastMsg *message.Message
}

func (c *console) dialFakebus(path string, nwires int) error {
	drv, err := fakebus.Dial(path)
	if err != nil {
		return fmt.Errorf("dial fakebus: %w", err)
	}
	rt, err := halgpio.NewRuntime(nwires, drv, c)
	if err != nil {
		return fmt.Errorf("allocate handler: %w", err)
	}
	c.rt = rt

	c.pollStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(halgpio.BreakTime / 2)
		defer ticker.Stop()
		for {
			select {
			case <-c.pollStop:
				return
			case <-ticker.C:
				rt.Poll()
			}
		}
	}()
	return nil
}

func (c *console) dialGateway(device string, baud int) error {
	port, err := gateway.OpenPort(&gateway.Config{Device: device, Baud: baud, ReadTimeout: 100})
	if err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	c.gw = gateway.New(port, nil)

	go func() {
		_ = c.gw.ReadLoop(func(f gateway.Frame) {
			priority, source, dest, code, ok := message.ParseHeader(f.Data)
			if !ok {
				return
			}
			headerBytes := message.HeaderBits / 8
			msg := message.New(priority, source, dest, code)
			body := f.Data[headerBytes:]
			msg.SetBits(body, len(body)*8)
			c.Process(msg)
		})
	}()
	return nil
}

func (c *console) close() {
	if c.pollStop != nil {
		close(c.pollStop)
	}
	if c.gw != nil {
		c.gw.Close()
	}
}

func (c *console) send(msg *message.Message) {
	if c.rt != nil {
		c.rt.Handler().Send(msg)
		return
	}
	full := append(msg.RenderHeader(), msg.Bytes()...)
	_ = c.gw.Send(uint8(msg.Priority), full)
}

// halgpio.AppCallbacks for fakebus mode; Process also receives the
// messages parsed from gateway frames in gateway mode.

func (c *console) Process(msg *message.Message) bool {
	c.mu.Lock()
	c.lastMsg = msg
	c.mu.Unlock()
	fmt.Printf("\n<- src=%d dest=%d code=%d body=%x\n> ", msg.Source, msg.Destination, msg.Code, msg.Bytes())
	return true
}

func (c *console) Transmitted(msg *message.Message, result message.Result) {
	fmt.Printf("\n-> dest=%d code=%d result=%s\n> ", msg.Destination, msg.Code, result)
}

func (c *console) ReportError(kind bus.ErrorKind) {
	fmt.Printf("\nbus error: %s\n> ", kind)
}

func (c *console) Debug(format string, args ...interface{}) {}
