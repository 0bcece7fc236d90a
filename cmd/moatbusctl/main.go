// Command moatbusctl is an interactive diagnostic console for a MoatBus
// bus: it connects either straight to a fakebus socket or through a
// serial gateway, and lets an operator send raw messages, run the
// addressing announce handshake, and push a flash update by hand.
package main

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/pflag"

	"moatbus/internal/addressing"
	"moatbus/internal/fakebus"
	"moatbus/internal/flashupdate"
	"moatbus/internal/gateway"
	"moatbus/internal/halgpio"
	"moatbus/internal/message"
)

func main() {
	flags := pflag.NewFlagSet("moatbusctl", pflag.ExitOnError)
	fakeSocket := flags.String("fake-socket", "", "fakebus unix socket to connect to")
	device := flags.String("device", "", "serial gateway device (alternative to -fake-socket)")
	baud := flags.Int("baud", 115200, "serial gateway baud rate")
	nwires := flags.Int("nwires", 2, "number of bus wires, fakebus mode only")
	address := flags.Uint8("address", 0xFD, "this console's bus address")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *fakeSocket == "" && *device == "" {
		fmt.Fprintln(os.Stderr, "moatbusctl: one of -fake-socket or -device is required")
		os.Exit(2)
	}

	console := &console{address: *address}
	if *device != "" {
		if err := console.dialGateway(*device, *baud); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		if err := console.dialFakebus(*fakeSocket, *nwires); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	defer console.close()

	fmt.Println("moatbusctl connected. Type 'help' for commands, 'quit' to exit.")
	repl(console)
}

func repl(c *console) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Printf("parse error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			return
		case "help", "?":
			printHelp()
		case "send":
			if err := c.cmdSend(args[1:]); err != nil {
				fmt.Printf("send: %v\n", err)
			}
		case "announce":
			if err := c.cmdAnnounce(args[1:]); err != nil {
				fmt.Printf("announce: %v\n", err)
			}
		case "flash":
			if err := c.cmdFlash(args[1:]); err != nil {
				fmt.Printf("flash: %v\n", err)
			}
		case "status":
			c.cmdStatus()
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", args[0])
		}
	}
}

func printHelp() {
	fmt.Println(`
  send <dest> <code> [hex-bytes]   send a raw message
  announce <mac-hex>               run the addressing announce handshake
  flash <dest> <file>               push a file as a flash update
  status                            show last received message
  help                              this text
  quit                              exit
`)
}

func parseUint8(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint8(n), nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		b, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q: %w", s[i*2:i*2+2], err)
		}
		out[i] = byte(b)
	}
	return out, nil
}

func (c *console) cmdSend(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: send <dest> <code> [hex-bytes]")
	}
	dest, err := parseUint8(args[0])
	if err != nil {
		return err
	}
	code, err := parseUint8(args[1])
	if err != nil {
		return err
	}
	var body []byte
	if len(args) > 2 {
		body, err = parseHex(args[2])
		if err != nil {
			return err
		}
	}
	c.send(message.NewFromBytes(1, c.address, dest, code, body))
	return nil
}

func (c *console) cmdAnnounce(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: announce <mac-hex (12 hex chars)>")
	}
	raw, err := parseHex(args[0])
	if err != nil {
		return err
	}
	if len(raw) != addressing.MACLen {
		return fmt.Errorf("mac must be %d bytes, got %d", addressing.MACLen, len(raw))
	}
	var mac [addressing.MACLen]byte
	copy(mac[:], raw)
	body := addressing.Message{Subtype: addressing.SubtypeAnnounce, MAC: mac}.Encode()
	c.send(message.NewFromBytes(1, c.address, 0, addressing.ControlCode, body))
	fmt.Println("announce sent, watch 'status' for the controller's propose reply")
	return nil
}

func (c *console) cmdFlash(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: flash <dest> <file>")
	}
	dest, err := parseUint8(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	crc := crc32.ChecksumIEEE(data)
	msgs := flashupdate.BuildUpload(data, 64, crc)
	for _, m := range msgs {
		c.send(message.NewFromBytes(1, c.address, dest, flashupdate.ControlCode, m.Encode()))
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("sent %d flash messages (%d bytes, crc32=%#x)\n", len(msgs), len(data), crc)
	return nil
}

func (c *console) cmdStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastMsg == nil {
		fmt.Println("no messages received yet")
		return
	}
	fmt.Printf("last received: src=%d dest=%d code=%d body=%x\n",
		c.lastMsg.Source, c.lastMsg.Destination, c.lastMsg.Code, c.lastMsg.Bytes())
}
