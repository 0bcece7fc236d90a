// Command moatbus-fake runs the fakebus simulator daemon: a Unix socket
// that ANDs/ORs connected clients' driven wire state together, standing
// in for real hardware during development and tests.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"moatbus/internal/fakebus"
)

func main() {
	flags := pflag.NewFlagSet("moatbus-fake", pflag.ExitOnError)
	socket := flags.String("socket", "/tmp/moatbus.sock", "unix socket path to listen on")
	status := flags.Bool("status", false, "periodically print connected client state")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	srv, err := fakebus.Listen(*socket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "moatbus-fake: listen on %s: %v\n", *socket, err)
		os.Exit(1)
	}
	defer srv.Close()

	go func() {
		if err := srv.Serve(); err != nil {
			fmt.Fprintf(os.Stderr, "moatbus-fake: serve: %v\n", err)
		}
	}()

	fmt.Printf("moatbus-fake: listening on %s\n", *socket)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	var ticker *time.Ticker
	var tick <-chan time.Time
	if *status {
		ticker = time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-sigs:
			return
		case <-tick:
			for _, line := range srv.ClientInfo() {
				fmt.Println(line)
			}
		}
	}
}
