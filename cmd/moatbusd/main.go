// Command moatbusd is the MoatBus host daemon: it drives a bus.Handler
// over either real/simulated wires or a serial gateway, answers
// addressing and flash-update control messages, and forwards every
// other accepted message into Redis and MQTT via internal/routing.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"moatbus/internal/addressing"
	"moatbus/internal/fakebus"
	"moatbus/internal/flashupdate"
	"moatbus/internal/gateway"
	"moatbus/internal/halgpio"
	"moatbus/internal/message"
	"moatbus/internal/routing"
)

func main() {
	flags := pflag.NewFlagSet("moatbusd", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	flags.String("device", "", "serial gateway device (enables gateway mode)")
	flags.Int("baud", 115200, "serial gateway baud rate")
	flags.Int("nwires", 2, "number of bus wires (2-4), local-bus mode only")
	flags.Uint8("address", 1, "this node's bus address")
	flags.String("fake-socket", "", "fakebus unix socket path, local-bus mode only")
	flags.String("redis-addr", "", "redis address (empty disables Redis routing)")
	flags.String("mqtt-broker", "", "MQTT broker URL (empty disables MQTT routing)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("moatbusd exiting", "err", err)
	}
}

func run(cfg Config, logger *log.Logger) error {
	router := buildRouter(cfg, logger)
	assigner := addressing.NewAssigner(0xFE)
	flashMgr := flashupdate.NewManager(func() flashupdate.Writer {
		return newFileWriter("moatbus-update.bin", logger)
	})

	if cfg.Device != "" {
		return runGatewayMode(cfg, logger, router, assigner, flashMgr)
	}
	return runLocalBusMode(cfg, logger, router, assigner, flashMgr)
}

func buildRouter(cfg Config, logger *log.Logger) *routing.Router {
	var sink routing.Sink
	var pub routing.Publisher

	if cfg.RedisAddr != "" {
		s, err := routing.NewRedisSink(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis disabled", "err", err)
		} else {
			sink = s
		}
	}
	if cfg.MQTTBroker != "" {
		b, err := routing.NewMQTTBridge(cfg.MQTTBroker, fmt.Sprintf("moatbusd-%d", cfg.Address))
		if err != nil {
			logger.Warn("mqtt disabled", "err", err)
		} else {
			pub = b
		}
	}

	return routing.NewRouter(sink, pub, logger)
}

func runLocalBusMode(cfg Config, logger *log.Logger, router *routing.Router, assigner *addressing.Assigner, flashMgr *flashupdate.Manager) error {
	var drv halgpio.Driver
	if cfg.FakeSocket != "" {
		d, err := fakebus.Dial(cfg.FakeSocket)
		if err != nil {
			return fmt.Errorf("moatbusd: dial fakebus: %w", err)
		}
		drv = d
	} else {
		d, err := newLocalDriver(cfg.NWires)
		if err != nil {
			return fmt.Errorf("moatbusd: local driver: %w", err)
		}
		drv = d
	}

	cb := &daemonCallbacks{router: router, log: logger}
	rt, err := halgpio.NewRuntime(cfg.NWires, drv, cb)
	if err != nil {
		return fmt.Errorf("moatbusd: allocate handler: %w", err)
	}
	cb.addr = addressing.NewController(rt.Handler(), cfg.Address, assigner)
	cb.flash = flashMgr

	logger.Info("local bus mode", "nwires", cfg.NWires, "address", cfg.Address, "fake", cfg.FakeSocket != "")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(halgpio.BreakTime / 2)
	defer ticker.Stop()
	for {
		select {
		case <-sigs:
			return nil
		case <-ticker.C:
			rt.Poll()
		}
	}
}

func runGatewayMode(cfg Config, logger *log.Logger, router *routing.Router, assigner *addressing.Assigner, flashMgr *flashupdate.Manager) error {
	port, err := gateway.OpenPort(&gateway.Config{Device: cfg.Device, Baud: cfg.Baud, ReadTimeout: 100})
	if err != nil {
		return fmt.Errorf("moatbusd: open gateway: %w", err)
	}
	gw := gateway.New(port, logger)
	defer gw.Close()

	addrCtrl := addressing.NewController(&gatewaySender{gw: gw, address: cfg.Address}, cfg.Address, assigner)

	logger.Info("gateway mode", "device", cfg.Device, "address", cfg.Address)

	return gw.ReadLoop(func(f gateway.Frame) {
		priority, source, dest, code, ok := message.ParseHeader(f.Data)
		if !ok {
			logger.Warn("dropping undersized gateway frame", "bytes", len(f.Data))
			return
		}
		headerBytes := message.HeaderBits / 8
		msg := message.New(priority, source, dest, code)
		body := f.Data[headerBytes:]
		msg.SetBits(body, len(body)*8)

		switch code {
		case addressing.ControlCode:
			if err := addrCtrl.Dispatch(msg.Bytes()); err != nil {
				logger.Warn("addressing dispatch failed", "err", err)
			}
		case flashupdate.ControlCode:
			if err := flashMgr.Dispatch(source, msg.Bytes()); err != nil {
				logger.Warn("flashupdate dispatch failed", "err", err)
			}
		default:
			router.Process(msg)
		}
	})
}

// gatewaySender adapts a Gateway into addressing.Controller's sender
// interface, rendering a reply Message's header itself since the
// gateway frames full header+body payloads rather than accepting a
// pre-split message like bus.Handler.Send does.
type gatewaySender struct {
	gw      *gateway.Gateway
	address uint8
}

func (s *gatewaySender) Send(msg *message.Message) {
	full := append(msg.RenderHeader(), msg.Bytes()...)
	_ = s.gw.Send(uint8(msg.Priority), full)
}
