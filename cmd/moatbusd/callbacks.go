package main

import (
	"github.com/charmbracelet/log"

	"moatbus/internal/addressing"
	"moatbus/internal/bus"
	"moatbus/internal/flashupdate"
	"moatbus/internal/message"
	"moatbus/internal/routing"
)

// daemonCallbacks is the halgpio.AppCallbacks implementation tying the
// handler's accepted traffic to the addressing and flash-update control
// handlers by message code, and everything else to the routing.Router.
type daemonCallbacks struct {
	addr   *addressing.Controller
	flash  *flashupdate.Manager
	router *routing.Router
	log    *log.Logger
}

func (d *daemonCallbacks) Process(msg *message.Message) bool {
	switch msg.Code {
	case addressing.ControlCode:
		if err := d.addr.Dispatch(msg.Bytes()); err != nil {
			d.log.Warn("addressing dispatch failed", "source", msg.Source, "err", err)
		}
		return true
	case flashupdate.ControlCode:
		if err := d.flash.Dispatch(msg.Source, msg.Bytes()); err != nil {
			d.log.Warn("flashupdate dispatch failed", "source", msg.Source, "err", err)
		}
		return true
	default:
		return d.router.Process(msg)
	}
}

func (d *daemonCallbacks) Transmitted(msg *message.Message, result message.Result) {
	if result != message.Success {
		d.log.Warn("message delivery did not succeed", "dest", msg.Destination, "code", msg.Code, "result", result)
		return
	}
	d.log.Debug("message delivered", "dest", msg.Destination, "code", msg.Code)
}

func (d *daemonCallbacks) ReportError(kind bus.ErrorKind) {
	d.log.Warn("bus error", "kind", kind)
}

func (d *daemonCallbacks) Debug(format string, args ...interface{}) {
	d.log.Debugf(format, args...)
}
