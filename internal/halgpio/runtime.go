package halgpio

import (
	"sync"
	"time"

	"moatbus/internal/bus"
	"moatbus/internal/message"
)

// SlotTime is the default TIMER_A signal-slot duration.
const SlotTime = 5 * time.Millisecond

// BreakTime is the default TIMER_B propagation-settle delay, a fifth of
// a signal slot.
const BreakTime = SlotTime / 5

// AppCallbacks is the subset of bus.Callbacks an application supplies;
// Runtime itself answers SetTimeout/SetWire/GetWire from the Driver and
// a real clock.
type AppCallbacks interface {
	Process(msg *message.Message) bool
	Transmitted(msg *message.Message, result message.Result)
	ReportError(kind bus.ErrorKind)
	Debug(format string, args ...interface{})
}

// Runtime connects a Driver to a bus.Handler in real time: SetTimeout
// starts a real timer that calls Handler.Timer, and Poll (called by the
// owner's own loop, since polling cadence is a deployment decision)
// samples the Driver and feeds any changed state to Handler.Wire.
type Runtime struct {
	h   *bus.Handler
	drv Driver
	app AppCallbacks

	mu          sync.Mutex
	timer       *time.Timer
	lastSampled uint32
}

// NewRuntime allocates a bus.Handler over drv for an nWires-wide bus.
func NewRuntime(nWires int, drv Driver, app AppCallbacks) (*Runtime, error) {
	r := &Runtime{drv: drv, app: app}
	h, err := bus.Allocate(nWires, r)
	if err != nil {
		return nil, err
	}
	r.h = h
	return r, nil
}

// Handler returns the bus.Handler this Runtime drives.
func (r *Runtime) Handler() *bus.Handler {
	return r.h
}

// Poll samples the wire once and feeds a Wire event if it changed since
// the last Poll. Call this in a tight loop, ideally at BreakTime
// granularity or finer.
func (r *Runtime) Poll() {
	bits, err := r.drv.Sample()
	if err != nil {
		return
	}
	r.mu.Lock()
	changed := bits != r.lastSampled
	r.lastSampled = bits
	r.mu.Unlock()
	if changed {
		r.h.Wire(bits)
	}
}

func (r *Runtime) SetWire(bits uint32) {
	_ = r.drv.Drive(bits)
}

func (r *Runtime) GetWire() uint32 {
	bits, _ := r.drv.Sample()
	return bits
}

func (r *Runtime) SetTimeout(d bus.Delay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if d == bus.DelayOff {
		return
	}
	dur := BreakTime
	if d != bus.DelayBreak {
		dur = time.Duration(d) * SlotTime
	}
	r.timer = time.AfterFunc(dur, func() { r.h.Timer() })
}

func (r *Runtime) Process(msg *message.Message) bool { return r.app.Process(msg) }

func (r *Runtime) Transmitted(msg *message.Message, result message.Result) {
	r.app.Transmitted(msg, result)
}

func (r *Runtime) ReportError(kind bus.ErrorKind) { r.app.ReportError(kind) }

func (r *Runtime) Debug(format string, args ...interface{}) { r.app.Debug(format, args...) }
