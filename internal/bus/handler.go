package bus

import (
	"sync"

	"moatbus/internal/message"
	"moatbus/internal/wire"
)

// Callbacks is the capability record spec.md §9 recommends in place of
// polymorphism: a small fixed set of integrator hooks supplied once at
// Allocate and invoked directly from Wire/Timer/Poll. Implementations
// must return promptly; none of these may block.
type Callbacks interface {
	SetTimeout(d Delay)
	SetWire(bits uint32)
	GetWire() uint32
	Process(msg *message.Message) bool
	Transmitted(msg *message.Message, result message.Result)
	ReportError(kind ErrorKind)
	Debug(format string, args ...interface{})
}

// maxRetries bounds the handler's own collision/missing-ack retries
// before a Missing result is surrendered to the caller, per spec.md §7
// "the handler retries internally up to a small configurable bound
// before signalling Missing upstream".
const maxRetries = 3

// outbound pairs a caller-owned message with the handler's private
// retry bookkeeping; it never escapes the package.
type outbound struct {
	msg     *message.Message
	retries int
}

// rxPhase tracks what the next complete chunk means once a frame's
// residue/terminator chunk has been seen: internal/wire's frame layout
// does not mark the leftover and CRC chunks any differently from an
// ordinary data chunk by value alone (see internal/wire/frame.go), so
// the receiver must track position instead of reclassifying by value.
type rxPhase int

const (
	rxPhaseData rxPhase = iota
	rxPhaseLeftover
	rxPhaseCRC
)

// Handler is the bus handler core. One Handler serves one physical
// wire-count; create one per bus interface.
type Handler struct {
	mu sync.Mutex

	nWires   int
	params   wire.Params
	crcTable wire.CRCTable

	cb Callbacks

	state State

	last     uint32 // most recently settled, observed/driven wire state
	intended uint32 // wires the handler itself is asserting or expects

	writeq []*outbound

	current       *outbound
	txSymbols     []uint8
	txDataEnd     int // index where the residue/terminator chunk begins
	txResidueEnd  int // index where the leftover chunk (if any) begins
	txLeftoverEnd int // index where the trailing CRC chunk begins
	txPos         int
	txPhase       int // 0 = about to drive, 1 = about to sample
	txPending     uint32
	txCRCAcc      uint16

	inboundData    []byte
	inboundBitLen  int
	rxChunk          []uint8
	rxPhase          rxPhase
	rxCRCAcc         uint16
	rxLeftoverBits   int
	rxWaitingRelease bool
	rxPendingAccept  bool

	flapCount int

	bo backoff

	priorityWire uint32 // lowest-index asserted wire seen during [Read]Acquire
}

// Allocate creates a handler for an nWires-wide bus (2..4) and returns
// it in WaitIdle, matching spec.md §4.3's allocate contract.
func Allocate(nWires int, cb Callbacks) (*Handler, error) {
	p, err := wire.ParamsFor(nWires)
	if err != nil {
		return nil, err
	}
	h := &Handler{
		nWires:   nWires,
		params:   p,
		crcTable: wire.NewCRCTable(nWires),
		cb:       cb,
		state:    StateWaitIdle,
		bo:       newBackoff(),
	}
	registerTransitions()
	h.cb.SetTimeout(DelayBreak)
	return h, nil
}

// AckMask is the wire pattern a receiver drives to signal a successful
// delivery. Resolves the spec.md §9 open question (wire 0 carries ack on
// every wire count, per the handler.c comments spec.md cites).
func AckMask(nWires int) uint32 { return 1 }

// NackMask is the wire pattern a receiver drives to signal a CRC
// failure: a distinct wire on 3- and 4-wire buses, both wires together
// on a 2-wire bus (there is no third wire to dedicate to nack there).
func NackMask(nWires int) uint32 {
	if nWires == 2 {
		return (1 << uint(nWires)) - 1
	}
	return 2
}

// Send enqueues msg for transmission. Ownership transfers to the
// handler until Transmitted fires. If the bus is idle the handler
// attempts acquisition immediately.
func (h *Handler) Send(msg *message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.writeq = append(h.writeq, &outbound{msg: msg})
	if h.state == StateIdle {
		h.beginAcquire()
	}
}

// Wire notifies the handler that the sampled wire state changed. Must
// be called on every observed edge; debounce is the handler's job, not
// the caller's.
func (h *Handler) Wire(bits uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.flapCount++
	if h.flapCount > 2*h.nWires {
		h.enterError(ErrFlap)
		return
	}

	t, ok := transitions[h.state]
	if !ok || t.onWire == nil {
		h.unhandled(bits)
		return
	}
	t.onWire(h, bits)
}

// Timer fires when the previously armed timeout expires.
func (h *Handler) Timer() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.flapCount = 0

	t, ok := transitions[h.state]
	if !ok || t.onTimer == nil {
		h.unhandledTimer()
		return
	}
	t.onTimer(h)
}

// Poll is the main-loop heartbeat. When the handler is Idle with
// messages still queued, it starts acquiring the bus for the next one.
// Poll does not count backoff time.
func (h *Handler) Poll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateIdle && len(h.writeq) > 0 {
		h.beginAcquire()
	}
}

func (h *Handler) armTimeout(d Delay) {
	h.cb.SetTimeout(d)
}

func (h *Handler) enterError(kind ErrorKind) {
	h.cb.ReportError(kind)
	h.state = StateError
	h.armTimeout(DelayBreak)
}

func (h *Handler) unhandled(bits uint32) {
	h.cb.Debug("unhandled wire change %#x in state %s", bits, h.state)
	h.cb.ReportError(ErrUnhandled)
}

func (h *Handler) unhandledTimer() {
	h.cb.Debug("unhandled timer in state %s", h.state)
	h.cb.ReportError(ErrCannot)
}

func lowestSetBit(bits uint32) uint32 {
	if bits == 0 {
		return 0
	}
	return bits & (^bits + 1)
}

var registerOnce sync.Once

func registerTransitions() {
	registerOnce.Do(func() {
		transitions[StateError] = transition{onTimer: (*Handler).onErrorTimer}
		transitions[StateWaitIdle] = transition{onTimer: (*Handler).onWaitIdleTimer}
		transitions[StateIdle] = transition{onWire: (*Handler).onIdleWire, onTimer: (*Handler).onIdleTimer}
		transitions[StateReadAcquire] = transition{onWire: (*Handler).onReadAcquireWire, onTimer: (*Handler).onReadAcquireTimer}
		transitions[StateRead] = transition{onWire: (*Handler).onReadWire, onTimer: (*Handler).onReadTimer}
		transitions[StateReadCRC] = transition{onWire: (*Handler).onReadWire, onTimer: (*Handler).onReadTimer}
		transitions[StateReadAck] = transition{onTimer: (*Handler).onReadAckTimer}
		transitions[StateWriteAcquire] = transition{onTimer: (*Handler).onWriteAcquireTimer}
		transitions[StateWrite] = transition{onTimer: (*Handler).onWriteTimer}
		transitions[StateWriteCRC] = transition{onTimer: (*Handler).onWriteTimer}
		transitions[StateWriteAck] = transition{onWire: (*Handler).onWriteAckWire, onTimer: (*Handler).onWriteAckTimer}
		transitions[StateWriteEnd] = transition{onTimer: (*Handler).onWaitIdleTimer}
	})
}

func (h *Handler) onErrorTimer() {
	h.state = StateWaitIdle
	h.armTimeout(DelayBreak)
}

func (h *Handler) onWaitIdleTimer() {
	h.state = StateIdle
	h.last = 0
	h.cb.SetWire(0)
	if len(h.writeq) > 0 {
		h.beginAcquire()
		return
	}
	h.armTimeout(DelayBreak)
}
