// Package bus implements the MoatBus handler core: the bit-level
// transmitter/receiver state machine driving the wires, priority
// arbitration, chunked bit-to-wire encoding, the trailing-residue/CRC
// protocol, and the per-message ack/nack half-cycle.
//
// The package builds for tinygo the same way internal/wire does: it
// imports nothing beyond the standard library, internal/wire,
// internal/message and internal/minifloat.
package bus

import "fmt"

// State names a handler state. The set is fixed and matches the
// abridged transition table: acquisition, transmit, receive, and their
// shared idle/error states.
type State int

const (
	StateError State = iota
	StateWaitIdle
	StateIdle
	StateReadAcquire
	StateRead
	StateReadCRC
	StateReadAck
	StateWriteAcquire
	StateWrite
	StateWriteCRC
	StateWriteAck
	StateWriteEnd
)

func (s State) String() string {
	switch s {
	case StateError:
		return "Error"
	case StateWaitIdle:
		return "WaitIdle"
	case StateIdle:
		return "Idle"
	case StateReadAcquire:
		return "ReadAcquire"
	case StateRead:
		return "Read"
	case StateReadCRC:
		return "ReadCRC"
	case StateReadAck:
		return "ReadAck"
	case StateWriteAcquire:
		return "WriteAcquire"
	case StateWrite:
		return "Write"
	case StateWriteCRC:
		return "WriteCRC"
	case StateWriteAck:
		return "WriteAck"
	case StateWriteEnd:
		return "WriteEnd"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrorKind is the categorical error taxonomy of spec.md §7. These never
// surface as Go errors at the handler boundary; they flow through
// ReportError and, for per-message failures, through the Result carried
// by Transmitted.
type ErrorKind int

const (
	ErrNothing ErrorKind = iota
	ErrCollision
	ErrBadCollision
	ErrHoldtime
	ErrAcquire
	ErrAcquireFatal
	ErrCRC
	ErrFlap
	ErrNoChange
	ErrUnhandled
	ErrCannot
)

func (e ErrorKind) String() string {
	switch e {
	case ErrNothing:
		return "Nothing"
	case ErrCollision:
		return "Collision"
	case ErrBadCollision:
		return "BadCollision"
	case ErrHoldtime:
		return "Holdtime"
	case ErrAcquire:
		return "Acquire"
	case ErrAcquireFatal:
		return "AcquireFatal"
	case ErrCRC:
		return "CRC"
	case ErrFlap:
		return "Flap"
	case ErrNoChange:
		return "NoChange"
	case ErrUnhandled:
		return "Unhandled"
	case ErrCannot:
		return "Cannot"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(e))
	}
}

// Delay is the value the handler passes to Callbacks.SetTimeout. Off
// cancels any armed timer; Break is a short fixed settle (TIMER_B,
// roughly one propagation delay); any non-negative value N means N
// signal slots (TIMER_A).
type Delay int32

const (
	DelayOff   Delay = -1
	DelayBreak Delay = -2
)

// Slots builds a Delay of n signal slots.
func Slots(n int) Delay {
	if n < 0 {
		n = 0
	}
	return Delay(n)
}

// transition holds the two event handlers a state may define. A nil
// field means that event is unexpected in that state and is routed to
// unhandled().
type transition struct {
	onWire  func(h *Handler, bits uint32)
	onTimer func(h *Handler)
}

// transitions is the typed transition table spec.md §9 recommends in
// place of a switch-on-enum: one row per state, populated once by
// registerTransitions (handler.go) the first time Allocate runs.
var transitions = map[State]transition{}
