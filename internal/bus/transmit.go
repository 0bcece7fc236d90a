package bus

import (
	"moatbus/internal/message"
	"moatbus/internal/wire"
)

// beginWrite is entered once acquisition confirms this handler won the
// bus. It renders the header (spec.md §6.2) in front of the message
// body, builds the full wire-symbol sequence with internal/wire's frame
// codec, and starts driving the first symbol.
func (h *Handler) beginWrite() {
	msg := h.current.msg
	header := msg.RenderHeader()
	body := msg.Bytes()
	full := make([]byte, 0, len(header)+len(body))
	full = append(full, header...)
	full = append(full, body...)
	bitLen := len(header)*8 + msg.Len()

	h.txSymbols = wire.EncodeFrame(full, bitLen, h.params)
	fullChunks := bitLen / int(h.params.B)
	remaining := bitLen - fullChunks*int(h.params.B)
	h.txDataEnd = fullChunks * h.params.X
	h.txResidueEnd = h.txDataEnd + h.params.X
	h.txLeftoverEnd = h.txResidueEnd
	if remaining > 0 {
		h.txLeftoverEnd += h.params.X
	}
	h.txPos = 0
	h.txCRCAcc = wire.InitialCRC

	h.state = StateWrite
	h.last = h.intended
	h.armNextSymbol()
}

// txShouldAccumulate reports whether the symbol currently at txPos
// belongs to a data or leftover chunk (CRC-accumulated) rather than the
// residue/terminator chunk or the trailing CRC chunk itself, mirroring
// internal/wire/frame.go's EncodeFrame accumulation rule.
func (h *Handler) txShouldAccumulate() bool {
	if h.txPos < h.txDataEnd {
		return true
	}
	return h.txPos >= h.txResidueEnd && h.txPos < h.txLeftoverEnd
}

// armNextSymbol drives TIMER_A for the upcoming symbol: generate the
// next symbol value, compute the wire state it implies, and wait two
// signal slots before actually driving it (spec.md §4.3 step 1-2).
func (h *Handler) armNextSymbol() {
	if h.txPos >= h.txDataEnd && h.state == StateWrite {
		h.state = StateWriteCRC
	}

	v := uint32(h.txSymbols[h.txPos])
	h.txPending = wire.NextState(h.last, v)
	h.txPhase = 0
	h.armTimeout(Slots(2))
}

func (h *Handler) onWriteTimer() {
	switch h.txPhase {
	case 0:
		h.cb.SetWire(h.txPending)
		h.txPhase = 1
		h.armTimeout(DelayBreak)
	case 1:
		h.sampleWriteSettle()
	}
}

func (h *Handler) sampleWriteSettle() {
	bits := h.cb.GetWire()
	if bits != h.txPending {
		h.handleCollision(bits)
		return
	}

	h.intended = bits
	h.last = bits
	if h.txShouldAccumulate() {
		h.txCRCAcc = wire.UpdateCRC(h.crcTable, h.txCRCAcc, h.txSymbols[h.txPos], h.nWires)
	}
	h.txPos++

	if h.txPos >= len(h.txSymbols) {
		h.beginWriteAck()
		return
	}
	h.armNextSymbol()
}

// handleCollision implements spec.md §4.3 "collision recovery": bits
// asserted that the handler did not drive belong to another sender. The
// outbound frame is abandoned and requeued (subject to maxRetries); the
// handler switches to receiving the competitor's frame from the wire
// state actually observed, which is the only thing both senders now
// agree on.
func (h *Handler) handleCollision(bits uint32) {
	foreign := bits &^ h.txPending
	kind := ErrCollision
	if foreign&^((uint32(1)<<uint(h.nWires))-1) != 0 {
		kind = ErrBadCollision
	}
	h.cb.ReportError(kind)

	h.current.retries++
	if h.current.retries <= maxRetries {
		h.writeq = append(h.writeq, h.current)
	} else {
		h.dispatchResult(h.current, message.Missing)
	}
	h.current = nil
	h.bo.grow()

	h.last = bits
	h.resetRx()
	h.seedRxFromSettledChunks()
	h.state = StateRead
	if h.rxPhase != rxPhaseData {
		h.state = StateReadCRC
	}
	h.armTimeout(Slots(2))
}

func (h *Handler) beginWriteAck() {
	h.cb.SetWire(0)
	h.last = 0
	h.state = StateWriteAck
	h.armTimeout(Slots(2))
}

func (h *Handler) onWriteAckWire(bits uint32) {
	switch bits {
	case 0:
		// Our own release settling back to zero, or noise before the
		// receiver has driven anything. Keep waiting for onWriteAckTimer.
		return
	case AckMask(h.nWires):
		h.bo.reset()
		h.dispatchResult(h.current, message.Success)
		h.current = nil
		h.state = StateWaitIdle
		h.armTimeout(DelayBreak)
	case NackMask(h.nWires):
		h.dispatchResult(h.current, message.Error)
		h.current = nil
		h.state = StateWaitIdle
		h.armTimeout(DelayBreak)
	default:
		h.cb.ReportError(ErrUnhandled)
		h.current.retries++
		if h.current.retries <= maxRetries {
			h.writeq = append(h.writeq, h.current)
		} else {
			h.dispatchResult(h.current, message.Missing)
		}
		h.current = nil
		h.state = StateWaitIdle
		h.armTimeout(h.bo.delay())
	}
}

func (h *Handler) onWriteAckTimer() {
	// No ack symbol arrived within the window: Missing, subject to the
	// handler's own retry bound per spec.md §7.
	h.current.retries++
	if h.current.retries <= maxRetries {
		h.writeq = append(h.writeq, h.current)
	} else {
		h.dispatchResult(h.current, message.Missing)
	}
	h.current = nil
	h.state = StateWaitIdle
	h.armTimeout(DelayBreak)
}

// dispatchResult surrenders ownership of a message back to the caller
// with its final disposition, per spec.md §3 "Lifecycle".
func (h *Handler) dispatchResult(o *outbound, result message.Result) {
	o.msg.Result = result
	h.cb.Transmitted(o.msg, result)
}
