package bus

import (
	"moatbus/internal/message"
	"moatbus/internal/wire"
)

func (h *Handler) resetRx() {
	h.rxChunk = h.rxChunk[:0]
	h.rxPhase = rxPhaseData
	h.rxCRCAcc = wire.InitialCRC
	h.inboundData = nil
	h.inboundBitLen = 0
	h.rxLeftoverBits = 0
	h.rxWaitingRelease = false
}

func (h *Handler) accumulateChunkCRC() {
	h.accumulateCRC(h.rxChunk)
}

func (h *Handler) accumulateCRC(symbols []uint8) {
	for _, s := range symbols {
		h.rxCRCAcc = wire.UpdateCRC(h.crcTable, h.rxCRCAcc, s, h.nWires)
	}
}

// seedRxFromSettledChunks rebuilds the receive-side prefix out of the
// transmit symbols this node already drove and saw echoed back
// unchanged, for the whole chunks completed before a collision: per
// spec.md §4.3, those bits are "correctly agreed upon" by both senders
// and the newly-allocated inbound message they hand off to keeps them
// as its prefix rather than starting over from nothing. Only complete
// chunks qualify; the chunk in progress when the collision fired is
// exactly where the two senders' symbols diverge and must be redecoded
// from the wire like any other receive.
func (h *Handler) seedRxFromSettledChunks() {
	chunks := h.txPos / h.params.X
	for i := 0; i < chunks; i++ {
		start := i * h.params.X
		chunk := h.txSymbols[start : start+h.params.X]
		value, err := wire.DecodeChunk(chunk, h.params)
		if err != nil {
			return
		}

		switch h.rxPhase {
		case rxPhaseData:
			if h.params.IsData(value) {
				h.accumulateCRC(chunk)
				wire.AppendBits(&h.inboundData, &h.inboundBitLen, value, int(h.params.B))
				continue
			}
			count, err := h.params.DecodeResidueCount(value)
			if err != nil {
				return
			}
			h.rxLeftoverBits = count
			if count > 0 {
				h.rxPhase = rxPhaseLeftover
			} else {
				h.rxPhase = rxPhaseCRC
			}
		case rxPhaseLeftover:
			h.accumulateCRC(chunk)
			top := value >> (h.params.B - uint(h.rxLeftoverBits))
			wire.AppendBits(&h.inboundData, &h.inboundBitLen, top, h.rxLeftoverBits)
			h.rxPhase = rxPhaseCRC
		case rxPhaseCRC:
			return
		}
	}
}

// onReadWire decodes one wire transition into a symbol and feeds it into
// the in-progress chunk, per spec.md §4.3 "Receive path". It is shared
// by Read and ReadCRC: which chunk phase a completed chunk belongs to is
// tracked in h.rxPhase rather than re-derived from the decoded value,
// because the leftover and CRC chunks are ordinary-looking values once
// decoded (see internal/wire/frame.go).
func (h *Handler) onReadWire(bits uint32) {
	if h.rxWaitingRelease {
		// The frame's CRC already validated (or failed); we only assert
		// ack/nack once the sender has released the bus, per spec.md
		// §4.3's ack half-cycle ("after the terminator, the sender
		// releases the bus. The receiver drives...").
		if bits == 0 {
			h.rxWaitingRelease = false
			h.sendAckResponse(h.rxPendingAccept)
			return
		}
		h.armTimeout(Slots(2))
		return
	}

	v, err := wire.DecodeSymbol(h.last, bits)
	if err != nil {
		h.cb.ReportError(ErrNothing)
		return
	}
	h.last = bits
	// A decoded symbol edge starts a new slot for flap counting.
	h.flapCount = 0
	h.rxChunk = append(h.rxChunk, uint8(v))
	h.armTimeout(Slots(2))

	if len(h.rxChunk) < h.params.X {
		return
	}

	value, err := wire.DecodeChunk(h.rxChunk, h.params)
	if err != nil {
		h.failCRC()
		return
	}

	switch h.rxPhase {
	case rxPhaseData:
		if h.params.IsData(value) {
			h.accumulateChunkCRC()
			wire.AppendBits(&h.inboundData, &h.inboundBitLen, value, int(h.params.B))
			h.rxChunk = h.rxChunk[:0]
			return
		}
		count, err := h.params.DecodeResidueCount(value)
		if err != nil {
			h.failCRC()
			return
		}
		h.rxLeftoverBits = count
		h.rxChunk = h.rxChunk[:0]
		h.state = StateReadCRC
		if count > 0 {
			h.rxPhase = rxPhaseLeftover
		} else {
			h.rxPhase = rxPhaseCRC
		}

	case rxPhaseLeftover:
		h.accumulateChunkCRC()
		top := value >> (h.params.B - uint(h.rxLeftoverBits))
		wire.AppendBits(&h.inboundData, &h.inboundBitLen, top, h.rxLeftoverBits)
		h.rxChunk = h.rxChunk[:0]
		h.rxPhase = rxPhaseCRC

	case rxPhaseCRC:
		h.rxChunk = h.rxChunk[:0]
		if uint16(value) != h.rxCRCAcc {
			h.failCRC()
			return
		}
		h.completeFrame()
	}
}

// onReadTimer fires when a signal slot elapses with no wire edge while a
// frame is in progress: spec.md §7's err::NoChange.
func (h *Handler) onReadTimer() {
	h.cb.ReportError(ErrNoChange)
	h.state = StateWaitIdle
	h.armTimeout(DelayBreak)
}

func (h *Handler) failCRC() {
	h.cb.ReportError(ErrCRC)
	h.rxPendingAccept = false
	h.rxWaitingRelease = true
}

func (h *Handler) completeFrame() {
	priority, source, dest, code, ok := message.ParseHeader(h.inboundData)
	if !ok {
		h.failCRC()
		return
	}
	headerBytes := message.HeaderBits / 8
	body := h.inboundData[headerBytes:]
	bodyBitLen := h.inboundBitLen - message.HeaderBits

	msg := message.New(priority, source, dest, code)
	msg.SetBits(body, bodyBitLen)

	accepted := h.cb.Process(msg)
	h.rxPendingAccept = accepted
	h.rxWaitingRelease = true
}

// sendAckResponse drives the one-symbol ack/nack response spec.md §4.3
// describes, then releases after two slots.
func (h *Handler) sendAckResponse(accept bool) {
	mask := NackMask(h.nWires)
	if accept {
		mask = AckMask(h.nWires)
	}
	h.cb.SetWire(mask)
	h.last = mask
	h.state = StateReadAck
	h.armTimeout(Slots(2))
}

func (h *Handler) onReadAckTimer() {
	h.cb.SetWire(0)
	h.last = 0
	h.state = StateWaitIdle
	h.armTimeout(DelayBreak)
}
