package bus

// beginAcquire starts an acquisition attempt for the head of writeq.
// Called either directly from Send/Poll while Idle, or from Idle's own
// wire-edge handler — both paths satisfy spec.md §8 invariant 6 (a
// transmission attempt begins within one TIMER_B of the wake-up edge)
// because both run synchronously in the caller's context.
func (h *Handler) beginAcquire() {
	h.current = h.writeq[0]
	h.writeq = h.writeq[1:]

	prio := h.current.msg.Priority
	if prio < 1 {
		prio = 1
	}
	if prio > h.nWires {
		prio = h.nWires
	}
	h.intended = 1 << uint(prio-1)

	h.state = StateWriteAcquire
	h.cb.SetWire(h.intended)
	h.armTimeout(DelayBreak)
}

func (h *Handler) onWriteAcquireTimer() {
	bits := h.cb.GetWire()
	winner := lowestSetBit(bits)

	if winner == h.intended {
		h.beginWrite()
		return
	}

	if winner != 0 && winner < h.intended {
		// Lost arbitration to a higher-priority (lower-index) wire:
		// release and fall back to receiving its frame.
		h.cb.SetWire(0)
		h.last = 0
		h.writeq = append([]*outbound{h.current}, h.writeq...)
		h.current = nil
		h.priorityWire = winner
		h.state = StateReadAcquire
		h.armTimeout(DelayBreak)
		return
	}

	// Our own bit never made it onto the bus at all (winner == 0):
	// something is wrong with the wire itself. Treat as a retryable
	// acquire error.
	h.cb.ReportError(ErrAcquire)
	h.cb.SetWire(0)
	h.writeq = append([]*outbound{h.current}, h.writeq...)
	h.current = nil
	h.state = StateWaitIdle
	h.armTimeout(h.bo.delay())
}

func (h *Handler) onIdleWire(bits uint32) {
	if bits == 0 {
		return
	}
	if len(h.writeq) > 0 {
		h.beginAcquire()
		return
	}
	h.priorityWire = lowestSetBit(bits)
	h.last = 0
	h.state = StateReadAcquire
	h.armTimeout(DelayBreak)
}

func (h *Handler) onIdleTimer() {
	if len(h.writeq) > 0 {
		h.beginAcquire()
		return
	}
	h.armTimeout(DelayBreak)
}

func (h *Handler) onReadAcquireTimer() {
	bits := h.cb.GetWire()
	if bits == 0 {
		// Acquisition noise settled back to idle before we could read it.
		h.state = StateWaitIdle
		h.armTimeout(DelayBreak)
		return
	}
	h.last = bits
	h.resetRx()
	h.state = StateRead
	h.armTimeout(Slots(2))
}

func (h *Handler) onReadAcquireWire(bits uint32) {
	h.priorityWire = lowestSetBit(bits)
}
