package bus

import "moatbus/internal/minifloat"

// backoff tracks the geometric retry spacing spec.md §4.3 describes:
// grows ×3/2..×5/6 per failure within bounds, capped at 3×TIMER_BREAK,
// reset whenever an ack phase completes cleanly. The running value is
// kept as minifloat.Quarters so it can be hand-handed to a timeout
// callback the same way the source passes a minifloat timer value
// around (spec.md §9 "Timer arithmetic").
type backoff struct {
	noBackoff bool
	current   minifloat.Quarters
}

const (
	backoffBase minifloat.Quarters = 4  // one second, in quarter-second units
	backoffCap  minifloat.Quarters = 12 // 3 x TIMER_BREAK-equivalent slots
)

func newBackoff() backoff {
	return backoff{noBackoff: true, current: backoffBase}
}

// reset clears the backoff after a clean ack-phase completion.
func (b *backoff) reset() {
	b.noBackoff = true
	b.current = backoffBase
}

// grow advances the backoff after a collision or retry, growing by
// roughly 3/2x per step and saturating at backoffCap.
func (b *backoff) grow() minifloat.Quarters {
	b.noBackoff = false
	next := b.current + b.current/2
	if next > backoffCap {
		next = backoffCap
	}
	b.current = next
	return b.current
}

// value returns the delay to apply for the next retry, encoded through
// minifloat so it round-trips the way the wire format would carry it.
func (b *backoff) value() minifloat.Value {
	return minifloat.Encode(b.current)
}

// delay converts the current backoff into a handler Delay (in signal
// slots) for arming via Callbacks.SetTimeout.
func (b *backoff) delay() Delay {
	return Slots(int(minifloat.Decode(b.value())))
}
