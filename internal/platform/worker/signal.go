package worker

// Signal is a capacity-one wake-up channel. Raising an already-raised
// signal is a no-op, so a burst of raises wakes the listener at most once
// per scheduling tick.
type Signal chan struct{}

// NewSignal creates a signal.
func NewSignal() Signal {
	return make(Signal, 1)
}

// Raise wakes the listener without blocking the caller.
func (s Signal) Raise() {
	select {
	case s <- struct{}{}:
	default:
	}
}
