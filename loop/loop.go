// Package loop implements the event loop bridging a radio interrupt
// signal to the protocol engine's callbacks, plus an ISR-safe logging
// channel for diagnostic output.
//
// Exactly one task runs Loop.Run. It blocks on the signal channel,
// and on each wakeup calls the driver's interrupt-service entry,
// which in turn invokes exactly one of the engine's callbacks. No
// protocol-level work happens in interrupt context; Signal is the
// only thing an ISR is allowed to call.
package loop

// InterruptServicer is the radio driver's interrupt-service entry
// point. It decodes the interrupt cause from hardware and dispatches
// to the appropriate engine callback.
type InterruptServicer interface {
	ServiceInterrupt()
}

// Loop bridges one radio IRQ signal to a single consumer task.
type Loop struct {
	driver InterruptServicer
	signal chan struct{}
}

// New returns a Loop that services d on every signal.
func New(d InterruptServicer) *Loop {
	return &Loop{
		driver: d,
		signal: make(chan struct{}, 1),
	}
}

// Signal wakes the loop's task. It is the only method of Loop safe to
// call from interrupt context: the send is non-blocking and drops a
// duplicate if the channel is already full, which is harmless because
// ServiceInterrupt re-reads the actual interrupt cause from hardware
// rather than trusting the signal payload. An IRQ firing faster than
// the task can drain it is a hardware fault this loop cannot fix.
func (l *Loop) Signal() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Run services interrupts until quit is closed. It never returns
// otherwise, so real firmware runs it for the lifetime of the device;
// tests pass a quit channel for deterministic shutdown.
func (l *Loop) Run(quit <-chan struct{}) {
	for {
		select {
		case <-l.signal:
			l.driver.ServiceInterrupt()
		case <-quit:
			return
		}
	}
}
