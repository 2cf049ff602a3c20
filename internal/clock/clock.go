// Package clock provides the timer-based liveness and periodic tick
// sources every node's event loop multiplexes over: a plain ticker for
// the control/facility cadence, and a resettable watchdog for
// connection liveness.
package clock

import (
	"sync"
	"time"
)

// Ticker wraps time.Ticker; it always runs on wall-clock time.
type Ticker struct {
	t *time.Ticker
}

// NewTicker starts a new Ticker firing every d.
func NewTicker(d time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(d)}
}

// C returns the channel ticks are delivered on.
func (t *Ticker) C() <-chan time.Time { return t.t.C }

// Stop stops the ticker. It cannot be restarted.
func (t *Ticker) Stop() { t.t.Stop() }

// Watchdog fires Fired() once if it is not Reset within its timeout.
// A live session resets it on every inbound packet; a fired watchdog
// closes the session and, for a PLC, latches an RPS timeout trip.
type Watchdog struct {
	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
	fired   chan struct{}
	firedC  bool
	stopped bool
}

// NewWatchdog creates an armed watchdog with the given timeout.
func NewWatchdog(timeout time.Duration) *Watchdog {
	w := &Watchdog{
		timeout: timeout,
		fired:   make(chan struct{}),
	}
	w.timer = time.AfterFunc(timeout, w.trip)
	return w
}

func (w *Watchdog) trip() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.firedC {
		return
	}
	w.firedC = true
	close(w.fired)
}

// Fired returns a channel that is closed once the watchdog expires.
func (w *Watchdog) Fired() <-chan struct{} { return w.fired }

// Reset restarts the countdown, e.g. on receipt of an inbound packet or
// keep-alive. A no-op after the watchdog has fired or been stopped.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.firedC {
		return
	}
	w.timer.Reset(w.timeout)
}

// Stop disarms the watchdog permanently; safe to call more than once.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.timer.Stop()
}

// HasFired reports whether the watchdog has already expired.
func (w *Watchdog) HasFired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firedC
}
