/*
scheduler.go - Autosave debounce state machine

PURPOSE:
  Classic debounce over the save path. Three states:

    Idle    no pending work
    Armed   a save fires at (last edit + delay) unless replaced
    Saving  one save is in flight; nothing else may start

  Every edit while Idle or Armed replaces the pending timer, pushing the
  deadline out - the save fires only after a quiet period, never per
  keystroke. Edits while Saving arm nothing: the save's completion re-arms
  when dirty entries remain, so concurrent edits are deferred, never lost.

INVARIANT:
  At most one save is in flight at a time. The Saving state is the guard;
  there is no lock held across the network call.

STALE TIMERS:
  Timers are generation-stamped. A fire from a timer that was replaced or
  cancelled compares its generation and drops itself silently.
*/
package session

import (
	"sync"
	"time"
)

type schedState int

const (
	stateIdle schedState = iota
	stateArmed
	stateSaving
)

// scheduler coordinates the debounce timer with the save cycle.
// fire runs on the timer goroutine and is expected to call beginSave.
type scheduler struct {
	mu    sync.Mutex
	state schedState
	delay time.Duration
	timer *time.Timer
	gen   int
	fire  func()
}

func newScheduler(delay time.Duration, fire func()) *scheduler {
	return &scheduler{delay: delay, fire: fire}
}

func (sc *scheduler) setDelay(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.delay = d
}

// edit (re)arms the timer. No-op while a save is in flight - completion
// re-arms if dirty entries remain.
func (sc *scheduler) edit() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.state == stateSaving {
		return
	}
	sc.armLocked()
}

// beginSave transitions to Saving, cancelling any pending timer.
// Returns false when a save is already in flight.
func (sc *scheduler) beginSave() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.state == stateSaving {
		return false
	}
	sc.cancelTimerLocked()
	sc.state = stateSaving
	return true
}

// endSave leaves the Saving state. rearm re-arms immediately so edits
// that landed during the flight (or a failed automatic save) get their
// own cycle.
func (sc *scheduler) endSave(rearm bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if rearm {
		sc.armLocked()
		return
	}
	sc.state = stateIdle
}

// disarm cancels any pending timer without touching an in-flight save.
func (sc *scheduler) disarm() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.cancelTimerLocked()
	if sc.state == stateArmed {
		sc.state = stateIdle
	}
}

// stop shuts the scheduler down.
func (sc *scheduler) stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.cancelTimerLocked()
	sc.state = stateIdle
}

func (sc *scheduler) armLocked() {
	sc.cancelTimerLocked()
	sc.state = stateArmed
	sc.gen++
	gen := sc.gen
	sc.timer = time.AfterFunc(sc.delay, func() { sc.onTimer(gen) })
}

func (sc *scheduler) cancelTimerLocked() {
	if sc.timer != nil {
		sc.timer.Stop()
		sc.timer = nil
	}
}

func (sc *scheduler) onTimer(gen int) {
	sc.mu.Lock()
	if sc.state != stateArmed || gen != sc.gen {
		// Replaced or cancelled while the fire was queued.
		sc.mu.Unlock()
		return
	}
	sc.mu.Unlock()

	sc.fire()
}
