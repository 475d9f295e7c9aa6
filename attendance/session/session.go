/*
session.go - Client-resident attendance marking session

PURPOSE:
  Owns everything the operator's editing surface needs: the ledger, the
  autosave scheduler, and the save cycle against the persistence gateway.
  The UI layer calls Toggle/MarkAllPresent/Save and renders from
  HasUnsavedChanges/LastSavedAt; it never touches the ledger directly.

SAVE CYCLE:
  1. Compute the diff (deletions + upserts + sent snapshot).
  2. Empty diff: no-op, nothing is ever sent.
  3. Send the batch to the gateway, holding the Saving guard but NOT the
     lock - edits keep landing while the call is in flight.
  4. Success: merge the response into baseline (don't-clobber rule).
     Failure: dirty state is untouched; it IS the retry queue.
  5. If edits accumulated during the flight, re-arm the autosave timer
     immediately so they are not lost.

FAILURE POLICY:
  - A failed automatic save re-arms and retries after the debounce delay.
  - A failed manual save does not auto-retry; it waits for the next edit
    or an explicit retry.
  - After a partial-apply failure (tiers 2/3) the session re-fetches
    baseline from the gateway before permitting the next save, so the
    next diff is computed against what the store actually holds.

CONCURRENCY:
  One mutex serializes ledger mutation and scheduler transitions. At most
  one save is in flight, enforced by the scheduler's Saving state - the
  network call itself runs outside the lock.

SEE ALSO:
  - scheduler.go: The Idle/Armed/Saving debounce state machine
  - attendance/merge.go: The reconciliation merge rules
*/
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// Persistence is the slice of the gateway the session needs.
// *gateway.Gateway satisfies it.
type Persistence interface {
	ApplyBatch(ctx context.Context, req attendance.BatchRequest) (attendance.BatchResponse, error)
	ListAttendance(ctx context.Context, meetingID string) ([]attendance.Row, error)
}

// Session drives attendance marking for one meeting at a time.
type Session struct {
	mu      sync.Mutex
	ledger  *attendance.Ledger
	gateway Persistence
	sched   *scheduler

	lastSavedAt    *time.Time
	needsRehydrate bool
}

// New creates a session scoped to the given meeting.
// The gateway is injected explicitly; the session holds no global state.
func New(gw Persistence, meeting attendance.MeetingContext) *Session {
	s := &Session{
		ledger:  attendance.NewLedger(meeting),
		gateway: gw,
	}
	s.sched = newScheduler(DefaultAutosaveDelay, s.autosave)
	return s
}

// DefaultAutosaveDelay is the quiet period after the last edit before an
// automatic save fires.
const DefaultAutosaveDelay = 2500 * time.Millisecond

// SetAutosaveDelay overrides the debounce delay (tests, user preference).
func (s *Session) SetAutosaveDelay(d time.Duration) {
	s.sched.setDelay(d)
}

// Close stops the autosave timer. An in-flight save is not cancelled; its
// response is still merged.
func (s *Session) Close() {
	s.sched.stop()
}

// =============================================================================
// MEETING SCOPE
// =============================================================================

// SwitchMeeting resets the session to a different meeting. The ledger is
// cleared completely - unsaved edits for the old meeting are discarded by
// design - and baseline for the new meeting is hydrated from the gateway.
func (s *Session) SwitchMeeting(ctx context.Context, meeting attendance.MeetingContext) error {
	s.mu.Lock()
	s.sched.disarm()
	s.ledger.ResetForMeeting(meeting)
	s.lastSavedAt = nil
	s.needsRehydrate = false
	s.mu.Unlock()

	return s.Hydrate(ctx)
}

// Hydrate (re)loads baseline from the backing store. Safe to call while
// edits are pending: LoadBaseline never clobbers an unsaved current value.
func (s *Session) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	meetingID := s.ledger.Meeting().MeetingID
	s.mu.Unlock()

	rows, err := s.gateway.ListAttendance(ctx, meetingID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A meeting switch may have raced the fetch; stale rows are dropped.
	if s.ledger.Meeting().MeetingID != meetingID {
		return nil
	}
	s.ledger.LoadBaseline(rows)
	s.needsRehydrate = false
	return nil
}

// =============================================================================
// EDITS (UI-facing)
// =============================================================================

// Toggle records a status edit for one subject and (re)arms autosave.
func (s *Session) Toggle(subject attendance.Subject, status attendance.AttendanceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.SetCurrent(subject, status); err != nil {
		return err
	}
	s.sched.edit()
	return nil
}

// MarkAllPresent sets every listed subject to present in one gesture.
func (s *Session) MarkAllPresent(subjects []attendance.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subject := range subjects {
		if err := s.ledger.SetCurrent(subject, attendance.StatusPresent); err != nil {
			return err
		}
	}
	if len(subjects) > 0 {
		s.sched.edit()
	}
	return nil
}

// HasUnsavedChanges reports whether any subject is dirty.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.HasDirty()
}

// IsDirty reports whether one subject has an unsaved edit.
func (s *Session) IsDirty(subject attendance.Subject) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.IsDirty(subject)
}

// Entry returns the ledger entry for a subject (UI rendering).
func (s *Session) Entry(subject attendance.Subject) attendance.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Get(subject)
}

// LastSavedAt returns when the last successful save completed, or nil.
func (s *Session) LastSavedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSavedAt == nil {
		return nil
	}
	t := *s.lastSavedAt
	return &t
}

// =============================================================================
// SAVE CYCLE
// =============================================================================

// Save persists all dirty entries now. manual distinguishes an operator
// pressing "save" from the autosave timer: both run the same path, but a
// failed manual save is not retried automatically.
func (s *Session) Save(ctx context.Context, manual bool) (attendance.BatchResponse, error) {
	s.mu.Lock()

	if !s.sched.beginSave() {
		s.mu.Unlock()
		return attendance.BatchResponse{}, attendance.ErrSaveInFlight
	}

	// A previous failure may have left the store out of step with
	// baseline. Re-fetch before diffing so the batch is computed against
	// reality.
	if s.needsRehydrate {
		s.mu.Unlock()
		if err := s.Hydrate(ctx); err != nil {
			s.mu.Lock()
			s.finishSave(false, manual)
			s.mu.Unlock()
			return attendance.BatchResponse{}, err
		}
		s.mu.Lock()
	}

	cs := attendance.ComputeDiff(s.ledger)
	if cs.Empty() {
		s.finishSave(true, manual)
		s.mu.Unlock()
		return attendance.BatchResponse{Success: true}, nil
	}
	req := cs.Request(s.ledger.Meeting())
	s.mu.Unlock()

	// Network call runs outside the lock; the Saving state is the only
	// guard needed because it blocks every competing save path.
	resp, err := s.gateway.ApplyBatch(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The operator may have switched meetings while the call was in
	// flight. The response belongs to the old meeting; merging it into
	// the fresh ledger would resurrect stale entries.
	if s.ledger.Meeting().MeetingID != req.MeetingID {
		s.finishSave(err == nil, manual)
		return resp, err
	}

	if err != nil {
		if attendance.NeedsRehydrate(err) {
			s.needsRehydrate = true
		}
		s.finishSave(false, manual)
		log.Printf("[Session] Save failed (%d upserts, %d deletions): %v",
			len(req.Upserts), len(req.Deletions), err)
		return resp, err
	}

	s.ledger.ApplyResponse(resp, cs.Sent)
	now := time.Now()
	s.lastSavedAt = &now
	s.finishSave(true, manual)

	if !manual {
		// Automatic saves skip the success toast; failures always surface.
		log.Printf("[Session] Autosaved %d upserts, %d deletions", len(resp.Records), len(resp.DeletedIDs))
	}
	return resp, nil
}

// finishSave releases the Saving guard. After a success, edits that
// landed during the flight re-arm the timer. After a failure, only
// automatic saves re-arm; a failed manual save waits for the next edit.
// Caller holds s.mu.
func (s *Session) finishSave(ok, manual bool) {
	rearm := !manual
	if ok {
		rearm = s.ledger.HasDirty()
	}
	s.sched.endSave(rearm)
}

// autosave is the scheduler's fire callback.
func (s *Session) autosave() {
	s.mu.Lock()
	hasDirty := s.ledger.HasDirty()
	s.mu.Unlock()

	if !hasDirty {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.Save(ctx, false); err != nil {
		log.Printf("[Session] Autosave will retry: %v", err)
	}
}
