/*
ledger.go - The client-resident attendance ledger

PURPOSE:
  Holds, per subject, a baseline value (last state known to match the
  backing store) and a current value (in-progress edit). The ledger is the
  single authoritative copy of both - there is no shadow state anywhere.

INVARIANTS:
  - A non-empty AttendanceID implies a persisted row existed with status
    equal to Baseline as of the last successful reconciliation.
  - The ledger is scoped to exactly one meeting. Switching meetings resets
    it fully (cleared, never merged).
  - Dirty == (Current != Baseline). Dirty state survives every failure;
    only a successful reconciliation clears it.

LOAD MONOTONICITY:
  LoadBaseline may run more than once for the same meeting (silent
  background refresh). A refresh must never clobber an unsaved edit:
  covered subjects get a fresh baseline, but their current value is only
  aligned to it when the entry was clean. Already-known subjects not
  covered by the refresh fall back to unset/no-row baseline.

CONCURRENCY:
  The ledger itself is not synchronized. All mutation happens on one
  logical thread; the owning session serializes access around its save
  cycle. See session/session.go.

SEE ALSO:
  - diff.go: Computes the minimal batch from dirty entries
  - merge.go: Folds a batch response back into baseline
*/
package attendance

// Entry is the ledger's record for one subject.
type Entry struct {
	Subject      Subject
	AttendanceID string // backing store row id; empty means no row exists yet
	Baseline     AttendanceStatus
	Current      AttendanceStatus
}

// Dirty reports whether the entry has an unsaved edit.
func (e Entry) Dirty() bool {
	return e.Current != e.Baseline
}

// Ledger tracks baseline and current attendance for one meeting.
type Ledger struct {
	meeting MeetingContext
	entries map[Subject]*Entry
}

// NewLedger creates an empty ledger scoped to the given meeting.
func NewLedger(meeting MeetingContext) *Ledger {
	return &Ledger{
		meeting: meeting,
		entries: make(map[Subject]*Entry),
	}
}

// Meeting returns the meeting this ledger is scoped to.
func (l *Ledger) Meeting() MeetingContext {
	return l.meeting
}

// ResetForMeeting clears the ledger completely and re-scopes it.
// Unsaved edits for the previous meeting are intentionally discarded.
func (l *Ledger) ResetForMeeting(meeting MeetingContext) {
	l.meeting = meeting
	l.entries = make(map[Subject]*Entry)
}

// Get returns the entry for a subject, creating it lazily the first time
// the subject is observed.
func (l *Ledger) Get(subject Subject) Entry {
	return *l.entry(subject)
}

func (l *Ledger) entry(subject Subject) *Entry {
	e, ok := l.entries[subject]
	if !ok {
		e = &Entry{Subject: subject, Baseline: StatusUnset, Current: StatusUnset}
		l.entries[subject] = e
	}
	return e
}

// SetCurrent records an in-progress edit for a subject.
// The status must be valid for the subject's kind.
func (l *Ledger) SetCurrent(subject Subject, status AttendanceStatus) error {
	if err := subject.Validate(); err != nil {
		return err
	}
	if !status.ValidFor(subject.Kind) {
		return &ValidationError{
			Field:   "status",
			Message: "status " + string(status) + " is not valid for " + string(subject.Kind),
		}
	}
	l.entry(subject).Current = status
	return nil
}

// IsDirty reports whether a subject has an unsaved edit.
func (l *Ledger) IsDirty(subject Subject) bool {
	e, ok := l.entries[subject]
	return ok && e.Dirty()
}

// HasDirty reports whether any subject has an unsaved edit.
func (l *Ledger) HasDirty() bool {
	for _, e := range l.entries {
		if e.Dirty() {
			return true
		}
	}
	return false
}

// DirtyCount returns the number of subjects with unsaved edits.
func (l *Ledger) DirtyCount() int {
	n := 0
	for _, e := range l.entries {
		if e.Dirty() {
			n++
		}
	}
	return n
}

// Entries returns a copy of every entry in the ledger.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	return out
}

// SnapshotBaseline returns an immutable copy of the baseline state.
func (l *Ledger) SnapshotBaseline() map[Subject]AttendanceStatus {
	snap := make(map[Subject]AttendanceStatus, len(l.entries))
	for s, e := range l.entries {
		snap[s] = e.Baseline
	}
	return snap
}

// ByAttendanceID finds the entry bound to a backing store row id.
func (l *Ledger) ByAttendanceID(id string) (Entry, bool) {
	for _, e := range l.entries {
		if e.AttendanceID == id {
			return *e, true
		}
	}
	return Entry{}, false
}

// LoadBaseline hydrates the ledger from persisted rows.
//
// For every subject covered by rows, baseline and attendance id are
// replaced; current follows only if the entry had no unsaved edit.
// Subjects already in the ledger but absent from rows fall back to an
// unset baseline with no row id - they are preserved, not dropped.
// Rows for a different meeting are ignored.
func (l *Ledger) LoadBaseline(rows []Row) {
	covered := make(map[Subject]bool, len(rows))

	for _, row := range rows {
		if row.MeetingID != "" && row.MeetingID != l.meeting.MeetingID {
			continue
		}
		e := l.entry(row.Subject)
		wasDirty := e.Dirty()
		e.Baseline = row.Status
		e.AttendanceID = row.ID
		if !wasDirty {
			e.Current = row.Status
		}
		covered[row.Subject] = true
	}

	for subject, e := range l.entries {
		if covered[subject] {
			continue
		}
		wasDirty := e.Dirty()
		e.Baseline = StatusUnset
		e.AttendanceID = ""
		if !wasDirty {
			e.Current = StatusUnset
		}
	}
}
