/*
diff.go - Computes the minimal batch from ledger state

PURPOSE:
  Pure function over the ledger: derives the smallest set of upserts and
  deletions that brings the backing store in line with current state.
  The diff is derived on demand, never stored - there is no second copy of
  "what changed" to drift out of sync.

RULES:
  - Clean entries (current == baseline) are skipped entirely. This keeps
    batches minimal and never resends untouched subjects.
  - Dirty with current != unset  -> upsert {attendanceId, subject, current}
  - Dirty with current == unset and a known row id -> delete that id
  - Dirty with current == unset and no row id -> nothing to persist; the
    edit cancels out (a row that never existed needs no deletion)

OUTPUT:
  Besides upserts and deletions, the change set carries the touched
  subjects (for user-facing error attribution only) and a snapshot of each
  touched subject's current value at diff time. The merge step uses that
  snapshot to avoid clobbering edits made while the batch was in flight.
*/
package attendance

import "sort"

// ChangeSet is the output of one diff computation.
type ChangeSet struct {
	Upserts   []UpsertRow
	Deletions []string

	// Touched lists every subject the batch covers. Used for error
	// attribution in the UI, never for persistence logic.
	Touched []Subject

	// Sent records each touched subject's current value at diff time.
	Sent map[Subject]AttendanceStatus
}

// Empty reports whether the change set carries no persistence work.
func (c ChangeSet) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletions) == 0
}

// Request builds the batch request for this change set.
func (c ChangeSet) Request(meeting MeetingContext) BatchRequest {
	return BatchRequest{
		MeetingID:   meeting.MeetingID,
		MeetingType: meeting.MeetingType,
		Upserts:     c.Upserts,
		Deletions:   c.Deletions,
	}
}

// ComputeDiff derives the minimal change set from the ledger.
// Output ordering is deterministic: upserts sorted by subject, deletions
// sorted by id.
func ComputeDiff(l *Ledger) ChangeSet {
	cs := ChangeSet{Sent: make(map[Subject]AttendanceStatus)}

	for _, e := range l.Entries() {
		if !e.Dirty() {
			continue
		}

		switch {
		case e.Current != StatusUnset:
			cs.Upserts = append(cs.Upserts, UpsertRow{
				ID:      e.AttendanceID,
				Subject: e.Subject,
				Status:  e.Current,
			})
		case e.AttendanceID != "":
			cs.Deletions = append(cs.Deletions, e.AttendanceID)
		default:
			// Dirty only because baseline drifted to a value the user then
			// cleared again before it was ever persisted. Nothing to send,
			// but the subject still counts as touched.
		}

		cs.Touched = append(cs.Touched, e.Subject)
		cs.Sent[e.Subject] = e.Current
	}

	sort.Slice(cs.Upserts, func(i, j int) bool {
		return subjectLess(cs.Upserts[i].Subject, cs.Upserts[j].Subject)
	})
	sort.Strings(cs.Deletions)
	sort.Slice(cs.Touched, func(i, j int) bool {
		return subjectLess(cs.Touched[i], cs.Touched[j])
	})

	return cs
}

func subjectLess(a, b Subject) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.ID < b.ID
}
