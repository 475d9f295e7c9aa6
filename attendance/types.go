/*
types.go - Core types for the attendance reconciliation engine

PURPOSE:
  Defines the domain vocabulary shared by every layer: subjects, attendance
  statuses, persisted rows, and the batch wire contract between the
  client-resident ledger and the server-resident persistence gateway.

SUBJECTS:
  A subject is the person being marked: a member, a guest, or a pipeliner
  (prospective member working through the membership pipeline). Exactly one
  kind applies to any persisted row. Subject is a small comparable struct so
  it can key the ledger map directly - no nullable foreign-key juggling.

STATUS MODEL:
  Members carry a tri-state decision: present, apology, or absent.
  Guests and pipeliners collapse to a boolean: present or nothing.
  "unset" means NO decision was recorded. It is materially different from
  "absent": persisting unset deletes the row instead of writing a negative.

BATCH CONTRACT:
  BatchRequest carries one atomic set of upserts and deletions for exactly
  one meeting. BatchResponse echoes the canonical post-commit rows so the
  client can bind server-assigned identifiers to the subjects it edited.

SEE ALSO:
  - ledger.go: Baseline/current state per subject
  - diff.go: Turns ledger state into a minimal BatchRequest
  - merge.go: Folds a BatchResponse back into the ledger
*/
package attendance

import "fmt"

// =============================================================================
// SUBJECTS
// =============================================================================

// SubjectKind discriminates the three kinds of people that can be marked.
type SubjectKind string

const (
	KindMember    SubjectKind = "member"
	KindGuest     SubjectKind = "guest"
	KindPipeliner SubjectKind = "pipeliner"
)

// Valid reports whether the kind is one of the three known kinds.
func (k SubjectKind) Valid() bool {
	switch k {
	case KindMember, KindGuest, KindPipeliner:
		return true
	}
	return false
}

// Subject identifies one person to mark attendance for.
// Comparable, so it can be used directly as a map key.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

// Member, Guest and Pipeliner are the canonical constructors. Using them
// instead of struct literals keeps the kind tag and the id together.
func Member(id string) Subject    { return Subject{Kind: KindMember, ID: id} }
func Guest(id string) Subject     { return Subject{Kind: KindGuest, ID: id} }
func Pipeliner(id string) Subject { return Subject{Kind: KindPipeliner, ID: id} }

// Validate checks the subject is fully specified.
func (s Subject) Validate() error {
	if !s.Kind.Valid() {
		return &ValidationError{Field: "subject.kind", Message: fmt.Sprintf("unknown subject kind %q", s.Kind)}
	}
	if s.ID == "" {
		return &ValidationError{Field: "subject.id", Message: "subject id is required"}
	}
	return nil
}

func (s Subject) String() string {
	return string(s.Kind) + ":" + s.ID
}

// =============================================================================
// ATTENDANCE STATUS
// =============================================================================

// AttendanceStatus is the decision recorded for a subject at a meeting.
//
// StatusUnset means "no decision recorded". It never appears in a persisted
// row: writing unset means deleting any existing row for that subject.
type AttendanceStatus string

const (
	StatusUnset   AttendanceStatus = "unset"
	StatusPresent AttendanceStatus = "present"
	StatusApology AttendanceStatus = "apology"
	StatusAbsent  AttendanceStatus = "absent"
)

// Valid reports whether the status is one of the known values.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusUnset, StatusPresent, StatusApology, StatusAbsent:
		return true
	}
	return false
}

// ValidFor reports whether the status can be recorded for the given kind.
// Members use the full tri-state; guests and pipeliners only ever have a row
// when they attended, so only present (and unset, meaning delete) apply.
func (s AttendanceStatus) ValidFor(kind SubjectKind) bool {
	if !s.Valid() {
		return false
	}
	switch kind {
	case KindMember:
		return true
	case KindGuest, KindPipeliner:
		return s == StatusPresent || s == StatusUnset
	}
	return false
}

// Persistable reports whether the status results in a stored row.
func (s AttendanceStatus) Persistable() bool {
	return s != StatusUnset
}

// =============================================================================
// MEETING CONTEXT
// =============================================================================

// MeetingContext scopes the ledger to exactly one meeting.
// Switching meetings resets the ledger completely; it is never merged across
// meetings.
type MeetingContext struct {
	MeetingID   string `json:"meetingId"`
	MeetingType string `json:"meetingType,omitempty"`
}

// =============================================================================
// PERSISTED ROWS
// =============================================================================

// Row is one persisted attendance record as the backing store returns it.
type Row struct {
	ID        string           `json:"id"`
	MeetingID string           `json:"meetingId"`
	Subject   Subject          `json:"subject"`
	Status    AttendanceStatus `json:"status"`
}

// =============================================================================
// BATCH WIRE CONTRACT
// =============================================================================

// UpsertRow is one create-or-update in a batch. An empty ID signals "create";
// the store assigns the identifier and echoes it back in the response.
type UpsertRow struct {
	ID      string           `json:"id,omitempty"`
	Subject Subject          `json:"subject"`
	Status  AttendanceStatus `json:"status"`
}

// BatchRequest is one atomic set of changes for one meeting.
type BatchRequest struct {
	MeetingID   string      `json:"meetingId"`
	MeetingType string      `json:"meetingType,omitempty"`
	Upserts     []UpsertRow `json:"upserts"`
	Deletions   []string    `json:"deletions"`
}

// Empty reports whether the batch carries no work at all.
// Empty batches are never sent to the gateway.
func (b BatchRequest) Empty() bool {
	return len(b.Upserts) == 0 && len(b.Deletions) == 0
}

// Validate checks the request before any store access is attempted.
func (b BatchRequest) Validate() error {
	if b.MeetingID == "" {
		return &ValidationError{Field: "meetingId", Message: "meetingId is required"}
	}
	for _, u := range b.Upserts {
		if err := u.Subject.Validate(); err != nil {
			return err
		}
		if !u.Status.Persistable() {
			return &ValidationError{Field: "upserts.status", Message: "unset cannot be upserted; use a deletion"}
		}
		if !u.Status.ValidFor(u.Subject.Kind) {
			return &ValidationError{
				Field:   "upserts.status",
				Message: fmt.Sprintf("status %q is not valid for %s", u.Status, u.Subject.Kind),
			}
		}
	}
	for _, id := range b.Deletions {
		if id == "" {
			return &ValidationError{Field: "deletions", Message: "deletion id must not be empty"}
		}
	}
	return nil
}

// UpsertResult echoes the canonical (id, status) for one upserted subject.
type UpsertResult struct {
	ID      string           `json:"id"`
	Subject Subject          `json:"subject"`
	Status  AttendanceStatus `json:"status"`
}

// BatchResponse is the gateway's answer to one BatchRequest.
// On failure, Records and DeletedIDs are always empty - a failed batch is
// never partially reported.
type BatchResponse struct {
	Success    bool           `json:"success"`
	Records    []UpsertResult `json:"records"`
	DeletedIDs []string       `json:"deletedIds"`
	Error      string         `json:"error,omitempty"`
}

// =============================================================================
// ROSTER
// =============================================================================

// RosterEntry is one subject known to the surrounding membership system.
// The roster is a read model here: the engine marks attendance against it
// but never mutates it.
type RosterEntry struct {
	Subject Subject `json:"subject"`
	Name    string  `json:"name"`
	Active  bool    `json:"active"`
}

// Roster is the full subject list for one organization.
type Roster struct {
	Members    []RosterEntry `json:"members"`
	Guests     []RosterEntry `json:"guests"`
	Pipeliners []RosterEntry `json:"pipeliners"`
}
