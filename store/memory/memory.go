// Package memory provides an in-memory gateway.Backend (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu     sync.RWMutex
	rows   map[string]attendance.Row // keyed by row id
	roster attendance.Roster

	// FailNextApply forces the next ApplyBatch to fail without mutating
	// anything. Lets tests exercise the failure paths deterministically.
	FailNextApply error
}

func New() *Store {
	return &Store{rows: make(map[string]attendance.Row)}
}

// SeedRoster replaces the roster returned by ListRoster.
func (m *Store) SeedRoster(roster attendance.Roster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster = roster
}

// SeedRow inserts a row directly, bypassing batch semantics.
func (m *Store) SeedRow(row attendance.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.ID] = row
}

// ApplyBatch mirrors the tier 1 semantics: all-or-nothing, deletions
// before upserts, create conflicts fold into the existing row.
func (m *Store) ApplyBatch(_ context.Context, req attendance.BatchRequest) (attendance.BatchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var resp attendance.BatchResponse

	if m.FailNextApply != nil {
		err := m.FailNextApply
		m.FailNextApply = nil
		return resp, err
	}

	// Stage on a copy so a mid-batch failure leaves the store untouched.
	staged := make(map[string]attendance.Row, len(m.rows))
	for id, row := range m.rows {
		staged[id] = row
	}

	var deleted []string
	for _, id := range req.Deletions {
		row, ok := staged[id]
		if !ok || row.MeetingID != req.MeetingID {
			continue
		}
		delete(staged, id)
		deleted = append(deleted, id)
	}

	var records []attendance.UpsertResult
	for _, u := range req.Upserts {
		if !u.Status.Persistable() || !u.Status.ValidFor(u.Subject.Kind) {
			return resp, &attendance.ValidationError{
				Field:   "upserts.status",
				Message: fmt.Sprintf("status %q is not valid for %s", u.Status, u.Subject.Kind),
			}
		}

		id := u.ID
		if existing, ok := findBySubject(staged, req.MeetingID, u.Subject); ok {
			id = existing.ID
		} else if id == "" {
			id = uuid.NewString()
		}

		staged[id] = attendance.Row{
			ID:        id,
			MeetingID: req.MeetingID,
			Subject:   u.Subject,
			Status:    u.Status,
		}
		records = append(records, attendance.UpsertResult{ID: id, Subject: u.Subject, Status: u.Status})
	}

	m.rows = staged
	resp.Records = records
	resp.DeletedIDs = deleted
	return resp, nil
}

func findBySubject(rows map[string]attendance.Row, meetingID string, subject attendance.Subject) (attendance.Row, bool) {
	for _, row := range rows {
		if row.MeetingID == meetingID && row.Subject == subject {
			return row, true
		}
	}
	return attendance.Row{}, false
}

func (m *Store) ListAttendance(_ context.Context, meetingID string) ([]attendance.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Row
	for _, row := range m.rows {
		if row.MeetingID == meetingID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject.Kind != out[j].Subject.Kind {
			return out[i].Subject.Kind < out[j].Subject.Kind
		}
		return out[i].Subject.ID < out[j].Subject.ID
	})
	return out, nil
}

func (m *Store) ListRoster(_ context.Context) (attendance.Roster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roster, nil
}

// Rows returns a copy of every stored row (test assertions).
func (m *Store) Rows() []attendance.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]attendance.Row, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	return out
}
