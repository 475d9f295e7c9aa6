/*
Package sqlite is the tier 1 backing-store adapter: a direct transactional
connection to SQLite.

PURPOSE:
  Implements gateway.Backend with real BEGIN/COMMIT/ROLLBACK semantics.
  This is the preferred tier: a mixed batch of creates, updates and
  deletions either fully commits or leaves the store untouched. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPLY ORDER:
  Deletions run before upserts inside the same transaction. When a row is
  being moved between subjects in one call, deleting first avoids a
  unique-constraint collision. Not expected in practice; the ordering is a
  correctness guard, not an optimization.

UPSERT SEMANTICS:
  Rows are unique on (meeting_id, subject_kind, subject_id).
  - Upsert with an id: insert, or update status if the id already exists.
  - Upsert without an id: a fresh identifier is generated server-side,
    but the insert conflicts on the subject key instead of creating a
    duplicate - replaying a create therefore returns the identifier the
    first apply assigned. That keeps applyBatch idempotent.

KEY TABLES:
  attendance:  one row per (meeting, subject) decision
  meetings:    meeting read model (hydration scope)
  members, guests, pipeliners: roster read model

CONCURRENCY:
  sync.Mutex around writes, as elsewhere in this codebase. SQLite runs in
  WAL mode: readers don't block, single writer at a time.

SEE ALSO:
  - gateway/gateway.go: Backend contract
  - store/restapi: Tiers 2/3 (API-mediated, weaker atomicity)
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/attendance"
)

// Store implements gateway.Backend over a dedicated SQLite connection.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Attendance rows: one decision per (meeting, subject).
	-- Absence of a row means "no decision recorded", never "absent".
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL,
		subject_kind TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one row per subject per meeting. Creates conflict here
	-- instead of duplicating, which is what makes replayed batches return
	-- the originally assigned identifiers.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_meeting_subject
		ON attendance(meeting_id, subject_kind, subject_id);

	CREATE INDEX IF NOT EXISTS idx_attendance_meeting
		ON attendance(meeting_id);

	-- Meetings (read model for hydration scope)
	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		meeting_type TEXT NOT NULL DEFAULT '',
		held_on TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Roster read model. The engine marks attendance against these lists
	-- but never owns their lifecycle.
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS guests (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS pipeliners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BATCH APPLY (gateway.Backend interface)
// =============================================================================

// ApplyBatch applies one batch in a single transaction: deletions first,
// then upserts, then the canonical rows are read back before commit.
// On any failure the transaction rolls back fully and the store is
// guaranteed unchanged.
func (s *Store) ApplyBatch(ctx context.Context, req attendance.BatchRequest) (attendance.BatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resp attendance.BatchResponse

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return resp, fmt.Errorf("%w: begin: %v", attendance.ErrTransactionFailed, err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	// Deletions first (see package comment). Only ids that actually
	// removed a row for this meeting are reported back.
	var deleted []string
	for _, id := range req.Deletions {
		res, err := sqlTx.ExecContext(ctx,
			"DELETE FROM attendance WHERE id = ? AND meeting_id = ?",
			id, req.MeetingID,
		)
		if err != nil {
			return resp, fmt.Errorf("%w: delete %s: %v", attendance.ErrTransactionFailed, id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted = append(deleted, id)
		}
	}

	// Upserts. Each upsert is validated again here: the store is the last
	// line of defense for the one-status-per-subject invariant, and an
	// invalid row must abort the whole batch, deletions included.
	var records []attendance.UpsertResult
	for _, u := range req.Upserts {
		if err := u.Subject.Validate(); err != nil {
			return resp, err
		}
		if !u.Status.Persistable() || !u.Status.ValidFor(u.Subject.Kind) {
			return resp, &attendance.ValidationError{
				Field:   "upserts.status",
				Message: fmt.Sprintf("status %q is not valid for %s", u.Status, u.Subject.Kind),
			}
		}

		if u.ID != "" {
			_, err = sqlTx.ExecContext(ctx, `
				INSERT INTO attendance (id, meeting_id, subject_kind, subject_id, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					status = excluded.status,
					updated_at = excluded.updated_at
			`, u.ID, req.MeetingID, u.Subject.Kind, u.Subject.ID, u.Status, now, now)
		} else {
			_, err = sqlTx.ExecContext(ctx, `
				INSERT INTO attendance (id, meeting_id, subject_kind, subject_id, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(meeting_id, subject_kind, subject_id) DO UPDATE SET
					status = excluded.status,
					updated_at = excluded.updated_at
			`, uuid.NewString(), req.MeetingID, u.Subject.Kind, u.Subject.ID, u.Status, now, now)
		}
		if err != nil {
			return resp, fmt.Errorf("%w: upsert %s: %v", attendance.ErrTransactionFailed, u.Subject, err)
		}

		// Read back the canonical row inside the transaction so the
		// response reflects exactly what will commit.
		rec := attendance.UpsertResult{Subject: u.Subject}
		err = sqlTx.QueryRowContext(ctx,
			"SELECT id, status FROM attendance WHERE meeting_id = ? AND subject_kind = ? AND subject_id = ?",
			req.MeetingID, u.Subject.Kind, u.Subject.ID,
		).Scan(&rec.ID, &rec.Status)
		if err != nil {
			return resp, fmt.Errorf("%w: read back %s: %v", attendance.ErrTransactionFailed, u.Subject, err)
		}
		records = append(records, rec)
	}

	if err := sqlTx.Commit(); err != nil {
		return resp, fmt.Errorf("%w: commit: %v", attendance.ErrTransactionFailed, err)
	}

	resp.Records = records
	resp.DeletedIDs = deleted
	return resp, nil
}

// =============================================================================
// READS (gateway.Backend interface)
// =============================================================================

// ListAttendance returns all persisted rows for a meeting.
func (s *Store) ListAttendance(ctx context.Context, meetingID string) ([]attendance.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, subject_kind, subject_id, status
		FROM attendance
		WHERE meeting_id = ?
		ORDER BY subject_kind, subject_id
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var out []attendance.Row
	for rows.Next() {
		var r attendance.Row
		if err := rows.Scan(&r.ID, &r.MeetingID, &r.Subject.Kind, &r.Subject.ID, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRoster returns the three subject lists.
func (s *Store) ListRoster(ctx context.Context) (attendance.Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var roster attendance.Roster
	var err error

	if roster.Members, err = s.querySubjects(ctx, "members", attendance.KindMember); err != nil {
		return roster, err
	}
	if roster.Guests, err = s.querySubjects(ctx, "guests", attendance.KindGuest); err != nil {
		return roster, err
	}
	if roster.Pipeliners, err = s.querySubjects(ctx, "pipeliners", attendance.KindPipeliner); err != nil {
		return roster, err
	}
	return roster, nil
}

func (s *Store) querySubjects(ctx context.Context, table string, kind attendance.SubjectKind) ([]attendance.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, active FROM "+table+" ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var entries []attendance.RosterEntry
	for rows.Next() {
		var e attendance.RosterEntry
		e.Subject.Kind = kind
		if err := rows.Scan(&e.Subject.ID, &e.Name, &e.Active); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// MEETING READ MODEL
// =============================================================================

// Meeting is one meeting record.
type Meeting struct {
	ID          string
	MeetingType string
	HeldOn      time.Time
	CreatedAt   time.Time
}

// SaveMeeting saves a meeting record.
func (s *Store) SaveMeeting(ctx context.Context, m Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, meeting_type, held_on, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			meeting_type = excluded.meeting_type,
			held_on = excluded.held_on
	`, m.ID, m.MeetingType, m.HeldOn.Format("2006-01-02"),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetMeeting retrieves a meeting by id. Returns nil when not found.
func (s *Store) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m Meeting
	var heldOn, createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, meeting_type, held_on, created_at FROM meetings WHERE id = ?",
		id,
	).Scan(&m.ID, &m.MeetingType, &heldOn, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.HeldOn, _ = time.Parse("2006-01-02", heldOn)
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &m, nil
}

// =============================================================================
// ROSTER WRITES (seed/tooling only - the surrounding app owns the roster)
// =============================================================================

// SaveSubject inserts or updates one roster entry.
func (s *Store) SaveSubject(ctx context.Context, entry attendance.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := rosterTable(entry.Subject.Kind)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, name, active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active
	`, entry.Subject.ID, entry.Name, entry.Active,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func rosterTable(kind attendance.SubjectKind) (string, error) {
	switch kind {
	case attendance.KindMember:
		return "members", nil
	case attendance.KindGuest:
		return "guests", nil
	case attendance.KindPipeliner:
		return "pipeliners", nil
	}
	return "", fmt.Errorf("unknown subject kind %q", kind)
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"attendance", "meetings", "members", "guests", "pipeliners"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
