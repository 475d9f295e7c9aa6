/*
gateway.go - Batch persistence gateway

PURPOSE:
  The server-resident entry point for attendance batches. Accepts one
  batch (upserts + deletions) for one meeting and applies it through the
  configured backing-store adapter, returning canonical records.

GUARANTEES:
  - Validation happens before any store access: a request without a
    meeting id fails fast and never reaches an adapter.
  - A batch is never partially reported: on failure the response carries
    no records and no deleted ids, only the error.
  - Exactly one adapter tier serves a request. There is no mid-request
    fallback to another tier - retrying a possibly-applied batch under a
    different identity would be worse than failing loudly.

ATOMICITY BY TIER:
  Tier 1 (direct SQL) applies the whole batch in one transaction.
  Tiers 2/3 (API-mediated) issue deletions and upserts as separate calls;
  a failure between them surfaces as ErrPartialApply, never as a plain
  transaction failure. See attendance/errors.go.

SEE ALSO:
  - config.go: Tier selection from configuration (done once at startup)
  - store/sqlite: Tier 1 adapter
  - store/restapi: Tier 2/3 adapter
*/
package gateway

import (
	"context"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// Backend is one backing-store access strategy. Implementations:
// *sqlite.Store (direct transactional), *restapi.Client (privileged or
// caller-scoped), *memory.Store (tests).
type Backend interface {
	// ApplyBatch applies one batch and returns the canonical post-apply
	// rows. Tier 1 implementations are all-or-nothing.
	ApplyBatch(ctx context.Context, req attendance.BatchRequest) (attendance.BatchResponse, error)

	// ListAttendance returns the persisted rows for a meeting, used to
	// hydrate the client ledger.
	ListAttendance(ctx context.Context, meetingID string) ([]attendance.Row, error)

	// ListRoster returns the known subjects (members, guests, pipeliners).
	ListRoster(ctx context.Context) (attendance.Roster, error)
}

// Gateway fronts a single backend selected at startup.
// The backend is injected explicitly - no lazily initialized globals.
type Gateway struct {
	backend Backend
	tier    Tier
}

// New creates a gateway over an already-constructed backend.
func New(backend Backend, tier Tier) *Gateway {
	return &Gateway{backend: backend, tier: tier}
}

// Tier returns the adapter tier serving this gateway.
func (g *Gateway) Tier() Tier { return g.tier }

// ApplyBatch validates and applies one batch.
//
// The returned response always mirrors the error state: on any failure it
// has Success=false, an error message, and no records. The error value
// classifies the failure (validation, transaction, partial apply, network).
func (g *Gateway) ApplyBatch(ctx context.Context, req attendance.BatchRequest) (attendance.BatchResponse, error) {
	if err := req.Validate(); err != nil {
		batchTotal.WithLabelValues(g.tier.String(), "rejected").Inc()
		return attendance.BatchResponse{Success: false, Error: err.Error()}, err
	}

	// Nothing to do. Callers avoid sending empty batches; if one arrives
	// anyway it succeeds without touching the store.
	if req.Empty() {
		return attendance.BatchResponse{Success: true}, nil
	}

	start := time.Now()
	resp, err := g.backend.ApplyBatch(ctx, req)
	applyDuration.WithLabelValues(g.tier.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		batchTotal.WithLabelValues(g.tier.String(), "failed").Inc()
		return attendance.BatchResponse{Success: false, Error: err.Error()}, err
	}

	batchTotal.WithLabelValues(g.tier.String(), "applied").Inc()
	rowsUpserted.Add(float64(len(resp.Records)))
	rowsDeleted.Add(float64(len(resp.DeletedIDs)))

	resp.Success = true
	resp.Error = ""
	return resp, nil
}

// ListAttendance returns the persisted rows for a meeting.
func (g *Gateway) ListAttendance(ctx context.Context, meetingID string) ([]attendance.Row, error) {
	if meetingID == "" {
		return nil, &attendance.ValidationError{Field: "meetingId", Message: "meetingId is required"}
	}
	return g.backend.ListAttendance(ctx, meetingID)
}

// ListRoster returns the subject lists.
func (g *Gateway) ListRoster(ctx context.Context) (attendance.Roster, error) {
	return g.backend.ListRoster(ctx)
}
