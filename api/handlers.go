/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the batch persistence gateway and its read models via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  gateway; no persistence logic lives here.

ENDPOINTS:
  POST /api/attendance/save                    Apply one batch for one meeting
  GET  /api/meetings/{id}/attendance           Persisted rows (ledger hydration)
  GET  /api/meetings/{id}/attendance/summary   Counts and attendance rate
  GET  /api/roster                             Members / guests / pipeliners
  GET  /metrics                                Prometheus metrics

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the error
  kind:
  - 400: Validation (missing meetingId, bad subject/status) - no store
         access was attempted
  - 500: Transaction failure (tier 1 rolled back, store unchanged)
  - 502: Backing store unreachable, or a tier 2/3 partial apply
  The save endpoint's body is always a BatchResponse so clients have one
  shape to handle; on failure it carries success=false and the message.

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
  - gateway/gateway.go: The contract this layer fronts
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/gateway"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Gateway *gateway.Gateway
}

// NewHandler creates a handler over an already-wired gateway.
func NewHandler(gw *gateway.Gateway) *Handler {
	return &Handler{Gateway: gw}
}

// =============================================================================
// SAVE ENDPOINT
// =============================================================================

// SaveAttendance applies one attendance batch.
// POST /api/attendance/save
func (h *Handler) SaveAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendance.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp, err := h.Gateway.ApplyBatch(r.Context(), req)
	if err != nil {
		writeJSON(w, statusFor(err), resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case attendance.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrPartialApply),
		errors.Is(err, attendance.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// READ ENDPOINTS
// =============================================================================

// GetMeetingAttendance returns the persisted rows for a meeting.
// GET /api/meetings/{id}/attendance
func (h *Handler) GetMeetingAttendance(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "id")

	rows, err := h.Gateway.ListAttendance(r.Context(), meetingID)
	if err != nil {
		writeError(w, statusFor(err), "Failed to list attendance", err)
		return
	}
	if rows == nil {
		rows = []attendance.Row{}
	}

	writeJSON(w, http.StatusOK, AttendanceRowsDTO{MeetingID: meetingID, Rows: rows})
}

// GetAttendanceSummary returns counts and the member attendance rate.
// GET /api/meetings/{id}/attendance/summary
func (h *Handler) GetAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "id")

	rows, err := h.Gateway.ListAttendance(r.Context(), meetingID)
	if err != nil {
		writeError(w, statusFor(err), "Failed to list attendance", err)
		return
	}

	writeJSON(w, http.StatusOK, summarize(meetingID, rows))
}

// summarize folds persisted rows into the summary DTO. The rate is
// present / (present + apology + absent) over members only, as a
// percentage with one decimal place. Guests and pipeliners only ever
// have present rows, so a rate would be meaningless for them.
func summarize(meetingID string, rows []attendance.Row) SummaryDTO {
	s := SummaryDTO{MeetingID: meetingID, AttendanceRate: "0.0"}

	for _, row := range rows {
		switch row.Subject.Kind {
		case attendance.KindMember:
			switch row.Status {
			case attendance.StatusPresent:
				s.MembersPresent++
			case attendance.StatusApology:
				s.MembersApology++
			case attendance.StatusAbsent:
				s.MembersAbsent++
			}
		case attendance.KindGuest:
			s.GuestsPresent++
		case attendance.KindPipeliner:
			s.PipelinersPresent++
		}
	}

	decided := s.MembersPresent + s.MembersApology + s.MembersAbsent
	if decided > 0 {
		rate := decimal.NewFromInt(int64(s.MembersPresent)).
			Div(decimal.NewFromInt(int64(decided))).
			Mul(decimal.NewFromInt(100)).
			Round(1)
		s.AttendanceRate = rate.StringFixed(1)
	}
	return s
}

// GetRoster returns the subject lists.
// GET /api/roster
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.Gateway.ListRoster(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "Failed to list roster", err)
		return
	}

	writeJSON(w, http.StatusOK, roster)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
