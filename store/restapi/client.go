/*
Package restapi is the tier 2/3 backing-store adapter: an API-mediated
client over the backing data service.

PURPOSE:
  Used when no direct database connection is configured. Two modes share
  the implementation and differ only in the credential presented:

    Privileged   - an elevated, non-user-scoped service key (tier 2)
    CallerScoped - the calling user's own session token (tier 3), further
                   constrained by the caller's access policy

WEAKER ATOMICITY - READ THIS:
  The data API has no cross-call transactions. A batch is applied as two
  sequential calls: deletions, then upserts. A failure between them leaves
  the store reflecting only the deletions. That case surfaces as
  attendance.ErrPartialApply and is deliberately distinct from a tier 1
  transaction failure: the caller must re-fetch baseline before the next
  save. No compensating undo is attempted - re-inserting rows client-side
  would fabricate state with stale identifiers and can itself fail
  half-way. Documented accepted limitation of these tiers.

WIRE PROTOCOL:
  POST {base}/attendance/delete  {"meetingId", "ids"}     -> {"deletedIds"}
  POST {base}/attendance/upsert  {"meetingId", "rows"}    -> {"records"}
  GET  {base}/attendance?meetingId=...                    -> {"rows"}
  GET  {base}/roster                                      -> roster object

SEE ALSO:
  - store/sqlite: Tier 1 (real transactions)
  - gateway/config.go: Which tier gets picked, and why only once
*/
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// Mode names the credential the client presents.
type Mode string

const (
	ModePrivileged   Mode = "privileged"
	ModeCallerScoped Mode = "caller-scoped"
)

// Client implements gateway.Backend against the backing data API.
// Construct it explicitly and inject it - never a package-level singleton.
type Client struct {
	baseURL string
	token   string
	mode    Mode
	http    *http.Client
}

// NewPrivileged creates a tier 2 client authenticated with a service key.
func NewPrivileged(baseURL, serviceKey string) *Client {
	return newClient(baseURL, serviceKey, ModePrivileged)
}

// NewCallerScoped creates a tier 3 client authenticated as the calling
// user's session.
func NewCallerScoped(baseURL, sessionToken string) *Client {
	return newClient(baseURL, sessionToken, ModeCallerScoped)
}

func newClient(baseURL, token string, mode Mode) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		mode:    mode,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Mode returns the credential mode.
func (c *Client) Mode() Mode { return c.mode }

// SetHTTPClient overrides the underlying HTTP client (tests, custom
// transports).
func (c *Client) SetHTTPClient(hc *http.Client) { c.http = hc }

// =============================================================================
// BATCH APPLY (gateway.Backend interface)
// =============================================================================

type deleteCall struct {
	MeetingID string   `json:"meetingId"`
	IDs       []string `json:"ids"`
}

type deleteReply struct {
	DeletedIDs []string `json:"deletedIds"`
}

type upsertCall struct {
	MeetingID string                 `json:"meetingId"`
	Rows      []attendance.UpsertRow `json:"rows"`
}

type upsertReply struct {
	Records []attendance.UpsertResult `json:"records"`
}

// ApplyBatch applies the batch as two sequential calls: deletions, then
// upserts. See the package comment for the atomicity caveat.
func (c *Client) ApplyBatch(ctx context.Context, req attendance.BatchRequest) (attendance.BatchResponse, error) {
	var resp attendance.BatchResponse

	deletionsApplied := false
	if len(req.Deletions) > 0 {
		var reply deleteReply
		err := c.post(ctx, "/attendance/delete", deleteCall{MeetingID: req.MeetingID, IDs: req.Deletions}, &reply)
		if err != nil {
			// First step failed: nothing was applied.
			return resp, &attendance.PartialApplyError{
				Tier:             string(c.mode),
				DeletionsApplied: false,
				Cause:            err,
			}
		}
		resp.DeletedIDs = reply.DeletedIDs
		deletionsApplied = len(reply.DeletedIDs) > 0
	}

	if len(req.Upserts) > 0 {
		var reply upsertReply
		err := c.post(ctx, "/attendance/upsert", upsertCall{MeetingID: req.MeetingID, Rows: req.Upserts}, &reply)
		if err != nil {
			// The dangerous case: deletions may already be in, upserts are
			// not. Never report this as a plain retryable failure.
			return attendance.BatchResponse{}, &attendance.PartialApplyError{
				Tier:             string(c.mode),
				DeletionsApplied: deletionsApplied,
				Cause:            err,
			}
		}
		resp.Records = reply.Records
	}

	return resp, nil
}

// =============================================================================
// READS (gateway.Backend interface)
// =============================================================================

type listReply struct {
	Rows []attendance.Row `json:"rows"`
}

// ListAttendance returns the persisted rows for a meeting.
func (c *Client) ListAttendance(ctx context.Context, meetingID string) ([]attendance.Row, error) {
	var reply listReply
	path := "/attendance?meetingId=" + url.QueryEscape(meetingID)
	if err := c.get(ctx, path, &reply); err != nil {
		return nil, err
	}
	return reply.Rows, nil
}

// ListRoster returns the subject lists.
func (c *Client) ListRoster(ctx context.Context) (attendance.Roster, error) {
	var roster attendance.Roster
	err := c.get(ctx, "/roster", &roster)
	return roster, err
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", attendance.ErrNetwork, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", attendance.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", attendance.ErrNetwork, err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Client-Role", string(c.mode))

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", attendance.ErrNetwork, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%w: %s returned %d: %s", attendance.ErrNetwork, req.URL.Path, res.StatusCode, bytes.TrimSpace(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", attendance.ErrNetwork, err)
	}
	return nil
}
