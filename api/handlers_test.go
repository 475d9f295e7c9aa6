package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/gateway"
	"github.com/warp/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func testServer(t *testing.T) (*memory.Store, *httptest.Server) {
	t.Helper()
	store := memory.New()
	h := NewHandler(gateway.New(store, gateway.TierDirect))
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return store, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// =============================================================================
// SAVE ENDPOINT
// =============================================================================

func TestSaveAttendance_AppliesBatch(t *testing.T) {
	store, srv := testServer(t)

	resp := postJSON(t, srv.URL+"/api/attendance/save", attendance.BatchRequest{
		MeetingID:   "mtg-1",
		MeetingType: "weekly",
		Upserts: []attendance.UpsertRow{
			{Subject: attendance.Member("m-1"), Status: attendance.StatusPresent},
			{Subject: attendance.Guest("g-1"), Status: attendance.StatusPresent},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[attendance.BatchResponse](t, resp)
	assert.True(t, body.Success)
	require.Len(t, body.Records, 2)
	assert.NotEmpty(t, body.Records[0].ID)
	assert.Len(t, store.Rows(), 2)
}

func TestSaveAttendance_MissingMeetingIDIs400(t *testing.T) {
	store, srv := testServer(t)

	resp := postJSON(t, srv.URL+"/api/attendance/save", attendance.BatchRequest{
		Upserts: []attendance.UpsertRow{
			{Subject: attendance.Member("m-1"), Status: attendance.StatusPresent},
		},
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[attendance.BatchResponse](t, resp)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "meetingId")
	assert.Empty(t, store.Rows())
}

func TestSaveAttendance_GuestTriStateIs400(t *testing.T) {
	_, srv := testServer(t)

	resp := postJSON(t, srv.URL+"/api/attendance/save", attendance.BatchRequest{
		MeetingID: "mtg-1",
		Upserts: []attendance.UpsertRow{
			{Subject: attendance.Guest("g-1"), Status: attendance.StatusAbsent},
		},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSaveAttendance_StoreFailureIs500(t *testing.T) {
	store, srv := testServer(t)
	store.FailNextApply = attendance.ErrTransactionFailed

	resp := postJSON(t, srv.URL+"/api/attendance/save", attendance.BatchRequest{
		MeetingID: "mtg-1",
		Upserts: []attendance.UpsertRow{
			{Subject: attendance.Member("m-1"), Status: attendance.StatusPresent},
		},
	})

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[attendance.BatchResponse](t, resp)
	assert.False(t, body.Success)
	assert.Empty(t, body.Records)
}

func TestSaveAttendance_NetworkFailureIs502(t *testing.T) {
	store, srv := testServer(t)
	store.FailNextApply = attendance.ErrNetwork

	resp := postJSON(t, srv.URL+"/api/attendance/save", attendance.BatchRequest{
		MeetingID: "mtg-1",
		Upserts: []attendance.UpsertRow{
			{Subject: attendance.Member("m-1"), Status: attendance.StatusPresent},
		},
	})

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// READ ENDPOINTS
// =============================================================================

func TestGetMeetingAttendance_EmptyMeetingReturnsEmptyList(t *testing.T) {
	_, srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/meetings/mtg-1/attendance")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[AttendanceRowsDTO](t, resp)
	assert.Equal(t, "mtg-1", body.MeetingID)
	assert.NotNil(t, body.Rows)
	assert.Empty(t, body.Rows)
}

func TestGetMeetingAttendance_ReturnsPersistedRows(t *testing.T) {
	store, srv := testServer(t)
	store.SeedRow(attendance.Row{
		ID: "a-1", MeetingID: "mtg-1",
		Subject: attendance.Member("m-1"), Status: attendance.StatusApology,
	})
	store.SeedRow(attendance.Row{
		ID: "a-2", MeetingID: "mtg-OTHER",
		Subject: attendance.Member("m-2"), Status: attendance.StatusPresent,
	})

	resp, err := http.Get(srv.URL + "/api/meetings/mtg-1/attendance")
	require.NoError(t, err)

	body := decode[AttendanceRowsDTO](t, resp)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "a-1", body.Rows[0].ID)
	assert.Equal(t, attendance.StatusApology, body.Rows[0].Status)
}

func TestGetAttendanceSummary_CountsAndRate(t *testing.T) {
	// 2 present, 1 apology, 1 absent over members: 2/4 = 50.0%.
	// Guests and pipeliners count separately and never affect the rate.

	store, srv := testServer(t)
	seed := []attendance.Row{
		{ID: "a-1", Subject: attendance.Member("m-1"), Status: attendance.StatusPresent},
		{ID: "a-2", Subject: attendance.Member("m-2"), Status: attendance.StatusPresent},
		{ID: "a-3", Subject: attendance.Member("m-3"), Status: attendance.StatusApology},
		{ID: "a-4", Subject: attendance.Member("m-4"), Status: attendance.StatusAbsent},
		{ID: "a-5", Subject: attendance.Guest("g-1"), Status: attendance.StatusPresent},
		{ID: "a-6", Subject: attendance.Pipeliner("p-1"), Status: attendance.StatusPresent},
	}
	for _, row := range seed {
		row.MeetingID = "mtg-1"
		store.SeedRow(row)
	}

	resp, err := http.Get(srv.URL + "/api/meetings/mtg-1/attendance/summary")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[SummaryDTO](t, resp)
	assert.Equal(t, 2, body.MembersPresent)
	assert.Equal(t, 1, body.MembersApology)
	assert.Equal(t, 1, body.MembersAbsent)
	assert.Equal(t, 1, body.GuestsPresent)
	assert.Equal(t, 1, body.PipelinersPresent)
	assert.Equal(t, "50.0", body.AttendanceRate)
}

func TestGetAttendanceSummary_NoDecisionsIsZeroRate(t *testing.T) {
	_, srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/meetings/mtg-1/attendance/summary")
	require.NoError(t, err)

	body := decode[SummaryDTO](t, resp)
	assert.Equal(t, "0.0", body.AttendanceRate)
}

func TestGetRoster_ReturnsSeededRoster(t *testing.T) {
	store, srv := testServer(t)
	store.SeedRoster(attendance.Roster{
		Members: []attendance.RosterEntry{{Subject: attendance.Member("m-1"), Name: "Ada", Active: true}},
		Guests:  []attendance.RosterEntry{{Subject: attendance.Guest("g-1"), Name: "Grace", Active: true}},
	})

	resp, err := http.Get(srv.URL + "/api/roster")
	require.NoError(t, err)

	body := decode[attendance.Roster](t, resp)
	require.Len(t, body.Members, 1)
	assert.Equal(t, "Ada", body.Members[0].Name)
	require.Len(t, body.Guests, 1)
}

// =============================================================================
// SUMMARY ROUNDING
// =============================================================================

func TestSummarize_RoundsToOneDecimal(t *testing.T) {
	rows := []attendance.Row{
		{Subject: attendance.Member("m-1"), Status: attendance.StatusPresent},
		{Subject: attendance.Member("m-2"), Status: attendance.StatusPresent},
		{Subject: attendance.Member("m-3"), Status: attendance.StatusAbsent},
	}

	s := summarize("mtg-1", rows)

	// 2/3 = 66.666...%, rounded half-up to one place.
	assert.Equal(t, "66.7", s.AttendanceRate)
}
