package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// BASELINE REPLACEMENT AND ID BINDING
// =============================================================================

func TestApplyResponse_BindsServerAssignedID(t *testing.T) {
	// GIVEN: A guest marked attended with no row yet
	// WHEN: The gateway responds with a fresh canonical id
	// THEN: The entry binds to it and is clean

	l := attendance.NewLedger(weeklyMeeting())
	g := attendance.Guest("g-1")
	require.NoError(t, l.SetCurrent(g, attendance.StatusPresent))

	cs := attendance.ComputeDiff(l)
	l.ApplyResponse(attendance.BatchResponse{
		Success: true,
		Records: []attendance.UpsertResult{{ID: "a-new", Subject: g, Status: attendance.StatusPresent}},
	}, cs.Sent)

	e := l.Get(g)
	assert.Equal(t, "a-new", e.AttendanceID)
	assert.Equal(t, attendance.StatusPresent, e.Baseline)
	assert.Equal(t, attendance.StatusPresent, e.Current)
	assert.False(t, l.IsDirty(g))
}

func TestApplyResponse_DeletionClearsBaselineAndID(t *testing.T) {
	l := attendance.NewLedger(weeklyMeeting())
	m := attendance.Member("m-1")
	l.LoadBaseline([]attendance.Row{row("a-1", m, attendance.StatusPresent)})
	require.NoError(t, l.SetCurrent(m, attendance.StatusUnset))

	cs := attendance.ComputeDiff(l)
	l.ApplyResponse(attendance.BatchResponse{
		Success:    true,
		DeletedIDs: []string{"a-1"},
	}, cs.Sent)

	e := l.Get(m)
	assert.Empty(t, e.AttendanceID)
	assert.Equal(t, attendance.StatusUnset, e.Baseline)
	assert.Equal(t, attendance.StatusUnset, e.Current)
	assert.False(t, l.IsDirty(m))
}

// =============================================================================
// THE DON'T-CLOBBER RULE
// =============================================================================

func TestApplyResponse_PreservesEditMadeDuringFlight(t *testing.T) {
	// GIVEN: A batch sent with M=present
	// WHEN: The user flips M to apology while the batch is in flight
	// THEN: The merge updates baseline/id but leaves the newer edit
	//       dirty for the next cycle

	l := attendance.NewLedger(weeklyMeeting())
	m := attendance.Member("m-1")
	require.NoError(t, l.SetCurrent(m, attendance.StatusPresent))
	cs := attendance.ComputeDiff(l)

	// Edit lands mid-flight.
	require.NoError(t, l.SetCurrent(m, attendance.StatusApology))

	l.ApplyResponse(attendance.BatchResponse{
		Success: true,
		Records: []attendance.UpsertResult{{ID: "a-1", Subject: m, Status: attendance.StatusPresent}},
	}, cs.Sent)

	e := l.Get(m)
	assert.Equal(t, "a-1", e.AttendanceID)
	assert.Equal(t, attendance.StatusPresent, e.Baseline)
	assert.Equal(t, attendance.StatusApology, e.Current, "mid-flight edit must survive the merge")
	assert.True(t, l.IsDirty(m))
}

func TestApplyResponse_PreservesReEditAfterDeletionSent(t *testing.T) {
	// GIVEN: A deletion sent for M (current was unset)
	// WHEN: The user re-marks M present while the deletion is in flight
	// THEN: Baseline and id clear, but the new present edit stays

	l := attendance.NewLedger(weeklyMeeting())
	m := attendance.Member("m-1")
	l.LoadBaseline([]attendance.Row{row("a-1", m, attendance.StatusPresent)})
	require.NoError(t, l.SetCurrent(m, attendance.StatusUnset))
	cs := attendance.ComputeDiff(l)

	require.NoError(t, l.SetCurrent(m, attendance.StatusPresent))

	l.ApplyResponse(attendance.BatchResponse{
		Success:    true,
		DeletedIDs: []string{"a-1"},
	}, cs.Sent)

	e := l.Get(m)
	assert.Empty(t, e.AttendanceID)
	assert.Equal(t, attendance.StatusUnset, e.Baseline)
	assert.Equal(t, attendance.StatusPresent, e.Current)
	assert.True(t, l.IsDirty(m), "the re-edit becomes the next cycle's upsert")
}

// =============================================================================
// ISOLATION FROM UNRELATED SAVES
// =============================================================================

func TestApplyResponse_UnrelatedSaveNeverClearsOtherDirtyState(t *testing.T) {
	// GIVEN: An edit for X arrives while a batch NOT including X is in
	//        flight
	// THEN: After that save's merge, X is still dirty

	l := attendance.NewLedger(weeklyMeeting())
	m := attendance.Member("m-1")
	x := attendance.Member("x-1")
	require.NoError(t, l.SetCurrent(m, attendance.StatusPresent))
	cs := attendance.ComputeDiff(l)

	require.NoError(t, l.SetCurrent(x, attendance.StatusApology))

	l.ApplyResponse(attendance.BatchResponse{
		Success: true,
		Records: []attendance.UpsertResult{{ID: "a-1", Subject: m, Status: attendance.StatusPresent}},
	}, cs.Sent)

	assert.False(t, l.IsDirty(m))
	assert.True(t, l.IsDirty(x), "an unrelated save must not touch X")
	assert.Equal(t, attendance.StatusApology, l.Get(x).Current)
}
