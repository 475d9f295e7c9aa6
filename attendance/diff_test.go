package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MINIMALITY
// =============================================================================

func TestComputeDiff_CleanLedgerIsEmpty(t *testing.T) {
	l := attendance.NewLedger(weeklyMeeting())
	l.LoadBaseline([]attendance.Row{
		row("a-1", attendance.Member("m-1"), attendance.StatusPresent),
		row("a-2", attendance.Member("m-2"), attendance.StatusAbsent),
	})

	cs := attendance.ComputeDiff(l)

	assert.True(t, cs.Empty())
	assert.Empty(t, cs.Touched)
}

func TestComputeDiff_SkipsUntouchedSubjects(t *testing.T) {
	// GIVEN: Two hydrated subjects, one edited
	// THEN: The diff covers only the edited one - untouched subjects are
	//       never resent

	l := attendance.NewLedger(weeklyMeeting())
	m1 := attendance.Member("m-1")
	m2 := attendance.Member("m-2")
	l.LoadBaseline([]attendance.Row{
		row("a-1", m1, attendance.StatusPresent),
		row("a-2", m2, attendance.StatusPresent),
	})
	require.NoError(t, l.SetCurrent(m2, attendance.StatusApology))

	cs := attendance.ComputeDiff(l)

	require.Len(t, cs.Upserts, 1)
	assert.Equal(t, m2, cs.Upserts[0].Subject)
	assert.Equal(t, "a-2", cs.Upserts[0].ID)
	assert.Equal(t, attendance.StatusApology, cs.Upserts[0].Status)
	assert.Empty(t, cs.Deletions)
	assert.Equal(t, []attendance.Subject{m2}, cs.Touched)
}

// =============================================================================
// CREATE / UPDATE / DELETE CLASSIFICATION
// =============================================================================

func TestComputeDiff_NewSubjectEmitsCreate(t *testing.T) {
	l := attendance.NewLedger(weeklyMeeting())
	g := attendance.Guest("g-1")
	require.NoError(t, l.SetCurrent(g, attendance.StatusPresent))

	cs := attendance.ComputeDiff(l)

	require.Len(t, cs.Upserts, 1)
	assert.Empty(t, cs.Upserts[0].ID, "no row id yet means create")
	assert.Equal(t, g, cs.Upserts[0].Subject)
}

func TestComputeDiff_UnsetWithRowEmitsDeletion(t *testing.T) {
	// GIVEN: Member with attendanceId=a-1, baseline present
	// WHEN: The user sets current to unset
	// THEN: The diff emits deletions=[a-1] and no upsert for that member

	l := attendance.NewLedger(weeklyMeeting())
	m := attendance.Member("m-1")
	l.LoadBaseline([]attendance.Row{row("a-1", m, attendance.StatusPresent)})
	require.NoError(t, l.SetCurrent(m, attendance.StatusUnset))

	cs := attendance.ComputeDiff(l)

	assert.Equal(t, []string{"a-1"}, cs.Deletions)
	assert.Empty(t, cs.Upserts)
	assert.Equal(t, []attendance.Subject{m}, cs.Touched)
}

func TestComputeDiff_UnsetWithoutRowEmitsNothing(t *testing.T) {
	// A decision that was never persisted and is cleared again needs no
	// deletion - there is no row to delete.

	l := attendance.NewLedger(weeklyMeeting())
	m := attendance.Member("m-1")
	require.NoError(t, l.SetCurrent(m, attendance.StatusPresent))
	require.NoError(t, l.SetCurrent(m, attendance.StatusUnset))

	cs := attendance.ComputeDiff(l)

	assert.True(t, cs.Empty())
}

// =============================================================================
// OUTPUT SHAPE
// =============================================================================

func TestComputeDiff_DeterministicOrdering(t *testing.T) {
	l := attendance.NewLedger(weeklyMeeting())
	require.NoError(t, l.SetCurrent(attendance.Member("m-2"), attendance.StatusPresent))
	require.NoError(t, l.SetCurrent(attendance.Guest("g-1"), attendance.StatusPresent))
	require.NoError(t, l.SetCurrent(attendance.Member("m-1"), attendance.StatusAbsent))

	first := attendance.ComputeDiff(l)
	second := attendance.ComputeDiff(l)

	assert.Equal(t, first.Upserts, second.Upserts)
	// guest < member lexically; within a kind, by id.
	assert.Equal(t, attendance.Guest("g-1"), first.Upserts[0].Subject)
	assert.Equal(t, attendance.Member("m-1"), first.Upserts[1].Subject)
	assert.Equal(t, attendance.Member("m-2"), first.Upserts[2].Subject)
}

func TestComputeDiff_SentSnapshotRecordsCurrentValues(t *testing.T) {
	l := attendance.NewLedger(weeklyMeeting())
	m := attendance.Member("m-1")
	l.LoadBaseline([]attendance.Row{row("a-1", m, attendance.StatusPresent)})
	require.NoError(t, l.SetCurrent(m, attendance.StatusUnset))

	cs := attendance.ComputeDiff(l)

	assert.Equal(t, attendance.StatusUnset, cs.Sent[m])
}

func TestChangeSet_RequestCarriesMeetingScope(t *testing.T) {
	l := attendance.NewLedger(weeklyMeeting())
	require.NoError(t, l.SetCurrent(attendance.Member("m-1"), attendance.StatusPresent))

	req := attendance.ComputeDiff(l).Request(l.Meeting())

	assert.Equal(t, "mtg-1", req.MeetingID)
	assert.Equal(t, "weekly", req.MeetingType)
	assert.NoError(t, req.Validate())
}
