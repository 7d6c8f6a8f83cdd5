package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tripflow/model"
)

func TestDerive_diffReportsCostAndRankChanges(t *testing.T) {
	e := newTestEngine()
	spec := testSpec()

	first := e.Derive(spec, testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})

	next := testDecision()
	next.Itineraries[0].Budget.TotalPerPerson = 950
	next.DecisionMatrix.Rows = []model.MatrixRow{
		{ItineraryID: "it-snowbird", ResortName: "Snowbird", Rank: 1, Score: 86},
		{ItineraryID: "it-alta", ResortName: "Alta", Rank: 2, Score: 84},
	}
	second := e.Derive(spec, next, &first, DeriveOptions{Trigger: model.TriggerRecomputeRefreshedLive})

	diff := second.Workflow.Repeatability.LatestDiff
	require.NotNil(t, diff)
	assert.True(t, diff.SnapshotChanged)

	require.Len(t, diff.CostDeltas, 1)
	assert.Equal(t, "it-alta", diff.CostDeltas[0].ItineraryID)
	assert.InDelta(t, 50.0, diff.CostDeltas[0].Delta, 0.001)
	assert.InDelta(t, 900.0, diff.CostDeltas[0].Previous, 0.001)

	var alta *model.RankChange
	for i := range diff.RankChanges {
		if diff.RankChanges[i].ItineraryID == "it-alta" {
			alta = &diff.RankChanges[i]
		}
	}
	require.NotNil(t, alta)
	assert.Equal(t, 1, alta.PreviousRank)
	assert.Equal(t, 2, alta.CurrentRank)
	assert.True(t, diff.LockedDecisionsPreserved)
	assert.Equal(t, "1 itinerary cost change(s), 2 rank change(s); locked decisions preserved.", diff.Summary)
}

func TestDiffRuns_lodgingCountDoesNotChangeDigest(t *testing.T) {
	base := testDecision()
	more := testDecision()
	more.Itineraries[0].Lodging.Options = append(more.Itineraries[0].Lodging.Options, model.LodgingOption{Name: "Goldminer's Daughter"})

	a := buildSnapshot(base, nil)
	b := buildSnapshot(more, nil)
	assert.Equal(t, snapshotDigest(a), snapshotDigest(b))

	diff := DiffRuns(
		model.RunMetadata{RunID: "r1", Snapshot: a, SnapshotDigest: snapshotDigest(a)},
		model.RunMetadata{RunID: "r2", Snapshot: b, SnapshotDigest: snapshotDigest(b)},
	)
	require.Len(t, diff.LodgingDeltas, 1)
	assert.Equal(t, 1, diff.LodgingDeltas[0].Delta)
	assert.False(t, diff.SnapshotChanged)
}

func TestDiffRuns_lockNoLongerOffered(t *testing.T) {
	locks := []model.LockedDecision{{Type: model.DecisionResort, Value: "Alta", Locked: true}}
	prev := buildSnapshot(testDecision(), locks)

	withoutAlta := testDecision()
	withoutAlta.Itineraries = withoutAlta.Itineraries[1:]
	cur := buildSnapshot(withoutAlta, locks)

	diff := DiffRuns(model.RunMetadata{Snapshot: prev}, model.RunMetadata{Snapshot: cur})

	assert.False(t, diff.LockedDecisionsPreserved)
	require.Len(t, diff.PreservationNotes, 1)
	assert.Contains(t, diff.PreservationNotes[0], "no longer appears")
	assert.Contains(t, diff.Summary, "NOT preserved")
}

func TestDiffRuns_releasedLockIsNotPreserved(t *testing.T) {
	prev := buildSnapshot(testDecision(), []model.LockedDecision{{Type: model.DecisionDates, Value: "2027-02-12 to 2027-02-15", Locked: true}})
	cur := buildSnapshot(testDecision(), nil)

	diff := DiffRuns(model.RunMetadata{Snapshot: prev}, model.RunMetadata{Snapshot: cur})

	assert.False(t, diff.LockedDecisionsPreserved)
	assert.Contains(t, diff.PreservationNotes[0], "released")
}

func TestBuildSnapshot_skipsUnlockedEntries(t *testing.T) {
	snap := buildSnapshot(testDecision(), []model.LockedDecision{
		{Type: model.DecisionResort, Value: "Alta", Locked: false},
	})
	assert.Nil(t, snap.Locks)
}
