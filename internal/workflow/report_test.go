package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tripflow/model"
)

func TestBuildSnapshotReport_derivesMissingWorkflow(t *testing.T) {
	e := newTestEngine()

	report := e.BuildSnapshotReport(lockedSpec(), testDecision())

	data := report.Structured
	assert.Equal(t, "2027-02-12", data.Trip.StartDate)
	assert.Equal(t, 4, data.Trip.GroupSize)
	assert.Equal(t, model.StageDecisionLocking, data.Workflow.Stage.Current)
	assert.Empty(t, data.Workflow.Repeatability.Runs, "report must not record a run")

	require.Len(t, data.Decision.Ranking, 2)
	assert.Equal(t, "it-alta", data.Decision.Ranking[0].ItineraryID)
	assert.InDelta(t, 900.0, data.Decision.Ranking[0].TotalPerPerson, 0.001)
}

func TestBuildSnapshotReport_markdown(t *testing.T) {
	e := newTestEngine()
	decision := e.Derive(lockedSpec(), testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})

	md := e.BuildSnapshotReport(lockedSpec(), decision).Markdown

	assert.Contains(t, md, "# Trip snapshot")
	assert.Contains(t, md, "- Current stage: decision_locking (blocked)")
	assert.Contains(t, md, "- Booking ready: no (")
	assert.Contains(t, md, "- resort: Alta (tripspec)")
	assert.Contains(t, md, "1. Alta: score 87.5, 900 per person")
	assert.Contains(t, md, "2. Snowbird: score 80.0, 1050 per person")
	assert.Contains(t, md, "No previous run to compare.")
	assert.Contains(t, md, "- [ ] Book lodging (critical)")
}

func TestRanking_sortsByRank(t *testing.T) {
	decision := testDecision()
	decision.DecisionMatrix.Rows[0].Rank, decision.DecisionMatrix.Rows[1].Rank = 2, 1

	lines := ranking(decision)

	require.Len(t, lines, 2)
	assert.Equal(t, "it-snowbird", lines[0].ItineraryID)
	assert.Equal(t, 1, lines[0].Rank)
}
