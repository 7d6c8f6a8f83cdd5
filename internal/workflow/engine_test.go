package workflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tripflow/model"
)

func TestDerive_zeroCandidatesBlocksCompare(t *testing.T) {
	e := newTestEngine()

	out := e.Derive(testSpec(), model.DecisionPackage{}, nil, DeriveOptions{Trigger: model.TriggerChatGeneration})

	require.NotNil(t, out.Workflow)
	w := out.Workflow
	assert.Equal(t, model.StageStatusDone, stageStatus(t, w.Stage, model.StageTripIntake))
	assert.Equal(t, model.StageStatusBlocked, stageStatus(t, w.Stage, model.StageCandidateCompare))
	assert.Equal(t, model.StageCandidateCompare, w.Stage.Current)
	assert.False(t, w.BookingReadiness.Ready)
	for _, id := range model.StageOrder[2:] {
		assert.Equal(t, model.StageStatusTodo, stageStatus(t, w.Stage, id), id)
	}
}

func TestDerive_missingFieldsKeepIntakeInProgress(t *testing.T) {
	spec := testSpec()
	spec.MissingFields = []string{"dates", "group.size"}

	w := newTestEngine().Derive(spec, testDecision(), nil, DeriveOptions{}).Workflow

	intake, _ := w.Stage.Find(model.StageTripIntake)
	assert.Equal(t, model.StageStatusInProgress, intake.Status)
	require.Len(t, intake.Blockers, 1)
	assert.Contains(t, intake.Blockers[0], "group.size")
	assert.Equal(t, model.StageTripIntake, w.Stage.Current)
	assert.Equal(t, model.StageStatusTodo, stageStatus(t, w.Stage, model.StageCandidateCompare))
}

func TestDerive_lockStability(t *testing.T) {
	e := newTestEngine()
	spec := lockedSpec()

	first := e.Derive(spec, testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})
	second := e.Derive(spec, first, nil, DeriveOptions{Trigger: model.TriggerRecomputeSameSnapshot})

	a, err := json.Marshal(first.Workflow.LockedDecisions)
	require.NoError(t, err)
	b, err := json.Marshal(second.Workflow.LockedDecisions)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	require.Len(t, second.Workflow.LockedDecisions, 2)
	assert.Equal(t, model.DecisionDates, second.Workflow.LockedDecisions[0].Type)
	assert.Equal(t, "2027-02-12 to 2027-02-15", second.Workflow.LockedDecisions[0].Value)
	assert.Equal(t, model.DecisionResort, second.Workflow.LockedDecisions[1].Type)
	assert.Equal(t, model.LockSourceTripSpec, second.Workflow.LockedDecisions[1].Source)
}

func TestDerive_changedSpecLockIsRestamped(t *testing.T) {
	e := newTestEngine()
	spec := lockedSpec()
	first := e.Derive(spec, testDecision(), nil, DeriveOptions{})

	spec.Locks.ResortName = "Snowbird"
	second := e.Derive(spec, first, nil, DeriveOptions{})

	before, _ := findLock(first.Workflow.LockedDecisions, model.DecisionResort)
	after, _ := findLock(second.Workflow.LockedDecisions, model.DecisionResort)
	assert.Equal(t, "Snowbird", after.Value)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	var found bool
	for _, entry := range second.Workflow.DecisionLog {
		if entry.Type == model.LogLock && entry.Summary == "resort lock changed from Alta to Snowbird" {
			found = true
		}
	}
	assert.True(t, found, "lock change must be logged")
}

func TestDerive_noopRecomputeDiff(t *testing.T) {
	e := newTestEngine()
	spec := lockedSpec()

	first := e.Derive(spec, testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})
	second := e.Derive(spec, first, nil, DeriveOptions{
		Trigger:       model.TriggerRecomputeSameSnapshot,
		RecomputeMode: model.RecomputeSameSnapshot,
	})

	diff := second.Workflow.Repeatability.LatestDiff
	require.NotNil(t, diff)
	assert.False(t, diff.SnapshotChanged)
	assert.Empty(t, diff.CostDeltas)
	assert.Empty(t, diff.RankChanges)
	assert.True(t, diff.LockedDecisionsPreserved)
	assert.Len(t, diff.PreservationNotes, 2)
	assert.Contains(t, diff.Summary, "No material changes")

	runs := second.Workflow.Repeatability.Runs
	require.Len(t, runs, 2)
	assert.Equal(t, runs[0].SnapshotDigest, runs[1].SnapshotDigest)
	assert.Equal(t, model.RecomputeSameSnapshot, runs[1].RecomputeMode)
}

func TestDerive_noopRecomputeKeepsUnofferedLocksPreserved(t *testing.T) {
	e := newTestEngine()
	spec := testSpec()
	spec.Dates = model.DateSpec{Start: "2027-02-11", End: "2027-02-15"}
	spec.Locks = model.SpecLocks{ResortName: "Brighton", DatesLocked: true}

	first := e.Derive(spec, testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})
	second := e.Derive(spec, first, nil, DeriveOptions{
		Trigger:       model.TriggerRecomputeSameSnapshot,
		RecomputeMode: model.RecomputeSameSnapshot,
	})

	diff := second.Workflow.Repeatability.LatestDiff
	require.NotNil(t, diff)
	assert.False(t, diff.SnapshotChanged)
	assert.True(t, diff.LockedDecisionsPreserved)
	require.Len(t, diff.PreservationNotes, 2)
	for _, note := range diff.PreservationNotes {
		assert.Contains(t, note, "is not offered by any candidate")
	}
	assert.Equal(t, "No material changes since the previous run; locked decisions preserved.", diff.Summary)
}

func TestDerive_logDedupOnRepeatedTrigger(t *testing.T) {
	e := newTestEngine()
	spec := lockedSpec()

	first := e.Derive(spec, testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})
	second := e.Derive(spec, first, nil, DeriveOptions{Trigger: model.TriggerRecomputeSameSnapshot})
	third := e.Derive(spec, second, nil, DeriveOptions{Trigger: model.TriggerRecomputeSameSnapshot})

	assert.Len(t, third.Workflow.DecisionLog, len(second.Workflow.DecisionLog))
	last := third.Workflow.DecisionLog[len(third.Workflow.DecisionLog)-1]
	assert.Equal(t, model.LogRecompute, last.Type)
	assert.Equal(t, "Recomputed on the same data snapshot", last.Summary)
}

func TestDerive_refreshIsNotLogged(t *testing.T) {
	e := newTestEngine()
	first := e.Derive(lockedSpec(), testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})
	second := e.Derive(lockedSpec(), first, nil, DeriveOptions{Trigger: model.TriggerWorkflowRefresh})

	assert.Len(t, second.Workflow.DecisionLog, len(first.Workflow.DecisionLog))
	assert.Len(t, second.Workflow.Repeatability.Runs, 2)
}

func TestDerive_firstRunMetadata(t *testing.T) {
	out := newTestEngine().Derive(testSpec(), testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})

	rep := out.Workflow.Repeatability
	require.Len(t, rep.Runs, 1)
	assert.Nil(t, rep.LatestDiff)

	run := rep.Runs[0]
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, model.TriggerChatGeneration, run.Trigger)
	assert.Equal(t, "planner-large", run.Model)
	assert.Equal(t, "balanced", run.Profile)
	assert.Equal(t, []string{"intake-v2", "ranking-v4"}, run.PromptVersions)
	assert.Equal(t, ScoringVersion, run.ScoringVersion)
	assert.Len(t, run.SnapshotDigest, 64)
	require.NotNil(t, run.ProviderFetch.Lodging)
	assert.Nil(t, run.ProviderFetch.Cars)
	require.Len(t, run.Snapshot.Itineraries, 2)
	assert.Equal(t, "Alta Lodge", run.Snapshot.Itineraries[0].TopLodgingName)
}

func TestDerive_runHistoryIsCapped(t *testing.T) {
	e := newTestEngine()
	out := e.Derive(testSpec(), testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})
	for i := 0; i < 20; i++ {
		out = e.Derive(testSpec(), out, nil, DeriveOptions{Trigger: model.TriggerRecomputeRefreshedLive})
	}
	assert.Len(t, out.Workflow.Repeatability.Runs, maxRuns)
}

func TestDerive_explicitPreviousWins(t *testing.T) {
	e := newTestEngine()
	first := e.Derive(lockedSpec(), testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})

	fresh := testDecision()
	second := e.Derive(lockedSpec(), fresh, &first, DeriveOptions{Trigger: model.TriggerRecomputeRefreshedLive})

	assert.Len(t, second.Workflow.Repeatability.Runs, 2)
	assert.Nil(t, fresh.Workflow, "input decision must not be modified")
}

func TestDerive_emptyPreviousSeedsDefaults(t *testing.T) {
	w := newTestEngine().Derive(testSpec(), testDecision(), nil, DeriveOptions{}).Workflow

	require.Len(t, w.Coordination.Roles, 3)
	assert.Equal(t, model.RolePlanner, w.Coordination.Roles[0].Role)
	require.Len(t, w.Coordination.Votes, 4)
	for i, typ := range model.VoteTypes {
		assert.Equal(t, typ, w.Coordination.Votes[i].Type)
		assert.Equal(t, model.VoteStatusOpen, w.Coordination.Votes[i].Status)
	}
	assert.Equal(t, []string{"Alta", "Snowbird"}, w.Coordination.Votes[0].Options)
	assert.Equal(t, []string{"Alta Lodge", "Cliff Lodge"}, w.Coordination.Votes[2].Options)
	assert.Equal(t, []string{model.OptionApprove, model.OptionRevise}, w.Coordination.Votes[3].Options)
	assert.Equal(t, SheetsColumns, w.Integrations.Sheets.Columns)
}

func TestDerive_voteOptionsStableOnceSeeded(t *testing.T) {
	e := newTestEngine()
	first := e.Derive(testSpec(), testDecision(), nil, DeriveOptions{})

	changed := testDecision()
	changed.Itineraries[1].ResortName = "Brighton"
	changed.Workflow = first.Workflow
	second := e.Derive(testSpec(), changed, nil, DeriveOptions{})

	assert.Equal(t, []string{"Alta", "Snowbird"}, second.Workflow.Coordination.Votes[0].Options)
}

func TestDerive_tasksCarryUserFields(t *testing.T) {
	e := newTestEngine()
	first := e.Derive(testSpec(), testDecision(), nil, DeriveOptions{})
	patched, _, err := e.ApplyActions(testSpec(), first, []model.Action{
		{Type: model.ActionTaskPatch, TaskID: "book-lodging", Owner: strPtr("alice"), Notes: strPtr("ask about parking")},
	})
	require.NoError(t, err)

	board := testDecision()
	board.OpsBoard.Tasks[0].Title = "Book lodging for four"
	board.Workflow = patched.Workflow
	out := e.Derive(testSpec(), board, nil, DeriveOptions{})

	task := findTask(out.Workflow.Coordination.Tasks, "book-lodging")
	require.NotNil(t, task)
	assert.Equal(t, "Book lodging for four", task.Title)
	assert.Equal(t, "alice", task.Owner)
	assert.Equal(t, "ask about parking", task.Notes)
	assert.True(t, task.Critical)
	assert.Equal(t, model.TaskCategoryLodging, task.Category)

	dinner := findTask(out.Workflow.Coordination.Tasks, "plan-dinner")
	require.NotNil(t, dinner)
	assert.False(t, dinner.Critical)
	assert.Equal(t, model.TaskCategoryDining, dinner.Category)
}

func TestValidateLinks_replacesRecordsAndFeedsStages(t *testing.T) {
	prober := &stubProber{status: map[string]string{"https://stay.example/cliff": model.LinkBroken}}
	e := newTestEngine(WithProber(prober))
	spec := lockedSpec()

	derived := e.Derive(spec, testDecision(), nil, DeriveOptions{Trigger: model.TriggerChatGeneration})
	checked := e.ValidateLinks(context.Background(), derived)

	lh := checked.Workflow.Integrations.LinkHealth
	require.Len(t, lh.Records, 3)
	require.NotNil(t, lh.LastCheckedAt)
	assert.Len(t, prober.targets, 3)

	refreshed := e.Derive(spec, checked, nil, DeriveOptions{Trigger: model.TriggerWorkflowRefresh})
	w := refreshed.Workflow
	assert.Len(t, w.Integrations.LinkHealth.Records, 3)
	require.Len(t, w.Integrations.Messaging.LinkRefresh, 1)
	assert.Contains(t, w.Integrations.Messaging.LinkRefresh[0].Message, "https://stay.example/cliff")

	prep, _ := w.Stage.Find(model.StageBookingPrep)
	assert.Contains(t, prep.Blockers, "1 booking link(s) are broken")
	for _, item := range w.BookingReadiness.Items {
		if item.ID == ChecklistLinksHealthy {
			assert.False(t, item.Done)
		}
	}
}

func TestValidateLinks_withoutWorkflow(t *testing.T) {
	e := newTestEngine()
	out := e.ValidateLinks(context.Background(), testDecision())

	require.NotNil(t, out.Workflow)
	assert.Len(t, out.Workflow.Integrations.LinkHealth.Records, 3)
}

func TestDerive_dropsRecordsForRemovedLinks(t *testing.T) {
	e := newTestEngine()
	checked := e.ValidateLinks(context.Background(), testDecision())

	trimmed := testDecision()
	trimmed.Itineraries[0].ResearchLinks = nil
	trimmed.Workflow = checked.Workflow
	out := e.Derive(testSpec(), trimmed, nil, DeriveOptions{})

	for _, r := range out.Workflow.Integrations.LinkHealth.Records {
		assert.NotEqual(t, "https://alta.example/conditions", r.URL)
	}
	assert.Len(t, out.Workflow.Integrations.LinkHealth.Records, 2)
}

func TestTriggerForMode(t *testing.T) {
	assert.Equal(t, model.TriggerRecomputeSameSnapshot, TriggerForMode(model.RecomputeSameSnapshot))
	assert.Equal(t, model.TriggerRecomputeRefreshedLive, TriggerForMode(model.RecomputeRefreshed))
	assert.Equal(t, model.TriggerWorkflowRefresh, TriggerForMode(""))
}
