package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tripflow/model"
)

// runCLI executes the root command with args and returns stdout and stderr.
// Flag variables are reset first since cobra keeps them across runs.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	tripFile, outputFile, actionsFile, applyActor = "", "", "", ""
	deriveTrigger, deriveMode, deriveActor = model.TriggerWorkflowRefresh, model.RecomputeSameSnapshot, ""
	reportFormat = "markdown"
	noColor, verbose = true, false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append(args, "--no-color"))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeTrip(t *testing.T, out string) model.Trip {
	t.Helper()
	var trip model.Trip
	require.NoError(t, json.Unmarshal([]byte(out), &trip))
	return trip
}

func TestDerive(t *testing.T) {
	out, _, err := runCLI(t, "derive", "-f", "testdata/trip.json", "--trigger", "chat_generation")
	require.NoError(t, err)

	trip := decodeTrip(t, out)
	assert.Equal(t, "ski-2027", trip.ID)
	require.NotNil(t, trip.Decision)
	require.NotNil(t, trip.Decision.Workflow)
	assert.Len(t, trip.Decision.Workflow.Stage.Stages, 6)
	assert.Equal(t, model.StageTripIntake, trip.Decision.Workflow.Stage.Current)
}

func TestDerive_unknownTrigger(t *testing.T) {
	_, _, err := runCLI(t, "derive", "-f", "testdata/trip.json", "--trigger", "sometimes")
	assert.ErrorContains(t, err, `unknown trigger "sometimes"`)
}

func TestDerive_writesOutputFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.json")
	out, _, err := runCLI(t, "derive", "-f", "testdata/trip.json", "-o", dst)
	require.NoError(t, err)
	assert.Empty(t, out)

	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "ski-2027", decodeTrip(t, string(raw)).ID)
}

func TestDerive_missingDecision(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bare.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"id":"bare","spec":{}}`), 0o600))

	_, _, err := runCLI(t, "derive", "-f", src)
	assert.ErrorContains(t, err, "has no decision package")
}

func TestApply(t *testing.T) {
	out, errOut, err := runCLI(t, "apply", "-f", "testdata/trip.json", "-a", "testdata/actions.json", "--actor", "alice")
	require.NoError(t, err)

	assert.Contains(t, errOut, "action 0 (comment_add): applied")
	assert.Contains(t, errOut, `action 1 (vote_close): skipped: unknown vote type "no_such_vote"`)

	trip := decodeTrip(t, out)
	require.NotNil(t, trip.Decision.Workflow)
	comments := trip.Decision.Workflow.Coordination.Comments
	require.Len(t, comments, 1)
	assert.Equal(t, "alice", comments[0].Author)
	assert.Equal(t, "Alta looks best", comments[0].Body)
}

func TestReport_markdown(t *testing.T) {
	out, _, err := runCLI(t, "report", "-f", "testdata/trip.json")
	require.NoError(t, err)
	assert.Contains(t, out, "# Trip snapshot")
}

func TestReport_json(t *testing.T) {
	out, _, err := runCLI(t, "report", "-f", "testdata/trip.json", "--format", "json")
	require.NoError(t, err)

	var report model.SnapshotReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Contains(t, report.Markdown, "# Trip snapshot")
}

func TestStatus(t *testing.T) {
	out, _, err := runCLI(t, "status", "-f", "testdata/trip.json")
	require.NoError(t, err)

	assert.Contains(t, out, "Trip status: ski-2027")
	assert.Contains(t, out, model.StageTripIntake)
	assert.Contains(t, out, "<- current")
	assert.Contains(t, out, "Booking ready: no")
}

func TestDeriveOptions(t *testing.T) {
	opts, err := deriveOptions("recompute", model.RecomputeRefreshed, "sam")
	require.NoError(t, err)
	assert.Equal(t, model.TriggerRecomputeRefreshedLive, opts.Trigger)
	assert.Equal(t, model.RecomputeRefreshed, opts.RecomputeMode)
	assert.Equal(t, "sam", opts.Actor)

	_, err = deriveOptions("recompute", "yesterday", "")
	assert.Error(t, err)
}

func TestReadActions_acceptsBareArray(t *testing.T) {
	src := filepath.Join(t.TempDir(), "actions.json")
	require.NoError(t, os.WriteFile(src, []byte(`[{"type":"decision_unlock","decision_type":"resort"}]`), 0o600))

	actions, err := readActions(src)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionDecisionUnlock, actions[0].Type)
}
