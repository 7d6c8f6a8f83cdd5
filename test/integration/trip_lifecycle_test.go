package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/pitabwire/tripflow/internal/trip"
	"github.com/pitabwire/tripflow/model"
)

type errorBody struct {
	Error model.ErrorEnvelope `json:"error"`
}

func (h *TestHarness) putFixtureTrip(t *testing.T, tripID, token string) model.Trip {
	t.Helper()
	decision := h.DecisionFixture()
	resp := h.PUT("/v1/trips/"+tripID, PutTripBody(SpecFixture(), &decision), token)
	var created model.Trip
	h.AssertData(t, resp, http.StatusOK, &created)
	return created
}

func commentAction(body string) map[string]any {
	return map[string]any{
		"type":        model.ActionCommentAdd,
		"target_type": "itinerary",
		"target_id":   "it-alta",
		"body":        body,
	}
}

func TestTripLifecycle(t *testing.T) {
	h := NewTestHarness(t)
	h.ServeFixtureLinks()
	token := h.GenerateToken(PlannerClaims())

	// Create.
	created := h.putFixtureTrip(t, "ski-2027", token)
	if created.Version != 1 {
		t.Errorf("created version = %d, want 1", created.Version)
	}
	if created.Decision == nil || created.Decision.Workflow == nil {
		t.Fatal("created trip has no derived workflow")
	}
	wf := created.Decision.Workflow
	if len(wf.Stage.Stages) != 6 {
		t.Errorf("stages = %d, want 6", len(wf.Stage.Stages))
	}
	if len(wf.Repeatability.Runs) != 1 || wf.Repeatability.Runs[0].Trigger != model.TriggerChatGeneration {
		t.Errorf("runs = %+v, want one chat_generation run", wf.Repeatability.Runs)
	}
	if wf.Repeatability.Runs[0].Model != "planner-test" {
		t.Errorf("run model = %q, want planner-test", wf.Repeatability.Runs[0].Model)
	}

	// Apply a comment under an idempotency key.
	actions := map[string]any{"actions": []any{commentAction("Alta looks best")}}
	headers := map[string]string{"X-Idempotency-Key": "batch-1"}

	var applied trip.ActionsResult
	h.AssertData(t, h.Do(http.MethodPost, "/v1/trips/ski-2027/actions", actions, token, headers), http.StatusOK, &applied)
	if len(applied.Results) != 1 || applied.Results[0].Status != model.ActionApplied {
		t.Fatalf("results = %+v, want one applied", applied.Results)
	}
	if applied.Trip.Version != 2 {
		t.Errorf("version after actions = %d, want 2", applied.Trip.Version)
	}

	// Replaying the batch returns the original result without a new write.
	var replayed trip.ActionsResult
	h.AssertData(t, h.Do(http.MethodPost, "/v1/trips/ski-2027/actions", actions, token, headers), http.StatusOK, &replayed)
	if replayed.Trip.Version != applied.Trip.Version {
		t.Errorf("replayed version = %d, want %d", replayed.Trip.Version, applied.Trip.Version)
	}

	// A different batch under the same key conflicts.
	other := map[string]any{"actions": []any{commentAction("Snowbird instead?")}}
	resp := h.Do(http.MethodPost, "/v1/trips/ski-2027/actions", other, token, headers)
	var conflict errorBody
	h.ParseJSON(resp, &conflict)
	if resp.StatusCode != http.StatusConflict || conflict.Error.Code != model.ErrIdempotencyReplay {
		t.Errorf("reused key: status = %d, code = %q", resp.StatusCode, conflict.Error.Code)
	}

	// The comment is attributed to the authenticated subject.
	var comments []model.Comment
	h.AssertData(t, h.GET("/v1/trips/ski-2027/comments?target_type=itinerary&target_id=it-alta", token), http.StatusOK, &comments)
	if len(comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(comments))
	}
	if comments[0].Author != "planner-1" || comments[0].Body != "Alta looks best" {
		t.Errorf("comment = %+v", comments[0])
	}

	// Recompute records a run with the mode's trigger.
	var recomputed model.Trip
	h.AssertData(t, h.POST("/v1/trips/ski-2027/recompute", map[string]any{"mode": model.RecomputeSameSnapshot}, token), http.StatusOK, &recomputed)
	runs := recomputed.Decision.Workflow.Repeatability.Runs
	last := runs[len(runs)-1]
	if last.RecomputeMode != model.RecomputeSameSnapshot {
		t.Errorf("last run mode = %q, want same_snapshot", last.RecomputeMode)
	}
	if last.Trigger != model.TriggerRecomputeSameSnapshot {
		t.Errorf("last run trigger = %q", last.Trigger)
	}

	// Link validation probes the fake provider site.
	var validated model.Trip
	h.AssertData(t, h.POST("/v1/trips/ski-2027/links/validate", nil, token), http.StatusOK, &validated)
	health := validated.Decision.Workflow.Integrations.LinkHealth
	if len(health.Records) != 3 {
		t.Fatalf("link records = %d, want 3: %+v", len(health.Records), health.Records)
	}
	byStatus := map[string]int{}
	for _, r := range health.Records {
		byStatus[r.Status]++
	}
	if byStatus[model.LinkOK] != 2 || byStatus[model.LinkBroken] != 1 {
		t.Errorf("link statuses = %v, want 2 ok and 1 broken", byStatus)
	}
	if health.LastCheckedAt == nil {
		t.Error("last_checked_at not set")
	}
	refresh := validated.Decision.Workflow.Integrations.Messaging.LinkRefresh
	if len(refresh) != 1 || !strings.Contains(refresh[0].Message, PathCliffLodge) {
		t.Errorf("link refresh notices = %+v, want one for the Cliff Lodge", refresh)
	}
	if h.Links.Hits(PathAltaLodge) == 0 {
		t.Error("Alta Lodge link was never probed")
	}

	// Markdown report.
	resp = h.GET("/v1/trips/ski-2027/report?format=markdown", token)
	md := string(h.ReadBody(resp))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(md, "# Trip snapshot") {
		t.Errorf("markdown report = %q", md)
	}

	// List.
	var listed struct {
		Data []model.TripSummary `json:"data"`
	}
	resp = h.GET("/v1/trips", token)
	h.ParseJSON(resp, &listed)
	if len(listed.Data) != 1 || listed.Data[0].ID != "ski-2027" || listed.Data[0].Itineraries != 2 {
		t.Errorf("list = %+v", listed.Data)
	}

	// Delete.
	h.AssertStatus(t, h.DELETE("/v1/trips/ski-2027", token), http.StatusNoContent)
	resp = h.GET("/v1/trips/ski-2027", token)
	var missing errorBody
	h.ParseJSON(resp, &missing)
	if resp.StatusCode != http.StatusNotFound || missing.Error.Code != model.ErrTripNotFound {
		t.Errorf("after delete: status = %d, code = %q", resp.StatusCode, missing.Error.Code)
	}
}

func TestTripLifecycle_redisIdempotency(t *testing.T) {
	h := NewTestHarness(t, WithRedisIdempotency())
	token := h.GenerateToken(MemberClaims())
	h.putFixtureTrip(t, "ski-2027", token)

	actions := map[string]any{"actions": []any{commentAction("count me in")}}
	headers := map[string]string{"X-Idempotency-Key": "member-batch"}

	var first, second trip.ActionsResult
	h.AssertData(t, h.Do(http.MethodPost, "/v1/trips/ski-2027/actions", actions, token, headers), http.StatusOK, &first)
	h.AssertData(t, h.Do(http.MethodPost, "/v1/trips/ski-2027/actions", actions, token, headers), http.StatusOK, &second)

	if second.Trip.Version != first.Trip.Version {
		t.Errorf("replayed version = %d, want %d", second.Trip.Version, first.Trip.Version)
	}
	if !h.Redis.Exists(trip.FormatIdempotencyKey("ski-2027", "member-batch")) {
		t.Error("idempotency key not stored in redis")
	}

	stored, err := h.Store.Get(t.Context(), "ski-2027")
	if err != nil {
		t.Fatalf("get stored trip: %v", err)
	}
	if got := len(stored.Decision.Workflow.Coordination.Comments); got != 1 {
		t.Errorf("stored comments = %d, want 1", got)
	}
}

func TestTripLifecycle_reportWithoutDecision(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlannerClaims())

	var created model.Trip
	h.AssertData(t, h.PUT("/v1/trips/ski-draft", PutTripBody(model.TripSpec{}, nil), token), http.StatusOK, &created)
	if created.Decision != nil {
		t.Fatalf("decision = %+v, want none", created.Decision)
	}

	resp := h.GET("/v1/trips/ski-draft/report", token)
	var body errorBody
	h.ParseJSON(resp, &body)
	if resp.StatusCode != http.StatusConflict || body.Error.Code != model.ErrDecisionMissing {
		t.Errorf("status = %d, code = %q, want 409 DECISION_MISSING", resp.StatusCode, body.Error.Code)
	}
}

func TestTripLifecycle_skippedActionsStillCommit(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlannerClaims())
	h.putFixtureTrip(t, "ski-2027", token)

	batch := map[string]any{"actions": []any{
		map[string]any{"type": model.ActionVoteClose, "vote_type": "no_such_vote"},
		commentAction("still here"),
	}}
	var result trip.ActionsResult
	h.AssertData(t, h.POST("/v1/trips/ski-2027/actions", batch, token), http.StatusOK, &result)

	if len(result.Results) != 2 {
		t.Fatalf("results = %+v", result.Results)
	}
	if result.Results[0].Status != model.ActionSkipped || result.Results[0].Reason == "" {
		t.Errorf("first result = %+v, want skipped with reason", result.Results[0])
	}
	if result.Results[1].Status != model.ActionApplied {
		t.Errorf("second result = %+v, want applied", result.Results[1])
	}
}
