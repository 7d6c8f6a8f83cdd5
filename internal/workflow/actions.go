package workflow

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/tripflow/model"
)

// ApplyActions applies actions in order to one snapshot of the workflow and
// then re-derives it so stages, readiness, and run history reflect the net
// effect. Actions that reference missing state are skipped, not failed; the
// returned results report what happened to each one.
func (e *Engine) ApplyActions(spec model.TripSpec, decision model.DecisionPackage, actions []model.Action) (model.DecisionPackage, []model.ActionResult, error) {
	if len(actions) == 0 {
		return model.DecisionPackage{}, nil, model.NewBadRequestError("at least one action is required")
	}

	snap := e.derive(spec, decision, decision.Workflow, DeriveOptions{}, false)
	declared := specLocks(spec)
	results := make([]model.ActionResult, 0, len(actions))
	actor := systemAuthor

	for i, a := range actions {
		now := e.now().UTC()
		res := model.ActionResult{Index: i, Type: a.Type, Status: model.ActionApplied}
		if reason := e.apply(&snap, declared, a, now); reason != "" {
			res.Status = model.ActionSkipped
			res.Reason = reason
			e.logger.Debug("action skipped",
				zap.Int("index", i),
				zap.String("type", a.Type),
				zap.String("reason", res.Reason),
			)
		}
		if a.Actor != "" {
			actor = a.Actor
		}
		results = append(results, res)
	}

	state := e.derive(spec, decision, &snap, DeriveOptions{Actor: actor}, true)
	out := decision
	out.Workflow = &state
	return out, results, nil
}

func actorOf(a model.Action, fallback string) string {
	return firstNonEmpty(a.Actor, fallback, systemAuthor)
}

// apply mutates snap in place and returns why the action was skipped, or
// an empty string when it was applied. declared holds the spec locks, which
// outrank workflow locks of the same type.
func (e *Engine) apply(snap *model.WorkflowState, declared []model.LockedDecision, a model.Action, now time.Time) string {
	if errs := a.Validate(); len(errs) > 0 {
		return errs[0].Message
	}

	switch a.Type {
	case model.ActionRoleUpsert:
		return e.applyRoleUpsert(snap, a, now)
	case model.ActionCommentAdd:
		return e.applyCommentAdd(snap, a, now)
	case model.ActionVoteCast:
		return e.applyVoteCast(snap, a, now)
	case model.ActionVoteClose:
		return e.applyVoteClose(snap, a, now)
	case model.ActionTaskPatch:
		return e.applyTaskPatch(snap, a, now)
	case model.ActionAssumptionReview:
		return e.applyAssumptionReview(snap, a, now)
	case model.ActionDecisionLock:
		return e.applyDecisionLock(snap, declared, a, now)
	case model.ActionDecisionUnlock:
		return e.applyDecisionUnlock(snap, a, now)
	}
	return fmt.Sprintf("unknown action type %q", a.Type)
}

func (e *Engine) applyRoleUpsert(snap *model.WorkflowState, a model.Action, now time.Time) string {
	role := strings.ToLower(a.Role)
	if !validRoles[role] {
		return fmt.Sprintf("unknown role %q", a.Role)
	}

	roles := snap.Coordination.Roles
	found := false
	for i := range roles {
		if roles[i].UserID == a.UserID {
			roles[i].Role = role
			roles[i].UpdatedAt = now
			found = true
			break
		}
	}
	if !found {
		roles = append(roles, model.RoleAssignment{UserID: a.UserID, Role: role, UpdatedAt: now})
	}
	snap.Coordination.Roles = roles

	snap.DecisionLog = e.appendLog(snap.DecisionLog, model.LogRole,
		fmt.Sprintf("%s is now %s", a.UserID, role), actorOf(a, ""), now)
	return ""
}

func (e *Engine) applyCommentAdd(snap *model.WorkflowState, a model.Action, now time.Time) string {
	author := actorOf(a, "")
	comments := append(snap.Coordination.Comments, model.Comment{
		ID:         e.newID(),
		TargetType: a.TargetType,
		TargetID:   a.TargetID,
		Author:     author,
		Body:       a.Body,
		CreatedAt:  now,
	})
	if len(comments) > maxComments {
		comments = append([]model.Comment(nil), comments[len(comments)-maxComments:]...)
	}
	snap.Coordination.Comments = comments

	target := a.TargetType
	if a.TargetID != "" {
		target += " " + a.TargetID
	}
	snap.DecisionLog = e.appendLog(snap.DecisionLog, model.LogComment,
		fmt.Sprintf("%s commented on %s", author, target), author, now)
	return ""
}

// voteFor returns the vote of the given type, seeding it if the snapshot
// predates it.
func voteFor(snap *model.WorkflowState, typ string) *model.Vote {
	if v := findVote(snap.Coordination.Votes, typ); v != nil {
		return v
	}
	if !isVoteType(typ) {
		return nil
	}
	v := newVote(typ)
	if typ == model.VoteBudgetApproval {
		v.Options = []string{model.OptionApprove, model.OptionRevise}
	}
	snap.Coordination.Votes = append(snap.Coordination.Votes, v)
	return &snap.Coordination.Votes[len(snap.Coordination.Votes)-1]
}

func (e *Engine) applyVoteCast(snap *model.WorkflowState, a model.Action, now time.Time) string {
	v := voteFor(snap, a.VoteType)
	if v == nil {
		return fmt.Sprintf("unknown vote type %q", a.VoteType)
	}
	if err := castVote(v, a.Voter, a.Choice, a.Rationale, now); err != nil {
		return err.Error()
	}

	summary := fmt.Sprintf("%s voted %s on %s", a.Voter, v.Ballots[len(v.Ballots)-1].Choice, v.Type)
	if v.Status == model.VoteStatusApproved {
		summary += " (approved)"
	}
	snap.DecisionLog = e.appendLog(snap.DecisionLog, voteLogType(v.Type), summary, actorOf(a, a.Voter), now)
	return ""
}

func (e *Engine) applyVoteClose(snap *model.WorkflowState, a model.Action, now time.Time) string {
	v := voteFor(snap, a.VoteType)
	if v == nil {
		return fmt.Sprintf("unknown vote type %q", a.VoteType)
	}
	closeVote(v, a.Winner, now)

	summary := fmt.Sprintf("Closed %s as %s", v.Type, v.Status)
	if v.Winner != "" {
		summary += fmt.Sprintf(" (winner: %s)", v.Winner)
	}
	snap.DecisionLog = e.appendLog(snap.DecisionLog, voteLogType(v.Type), summary, actorOf(a, ""), now)
	return ""
}

func (e *Engine) applyTaskPatch(snap *model.WorkflowState, a model.Action, now time.Time) string {
	t := findTask(snap.Coordination.Tasks, a.TaskID)
	if t == nil {
		return fmt.Sprintf("task %q not found", a.TaskID)
	}
	if a.Status != nil && !validTaskStatuses[*a.Status] {
		return fmt.Sprintf("invalid task status %q", *a.Status)
	}
	if a.DueDate != nil && *a.DueDate != "" {
		if _, ok := model.ParseDate(*a.DueDate); !ok {
			return fmt.Sprintf("invalid due date %q", *a.DueDate)
		}
	}

	var changes []string
	if a.Owner != nil {
		t.Owner = *a.Owner
		changes = append(changes, "owner="+t.Owner)
	}
	if a.DueDate != nil {
		t.DueDate = *a.DueDate
		changes = append(changes, "due="+t.DueDate)
	}
	if a.Status != nil {
		t.Status = *a.Status
		changes = append(changes, "status="+t.Status)
	}
	if a.ReminderDaysBefore != nil {
		t.ReminderDaysBefore = *a.ReminderDaysBefore
		changes = append(changes, fmt.Sprintf("reminder=%dd", t.ReminderDaysBefore))
	}
	if a.Notes != nil {
		t.Notes = *a.Notes
		changes = append(changes, "notes")
	}
	if len(changes) == 0 {
		return "no task fields to update"
	}

	snap.DecisionLog = e.appendLog(snap.DecisionLog, model.LogTask,
		fmt.Sprintf("Updated task %s: %s", t.ID, strings.Join(changes, ", ")), actorOf(a, ""), now)
	return ""
}

func (e *Engine) applyAssumptionReview(snap *model.WorkflowState, a model.Action, now time.Time) string {
	if !validAssumptionStatuses[a.AssumptionStatus] {
		return fmt.Sprintf("invalid assumption status %q", a.AssumptionStatus)
	}

	queue := snap.Assumptions.Queue
	for i := range queue {
		if queue[i].ID != a.AssumptionID {
			continue
		}
		queue[i].Status = a.AssumptionStatus
		snap.Assumptions.Counts = countAssumptions(queue)
		snap.DecisionLog = e.appendLog(snap.DecisionLog, model.LogAssumption,
			fmt.Sprintf("Marked assumption %s as %s", a.AssumptionID, a.AssumptionStatus), actorOf(a, ""), now)
		return ""
	}
	return fmt.Sprintf("assumption %q not found", a.AssumptionID)
}

func (e *Engine) applyDecisionLock(snap *model.WorkflowState, declared []model.LockedDecision, a model.Action, now time.Time) string {
	if !decisionTypes[a.DecisionType] {
		return fmt.Sprintf("unknown decision type %q", a.DecisionType)
	}
	// Re-locking the spec value after an unlock is still allowed.
	if sl, ok := findLock(declared, a.DecisionType); ok && sl.Value != a.Value {
		return fmt.Sprintf("%s is locked by the trip spec", a.DecisionType)
	}
	author := actorOf(a, "")

	locks := snap.LockedDecisions
	for i := range locks {
		if locks[i].Type != a.DecisionType {
			continue
		}
		if locks[i].Value != a.Value {
			locks[i].Source = model.LockSourceWorkflow
		}
		locks[i].Value = a.Value
		locks[i].Locked = true
		locks[i].Author = author
		locks[i].UpdatedAt = now
		snap.DecisionLog = e.appendLog(snap.DecisionLog, model.LogLock,
			fmt.Sprintf("Locked %s: %s", a.DecisionType, a.Value), author, now)
		return ""
	}

	snap.LockedDecisions = append(locks, model.LockedDecision{
		Type:      a.DecisionType,
		Value:     a.Value,
		Locked:    true,
		Source:    model.LockSourceWorkflow,
		Author:    author,
		UpdatedAt: now,
	})
	snap.DecisionLog = e.appendLog(snap.DecisionLog, model.LogLock,
		fmt.Sprintf("Locked %s: %s", a.DecisionType, a.Value), author, now)
	return ""
}

func (e *Engine) applyDecisionUnlock(snap *model.WorkflowState, a model.Action, now time.Time) string {
	locks := snap.LockedDecisions
	for i := range locks {
		if locks[i].Type != a.DecisionType {
			continue
		}
		if !locks[i].Locked {
			return fmt.Sprintf("%s is already unlocked", a.DecisionType)
		}
		author := actorOf(a, "")
		locks[i].Locked = false
		locks[i].Author = author
		locks[i].UpdatedAt = now
		snap.DecisionLog = e.appendLog(snap.DecisionLog, model.LogLock,
			fmt.Sprintf("Unlocked %s: %s", a.DecisionType, locks[i].Value), author, now)
		return ""
	}
	return fmt.Sprintf("no lock for %q", a.DecisionType)
}
