package model

import (
	"fmt"
	"strings"
)

// Action types accepted by the action applicator.
const (
	ActionRoleUpsert       = "role_upsert"
	ActionCommentAdd       = "comment_add"
	ActionVoteCast         = "vote_cast"
	ActionVoteClose        = "vote_close"
	ActionTaskPatch        = "task_patch"
	ActionAssumptionReview = "assumption_review"
	ActionDecisionLock     = "decision_lock"
	ActionDecisionUnlock   = "decision_unlock"
)

// Action result statuses.
const (
	ActionApplied = "applied"
	ActionSkipped = "skipped"
)

// Action is one typed user mutation. Only the fields relevant to Type are
// read; the rest are ignored.
type Action struct {
	Type  string `json:"type"`
	Actor string `json:"actor,omitempty"`

	// role_upsert
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`

	// comment_add
	TargetType string `json:"target_type,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	Body       string `json:"body,omitempty"`

	// vote_cast, vote_close
	VoteType  string `json:"vote_type,omitempty"`
	Voter     string `json:"voter,omitempty"`
	Choice    string `json:"choice,omitempty"`
	Rationale string `json:"rationale,omitempty"`
	Winner    string `json:"winner,omitempty"`

	// task_patch
	TaskID             string  `json:"task_id,omitempty"`
	Owner              *string `json:"owner,omitempty"`
	DueDate            *string `json:"due_date,omitempty"`
	Status             *string `json:"status,omitempty"`
	ReminderDaysBefore *int    `json:"reminder_days_before,omitempty"`
	Notes              *string `json:"notes,omitempty"`

	// assumption_review
	AssumptionID     string `json:"assumption_id,omitempty"`
	AssumptionStatus string `json:"assumption_status,omitempty"`

	// decision_lock, decision_unlock
	DecisionType string `json:"decision_type,omitempty"`
	Value        string `json:"value,omitempty"`
}

// ActionResult reports how one action of a batch was handled.
type ActionResult struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Validate checks the fields each action type requires. It does not check
// references against workflow state; those are resolved best-effort when
// the action is applied.
func (a Action) Validate() []FieldError {
	var errs []FieldError
	require := func(field, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, FieldError{
				Field:   field,
				Code:    "REQUIRED",
				Message: fmt.Sprintf("%s is required for %s", field, a.Type),
			})
		}
	}

	switch a.Type {
	case ActionRoleUpsert:
		require("user_id", a.UserID)
		require("role", a.Role)
	case ActionCommentAdd:
		require("target_type", a.TargetType)
		require("body", a.Body)
	case ActionVoteCast:
		require("vote_type", a.VoteType)
		require("voter", a.Voter)
		require("choice", a.Choice)
	case ActionVoteClose:
		require("vote_type", a.VoteType)
	case ActionTaskPatch:
		require("task_id", a.TaskID)
	case ActionAssumptionReview:
		require("assumption_id", a.AssumptionID)
		require("assumption_status", a.AssumptionStatus)
	case ActionDecisionLock:
		require("decision_type", a.DecisionType)
		require("value", a.Value)
	case ActionDecisionUnlock:
		require("decision_type", a.DecisionType)
	default:
		errs = append(errs, FieldError{
			Field:   "type",
			Code:    "UNKNOWN_ACTION",
			Message: fmt.Sprintf("unknown action type %q", a.Type),
		})
	}
	return errs
}
