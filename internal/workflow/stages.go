package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/pitabwire/tripflow/model"
)

const minCandidates = 2

// stageFacts are the boolean and count inputs stage classification reads.
type stageFacts struct {
	MissingFields        []string
	CandidateCount       int
	ResortLocked         bool
	DatesLocked          bool
	BudgetApproved       bool
	CriticalMissingOwner int
	CriticalMissingDue   int
	CriticalOpen         int
	PendingAssumptions   int
	BrokenLinks          int
	OperationalWarnings  []string
	TripEnded            bool
}

func collectFacts(spec model.TripSpec, decision model.DecisionPackage, locks []model.LockedDecision, coord model.Coordination, assumptions model.AssumptionQueue, links model.LinkHealth, ops model.Operations, now time.Time) stageFacts {
	f := stageFacts{
		MissingFields:       spec.MissingFields,
		CandidateCount:      len(decision.Itineraries),
		ResortLocked:        isLocked(locks, model.DecisionResort),
		DatesLocked:         isLocked(locks, model.DecisionDates),
		BudgetApproved:      budgetApproved(coord.Votes),
		PendingAssumptions:  assumptions.Counts.Pending,
		BrokenLinks:         brokenLinks(links),
		OperationalWarnings: warningCheckIDs(ops),
	}
	for _, t := range coord.Tasks {
		if !t.Critical {
			continue
		}
		if t.Owner == "" {
			f.CriticalMissingOwner++
		}
		if t.DueDate == "" {
			f.CriticalMissingDue++
		}
		if t.Status != model.TaskStatusDone {
			f.CriticalOpen++
		}
	}
	if end, ok := spec.EndDate(); ok {
		f.TripEnded = end.Before(now.Truncate(24 * time.Hour))
	}
	return f
}

// classifyStages computes each stage's raw status independently of its
// neighbours. A stage is either done or carries the blockers holding it
// back. Warning-derived blockers are appended even to done stages.
func classifyStages(f stageFacts) []model.StageStatus {
	raw := make([]model.StageStatus, 0, len(model.StageOrder))
	add := func(id string, blockers []string, extra ...string) {
		st := model.StageStatus{ID: id, Status: model.StageStatusDone}
		if len(blockers) > 0 {
			st.Status = model.StageStatusInProgress
		}
		st.Blockers = append(blockers, extra...)
		raw = append(raw, st)
	}

	var intake []string
	if len(f.MissingFields) > 0 {
		intake = append(intake, "Missing trip details: "+strings.Join(f.MissingFields, ", "))
	}
	add(model.StageTripIntake, intake)

	var compare []string
	if f.CandidateCount < minCandidates {
		compare = append(compare, fmt.Sprintf("Need at least %d itinerary candidates (have %d)", minCandidates, f.CandidateCount))
	}
	add(model.StageCandidateCompare, compare)

	var locking []string
	if !f.ResortLocked {
		locking = append(locking, "Resort is not locked")
	}
	if !f.DatesLocked {
		locking = append(locking, "Dates are not locked")
	}
	if !f.BudgetApproved {
		locking = append(locking, "Budget has not been approved")
	}
	add(model.StageDecisionLocking, locking)

	var prep []string
	if f.CriticalMissingOwner > 0 {
		prep = append(prep, fmt.Sprintf("%d critical task(s) have no owner", f.CriticalMissingOwner))
	}
	if f.CriticalMissingDue > 0 {
		prep = append(prep, fmt.Sprintf("%d critical task(s) have no due date", f.CriticalMissingDue))
	}
	if f.PendingAssumptions > 0 {
		prep = append(prep, fmt.Sprintf("%d assumption(s) await review", f.PendingAssumptions))
	}
	var brokenLinks []string
	if f.BrokenLinks > 0 {
		brokenLinks = append(brokenLinks, fmt.Sprintf("%d booking link(s) are broken", f.BrokenLinks))
	}
	add(model.StageBookingPrep, prep, brokenLinks...)

	var bookings []string
	if f.CriticalOpen > 0 {
		bookings = append(bookings, fmt.Sprintf("%d critical task(s) are not done", f.CriticalOpen))
	}
	add(model.StageBookings, bookings)

	var opsWarnings []string
	for _, id := range f.OperationalWarnings {
		opsWarnings = append(opsWarnings, "Operational warning: "+id)
	}
	if f.TripEnded {
		add(model.StageTripExecution, nil, opsWarnings...)
	} else {
		raw = append(raw, model.StageStatus{
			ID:       model.StageTripExecution,
			Status:   model.StageStatusInProgress,
			Blockers: opsWarnings,
		})
	}

	return raw
}

// gateStages applies the forward-gating pass: a stage is todo until every
// earlier stage is done, blocked while it has blockers, and otherwise keeps
// its raw status with todo promoted to in_progress. The first stage is never
// blocked.
func gateStages(raw []model.StageStatus) model.StageState {
	stages := make([]model.StageStatus, len(raw))
	priorsDone := true
	for i, st := range raw {
		out := model.StageStatus{
			ID:       st.ID,
			Status:   st.Status,
			Blockers: append([]string(nil), st.Blockers...),
		}
		switch {
		case !priorsDone:
			out.Status = model.StageStatusTodo
		case len(out.Blockers) > 0 && i > 0:
			out.Status = model.StageStatusBlocked
		case out.Status == model.StageStatusTodo:
			out.Status = model.StageStatusInProgress
		}
		if out.Status != model.StageStatusDone {
			priorsDone = false
		}
		stages[i] = out
	}

	state := model.StageState{Stages: stages}
	for _, st := range stages {
		if st.Status == model.StageStatusInProgress || st.Status == model.StageStatusBlocked {
			state.Current = st.ID
			break
		}
	}
	if state.Current == "" && len(stages) > 0 {
		state.Current = stages[len(stages)-1].ID
	}
	return state
}

func deriveStages(f stageFacts) model.StageState {
	return gateStages(classifyStages(f))
}
