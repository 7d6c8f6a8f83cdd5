package workflow

import "github.com/pitabwire/tripflow/model"

// Booking checklist item IDs.
const (
	ChecklistDecisionLocking = "decision_locking_done"
	ChecklistBudgetApproved  = "budget_approved"
	ChecklistCriticalOwners  = "critical_owners"
	ChecklistCriticalDueDate = "critical_due_dates"
	ChecklistLinksHealthy    = "links_healthy"
)

// deriveBookingReadiness composes the go/no-go checklist.
func deriveBookingReadiness(stage model.StageState, coord model.Coordination, links model.LinkHealth) model.BookingReadiness {
	locking, _ := stage.Find(model.StageDecisionLocking)

	owners, dueDates := true, true
	for _, t := range coord.Tasks {
		if !t.Critical {
			continue
		}
		owners = owners && t.Owner != ""
		dueDates = dueDates && t.DueDate != ""
	}

	items := []model.ChecklistItem{
		{ID: ChecklistDecisionLocking, Label: "Decision locking is complete", Done: locking.Status == model.StageStatusDone},
		{ID: ChecklistBudgetApproved, Label: "Budget approved by the group", Done: budgetApproved(coord.Votes), HardBlocker: true},
		{ID: ChecklistCriticalOwners, Label: "Every critical task has an owner", Done: owners},
		{ID: ChecklistCriticalDueDate, Label: "Every critical task has a due date", Done: dueDates},
		{ID: ChecklistLinksHealthy, Label: "No broken booking links", Done: brokenLinks(links) == 0},
	}

	r := model.BookingReadiness{Ready: true, Items: items}
	for _, item := range items {
		if !item.Done {
			r.Ready = false
			r.RemainingCount++
		}
	}
	return r
}
