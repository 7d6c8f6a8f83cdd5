package workflow

import (
	"fmt"
	"sort"

	"github.com/pitabwire/tripflow/model"
)

const (
	maxCalendarEvents = 20
	maxReminders      = 4
	maxNotices        = 6
)

// Calendar event kinds.
const (
	EventTripStart = "trip_start"
	EventTripEnd   = "trip_end"
	EventTaskDue   = "task_due"
)

// SheetsColumns is the stable column list for spreadsheet exports.
var SheetsColumns = []string{
	"itinerary_id",
	"resort",
	"start_date",
	"end_date",
	"total_per_person",
	"top_lodging",
	"rank",
	"score",
	"task_id",
	"task_owner",
	"task_due_date",
	"task_status",
}

// expenseCategories maps task categories onto expense-splitting categories.
var expenseCategories = map[string]string{
	model.TaskCategoryLodging:   "Rent",
	model.TaskCategoryTransport: "Transportation",
	model.TaskCategoryRentals:   "Entertainment",
	model.TaskCategoryGroceries: "Groceries",
	model.TaskCategoryDining:    "Dining out",
	model.TaskCategoryGeneral:   "General",
}

// deriveIntegrations builds the calendar, expense, export, and messaging
// projections.
func deriveIntegrations(decision model.DecisionPackage, coord model.Coordination, links model.LinkHealth) model.Integrations {
	return model.Integrations{
		Calendar:   calendarDraft(decision, coord.Tasks),
		Expenses:   expenseDefaults(coord),
		Sheets:     model.SheetsExport{Columns: append([]string(nil), SheetsColumns...)},
		Messaging:  messaging(coord, links),
		LinkHealth: links,
	}
}

func calendarDraft(decision model.DecisionPackage, tasks []model.Task) []model.CalendarEvent {
	var events []model.CalendarEvent
	seen := make(map[[2]string]bool)
	add := func(ev model.CalendarEvent) {
		key := [2]string{ev.Date, ev.Title}
		if ev.Date == "" || seen[key] {
			return
		}
		seen[key] = true
		events = append(events, ev)
	}

	for _, it := range decision.Itineraries {
		add(model.CalendarEvent{Date: it.StartDate, Title: "Arrive at " + it.ResortName, Kind: EventTripStart, SourceID: it.ID})
		add(model.CalendarEvent{Date: it.EndDate, Title: "Depart " + it.ResortName, Kind: EventTripEnd, SourceID: it.ID})
	}
	for _, t := range tasks {
		add(model.CalendarEvent{Date: t.DueDate, Title: "Due: " + t.Title, Kind: EventTaskDue, SourceID: t.ID})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })
	if len(events) > maxCalendarEvents {
		events = events[:maxCalendarEvents]
	}
	return events
}

func expenseDefaults(coord model.Coordination) []model.ExpenseDefault {
	planner := plannerOf(coord.Roles)
	out := make([]model.ExpenseDefault, 0, len(coord.Tasks))
	for _, t := range coord.Tasks {
		category, ok := expenseCategories[t.Category]
		if !ok {
			category = expenseCategories[model.TaskCategoryGeneral]
		}
		out = append(out, model.ExpenseDefault{
			TaskID:       t.ID,
			Category:     category,
			DefaultPayer: firstNonEmpty(t.Owner, planner),
		})
	}
	return out
}

func messaging(coord model.Coordination, links model.LinkHealth) model.Messaging {
	var due []model.Task
	for _, t := range coord.Tasks {
		if t.DueDate != "" && t.Status != model.TaskStatusDone {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].DueDate < due[j].DueDate })

	m := model.Messaging{
		Reminders:    []model.Notice{},
		VoteRequests: []model.Notice{},
		LinkRefresh:  []model.Notice{},
	}
	for _, t := range due {
		if len(m.Reminders) == maxReminders {
			break
		}
		msg := fmt.Sprintf("Reminder: %s is due %s", t.Title, t.DueDate)
		if t.Owner != "" {
			msg += fmt.Sprintf(" (owner: %s)", t.Owner)
		}
		m.Reminders = append(m.Reminders, model.Notice{Kind: "task_reminder", TargetID: t.ID, Message: msg})
	}

	for _, v := range coord.Votes {
		if len(m.VoteRequests) == maxNotices {
			break
		}
		if v.Status != model.VoteStatusOpen {
			continue
		}
		m.VoteRequests = append(m.VoteRequests, model.Notice{
			Kind:     "vote_request",
			TargetID: v.Type,
			Message:  fmt.Sprintf("Vote needed: %s (%d ballots so far)", v.Title, len(v.Ballots)),
		})
	}

	for _, r := range links.Records {
		if len(m.LinkRefresh) == maxNotices {
			break
		}
		if r.Status != model.LinkBroken && r.Status != model.LinkWarning {
			continue
		}
		m.LinkRefresh = append(m.LinkRefresh, model.Notice{
			Kind:     "link_refresh",
			TargetID: r.ItineraryID,
			Message:  fmt.Sprintf("Link needs refresh: %s (%s)", r.URL, r.Status),
		})
	}
	return m
}
