package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tripflow/model"
)

func TestTaskCategory(t *testing.T) {
	tests := []struct {
		id, title string
		want      string
	}{
		{"book-lodging", "Book lodging", model.TaskCategoryLodging},
		{"car-rental", "Reserve rental car", model.TaskCategoryTransport},
		{"ski-rental", "Rent skis", model.TaskCategoryRentals},
		{"snacks", "Buy snacks", model.TaskCategoryGroceries},
		{"plan-dinner", "Plan group dinner", model.TaskCategoryDining},
		{"insurance", "Buy travel insurance", model.TaskCategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, taskCategory(tt.id, tt.title))
		})
	}
}

func TestDeriveCoordination_marksCriticalTasks(t *testing.T) {
	coord := deriveCoordination(testDecision(), model.Coordination{}, testNow)

	require.Len(t, coord.Tasks, 3)
	assert.True(t, coord.Tasks[0].Critical)
	assert.True(t, coord.Tasks[1].Critical)
	assert.False(t, coord.Tasks[2].Critical)
	for _, task := range coord.Tasks {
		assert.Equal(t, model.TaskStatusTodo, task.Status)
	}
}

func TestCalendarDraft(t *testing.T) {
	tasks := []model.Task{
		{ID: "book-lodging", Title: "Book lodging", DueDate: "2027-01-20"},
		{ID: "no-date", Title: "Pack"},
	}

	events := calendarDraft(testDecision(), tasks)

	require.Len(t, events, 5)
	assert.Equal(t, "2027-01-20", events[0].Date)
	assert.Equal(t, EventTaskDue, events[0].Kind)
	assert.Equal(t, "Arrive at Alta", events[1].Title)
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].Date, events[i].Date)
	}
}

func TestCalendarDraft_dedupesAndCaps(t *testing.T) {
	var tasks []model.Task
	for i := 0; i < 30; i++ {
		tasks = append(tasks, model.Task{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Task %d", i%25), DueDate: "2027-01-10"})
	}

	events := calendarDraft(model.DecisionPackage{}, tasks)
	assert.Len(t, events, maxCalendarEvents)
}

func TestExpenseDefaults_payerFallsBackToPlanner(t *testing.T) {
	coord := model.Coordination{
		Roles: []model.RoleAssignment{{UserID: "pat", Role: model.RoleMember}, {UserID: "sam", Role: model.RolePlanner}},
		Tasks: []model.Task{
			{ID: "book-lodging", Category: model.TaskCategoryLodging, Owner: "alice"},
			{ID: "snacks", Category: model.TaskCategoryGroceries},
		},
	}

	out := expenseDefaults(coord)

	require.Len(t, out, 2)
	assert.Equal(t, model.ExpenseDefault{TaskID: "book-lodging", Category: "Rent", DefaultPayer: "alice"}, out[0])
	assert.Equal(t, model.ExpenseDefault{TaskID: "snacks", Category: "Groceries", DefaultPayer: "sam"}, out[1])
}

func TestMessaging(t *testing.T) {
	coord := model.Coordination{
		Tasks: []model.Task{
			{ID: "b", Title: "Buy lift tickets", DueDate: "2027-01-25", Status: model.TaskStatusTodo},
			{ID: "a", Title: "Book lodging", DueDate: "2027-01-20", Owner: "alice", Status: model.TaskStatusTodo},
			{ID: "c", Title: "Done already", DueDate: "2027-01-01", Status: model.TaskStatusDone},
		},
		Votes: []model.Vote{
			{Type: model.VoteShortlist, Title: "Shortlist", Status: model.VoteStatusOpen, Ballots: []model.Ballot{{Voter: "a"}}},
			{Type: model.VoteLodging, Title: "Lodging", Status: model.VoteStatusClosed},
		},
	}
	links := model.LinkHealth{Records: []model.LinkRecord{
		{URL: "https://ok.example", Status: model.LinkOK},
		{URL: "https://gone.example", ItineraryID: "it-alta", Status: model.LinkBroken},
	}}

	m := messaging(coord, links)

	require.Len(t, m.Reminders, 2)
	assert.Equal(t, "Reminder: Book lodging is due 2027-01-20 (owner: alice)", m.Reminders[0].Message)
	assert.Equal(t, "Reminder: Buy lift tickets is due 2027-01-25", m.Reminders[1].Message)

	require.Len(t, m.VoteRequests, 1)
	assert.Equal(t, "Vote needed: Shortlist (1 ballots so far)", m.VoteRequests[0].Message)

	require.Len(t, m.LinkRefresh, 1)
	assert.Equal(t, "Link needs refresh: https://gone.example (broken)", m.LinkRefresh[0].Message)
}

func TestDeriveItineraryAudit_freshness(t *testing.T) {
	decision := testDecision()
	stale := testNow.Add(-72 * time.Hour)
	decision.Itineraries[1].Cars.FetchedAt = &stale

	audit := deriveItineraryAudit(decision, testNow)

	require.Len(t, audit, 2)
	assert.Equal(t, model.FreshnessFresh, audit[0].Freshness)
	assert.Equal(t, []string{"live_lodging", "budget_assumptions", "research_links"}, audit[0].Tags)
	assert.Equal(t, model.FreshnessStale, audit[1].Freshness)
	assert.Contains(t, audit[1].Tags, "stale_data")
}
