package workflow

import (
	"regexp"
	"strings"
	"time"

	"github.com/pitabwire/tripflow/model"
)

const maxComments = 80

// criticalTask matches tasks that gate bookings.
var criticalTask = regexp.MustCompile(`(?i)(book|deposit|lodging|lift|ticket|flight|rental|reserv|payment|insurance)`)

// categoryRules are checked in order; transport wins over rentals so that a
// car rental is a transport task.
var categoryRules = []struct {
	category string
	pattern  *regexp.Regexp
}{
	{model.TaskCategoryTransport, regexp.MustCompile(`(?i)(flight|airport|shuttle|\bcars?\b|drive|carpool|transport|parking|train|\bbus\b)`)},
	{model.TaskCategoryLodging, regexp.MustCompile(`(?i)(lodging|cabin|condo|hotel|airbnb|vrbo|chalet|\bstay\b|\broom)`)},
	{model.TaskCategoryRentals, regexp.MustCompile(`(?i)(rental|\brent\b|\bskis?\b|snowboard|gear|boots|equipment|lesson)`)},
	{model.TaskCategoryGroceries, regexp.MustCompile(`(?i)(grocer|supermarket|snacks|supplies|provisions)`)},
	{model.TaskCategoryDining, regexp.MustCompile(`(?i)(dinner|lunch|breakfast|restaurant|dining|apres)`)},
}

var defaultRoles = []struct{ userID, role string }{
	{"organizer", model.RolePlanner},
	{"crew", model.RoleMember},
	{"treasurer", model.RoleApprover},
}

var validRoles = map[string]bool{
	model.RolePlanner:  true,
	model.RoleMember:   true,
	model.RoleApprover: true,
}

var validTaskStatuses = map[string]bool{
	model.TaskStatusTodo:       true,
	model.TaskStatusInProgress: true,
	model.TaskStatusBlocked:    true,
	model.TaskStatusDone:       true,
}

// deriveCoordination rebuilds roles, votes, tasks, and comments from the
// decision package and the previous coordination state.
func deriveCoordination(decision model.DecisionPackage, prev model.Coordination, now time.Time) model.Coordination {
	roles := append([]model.RoleAssignment(nil), prev.Roles...)
	if len(roles) == 0 {
		for _, r := range defaultRoles {
			roles = append(roles, model.RoleAssignment{UserID: r.userID, Role: r.role, UpdatedAt: now})
		}
	}

	comments := append([]model.Comment(nil), prev.Comments...)
	if len(comments) > maxComments {
		comments = comments[len(comments)-maxComments:]
	}

	return model.Coordination{
		Roles:    roles,
		Votes:    deriveVotes(decision, prev.Votes),
		Tasks:    deriveTasks(decision.OpsBoard.Tasks, prev.Tasks),
		Comments: comments,
	}
}

// deriveTasks normalizes the ops board. The board supplies the title; owner,
// due date and the other user-owned fields carry over from the previous task
// with the same ID, so a cleared value stays cleared. Board values seed only
// tasks seen for the first time.
func deriveTasks(board []model.OpsTask, prev []model.Task) []model.Task {
	prevByID := make(map[string]model.Task, len(prev))
	for _, t := range prev {
		prevByID[t.ID] = t
	}

	seen := make(map[string]bool, len(board))
	tasks := make([]model.Task, 0, len(board))
	for _, ot := range board {
		if ot.ID == "" || seen[ot.ID] {
			continue
		}
		seen[ot.ID] = true

		t := model.Task{
			ID:       ot.ID,
			Title:    ot.Title,
			Category: taskCategory(ot.ID, ot.Title),
			Critical: criticalTask.MatchString(ot.ID + " " + ot.Title),
			Owner:    ot.Owner,
			DueDate:  ot.DueDate,
			Status:   normalizeTaskStatus(ot.Status),
		}
		if p, ok := prevByID[ot.ID]; ok {
			t.Owner = p.Owner
			t.DueDate = p.DueDate
			t.Status = normalizeTaskStatus(firstNonEmpty(p.Status, t.Status))
			t.ReminderDaysBefore = p.ReminderDaysBefore
			t.Notes = p.Notes
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func taskCategory(id, title string) string {
	text := strings.ReplaceAll(id, "-", " ") + " " + title
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			return rule.category
		}
	}
	return model.TaskCategoryGeneral
}

func normalizeTaskStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if validTaskStatuses[s] {
		return s
	}
	return model.TaskStatusTodo
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// findTask returns a pointer into tasks for the given ID.
func findTask(tasks []model.Task, id string) *model.Task {
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i]
		}
	}
	return nil
}

// plannerOf returns the first user holding the planner role.
func plannerOf(roles []model.RoleAssignment) string {
	for _, r := range roles {
		if r.Role == model.RolePlanner {
			return r.UserID
		}
	}
	return ""
}

// CommentsFor filters comments by target. An empty targetID matches every
// comment of the target type.
func CommentsFor(comments []model.Comment, targetType, targetID string) []model.Comment {
	var out []model.Comment
	for _, c := range comments {
		if targetType != "" && c.TargetType != targetType {
			continue
		}
		if targetID != "" && c.TargetID != targetID {
			continue
		}
		out = append(out, c)
	}
	return out
}
