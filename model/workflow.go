package model

import "time"

// Stage IDs in lifecycle order.
const (
	StageTripIntake       = "trip_intake"
	StageCandidateCompare = "candidate_compare"
	StageDecisionLocking  = "decision_locking"
	StageBookingPrep      = "booking_prep"
	StageBookings         = "bookings"
	StageTripExecution    = "trip_execution"
)

// StageOrder lists the six lifecycle stages in order.
var StageOrder = []string{
	StageTripIntake,
	StageCandidateCompare,
	StageDecisionLocking,
	StageBookingPrep,
	StageBookings,
	StageTripExecution,
}

// Stage status constants.
const (
	StageStatusTodo       = "todo"
	StageStatusInProgress = "in_progress"
	StageStatusBlocked    = "blocked"
	StageStatusDone       = "done"
)

// Decision types that can be locked.
const (
	DecisionDates     = "dates"
	DecisionResort    = "resort"
	DecisionLodging   = "lodging"
	DecisionTransport = "transport"
	DecisionBudgetCap = "budget_cap"
)

// Lock sources.
const (
	LockSourceTripSpec = "tripspec"
	LockSourceWorkflow = "workflow"
)

// Assumption statuses.
const (
	AssumptionPending   = "pending"
	AssumptionAccepted  = "accepted"
	AssumptionDismissed = "dismissed"
)

// Assumption sources.
const (
	AssumptionSourcePending  = "pending_clarification"
	AssumptionSourceAccepted = "accepted_spec"
	AssumptionSourceMissing  = "missing_field"
	AssumptionSourceBudget   = "itinerary_budget"
)

// Coordination roles.
const (
	RolePlanner  = "planner"
	RoleMember   = "member"
	RoleApprover = "approver"
)

// Vote types.
const (
	VoteShortlist      = "shortlist_vote"
	VoteFinalResort    = "final_resort_vote"
	VoteLodging        = "lodging_vote"
	VoteBudgetApproval = "budget_approval"
)

// VoteTypes lists the fixed vote types in display order.
var VoteTypes = []string{VoteShortlist, VoteFinalResort, VoteLodging, VoteBudgetApproval}

// Budget approval options.
const (
	OptionApprove = "Approve"
	OptionRevise  = "Revise"
)

// Vote statuses.
const (
	VoteStatusOpen     = "open"
	VoteStatusClosed   = "closed"
	VoteStatusApproved = "approved"
)

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusBlocked    = "blocked"
	TaskStatusDone       = "done"
)

// Task categories.
const (
	TaskCategoryLodging   = "lodging"
	TaskCategoryTransport = "transport"
	TaskCategoryRentals   = "rentals"
	TaskCategoryGroceries = "groceries"
	TaskCategoryDining    = "dining"
	TaskCategoryGeneral   = "general"
)

// Run triggers.
const (
	TriggerChatGeneration         = "chat_generation"
	TriggerRecomputeSameSnapshot  = "recompute_same_snapshot"
	TriggerRecomputeRefreshedLive = "recompute_refreshed_live"
	TriggerWorkflowRefresh        = "workflow_refresh"
)

// Recompute modes.
const (
	RecomputeSameSnapshot = "same_snapshot"
	RecomputeRefreshed    = "refreshed_live"
)

// Decision log entry types.
const (
	LogStage      = "stage"
	LogLock       = "lock"
	LogRecompute  = "recompute"
	LogVote       = "vote"
	LogApproval   = "approval"
	LogTask       = "task"
	LogAssumption = "assumption"
	LogRole       = "role"
	LogComment    = "comment"
)

// Link health statuses.
const (
	LinkOK      = "ok"
	LinkWarning = "warning"
	LinkBroken  = "broken"
)

// Operational check statuses.
const (
	CheckOK      = "ok"
	CheckWatch   = "watch"
	CheckWarning = "warning"
	CheckUnknown = "unknown"
)

// Operational check IDs.
const (
	CheckWeatherSnow       = "weather_snow"
	CheckLiftOps           = "lift_ops"
	CheckRoads             = "roads"
	CheckAirportTiming     = "airport_timing"
	CheckTripWeekReadiness = "trip_week_readiness"
)

// Source freshness classes for the itinerary audit.
const (
	FreshnessFresh   = "fresh"
	FreshnessAging   = "aging"
	FreshnessStale   = "stale"
	FreshnessUnknown = "unknown"
)

// WorkflowState is the coordination state derived from a trip spec and its
// decision package. It is rebuilt on every derivation; continuity of
// user-owned sub-state comes from the previous value.
type WorkflowState struct {
	Stage            StageState         `json:"stage"`
	LockedDecisions  []LockedDecision   `json:"locked_decisions"`
	Assumptions      AssumptionQueue    `json:"assumptions"`
	Coordination     Coordination       `json:"coordination"`
	ItineraryAudit   []ItineraryAudit   `json:"itinerary_audit"`
	Repeatability    Repeatability      `json:"repeatability"`
	DecisionLog      []DecisionLogEntry `json:"decision_log"`
	Integrations     Integrations       `json:"integrations"`
	Operations       Operations         `json:"operations"`
	BookingReadiness BookingReadiness   `json:"booking_readiness"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// StageState is the six-stage lifecycle.
type StageState struct {
	Current string        `json:"current"`
	Stages  []StageStatus `json:"stages"`
}

// StageStatus is one lifecycle stage.
type StageStatus struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Blockers []string `json:"blockers,omitempty"`
}

// Find returns the stage with the given ID.
func (s StageState) Find(id string) (StageStatus, bool) {
	for _, st := range s.Stages {
		if st.ID == id {
			return st, true
		}
	}
	return StageStatus{}, false
}

// LockedDecision is a confirmed value that survives recomputation.
type LockedDecision struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	Locked    bool      `json:"locked"`
	Source    string    `json:"source"`
	Author    string    `json:"author,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssumptionQueue is the merged assumption review queue.
type AssumptionQueue struct {
	Queue  []AssumptionItem `json:"queue"`
	Counts AssumptionCounts `json:"counts"`
}

// AssumptionItem is one reviewable assumption. ID is a stable composite key.
type AssumptionItem struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Summary     string `json:"summary"`
	ItineraryID string `json:"itinerary_id,omitempty"`
	Status      string `json:"status"`
}

// AssumptionCounts tallies queue statuses.
type AssumptionCounts struct {
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Dismissed int `json:"dismissed"`
}

// Coordination holds roles, votes, tasks, and comments.
type Coordination struct {
	Roles    []RoleAssignment `json:"roles"`
	Votes    []Vote           `json:"votes"`
	Tasks    []Task           `json:"tasks"`
	Comments []Comment        `json:"comments"`
}

// RoleAssignment maps a user to a coordination role.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vote is one group decision poll.
type Vote struct {
	Type     string     `json:"type"`
	Title    string     `json:"title"`
	Status   string     `json:"status"`
	Options  []string   `json:"options"`
	Ballots  []Ballot   `json:"ballots"`
	Winner   string     `json:"winner,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// Ballot is one voter's choice.
type Ballot struct {
	Voter     string    `json:"voter"`
	Choice    string    `json:"choice"`
	Rationale string    `json:"rationale,omitempty"`
	CastAt    time.Time `json:"cast_at"`
}

// Task is an ops-board task with workflow continuity fields.
type Task struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Category           string `json:"category"`
	Critical           bool   `json:"critical"`
	Owner              string `json:"owner,omitempty"`
	DueDate            string `json:"due_date,omitempty"`
	Status             string `json:"status"`
	ReminderDaysBefore int    `json:"reminder_days_before,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// Comment is a note attached to a workflow target.
type Comment struct {
	ID         string    `json:"id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id,omitempty"`
	Author     string    `json:"author"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// ItineraryAudit classifies how fresh a candidate's live data is.
type ItineraryAudit struct {
	ItineraryID   string     `json:"itinerary_id"`
	Freshness     string     `json:"freshness"`
	OldestFetchAt *time.Time `json:"oldest_fetch_at,omitempty"`
	Tags          []string   `json:"tags"`
}

// Repeatability holds run history and the latest diff.
type Repeatability struct {
	Runs       []RunMetadata `json:"runs"`
	LatestDiff *RunDiff      `json:"latest_diff,omitempty"`
}

// RunMetadata stamps one full derivation.
type RunMetadata struct {
	RunID          string            `json:"run_id"`
	Trigger        string            `json:"trigger"`
	RecomputeMode  string            `json:"recompute_mode,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Model          string            `json:"model,omitempty"`
	Profile        string            `json:"profile,omitempty"`
	PromptVersions []string          `json:"prompt_versions,omitempty"`
	ScoringVersion string            `json:"scoring_version"`
	ProviderFetch  ProviderFetchTime `json:"provider_fetch"`
	SnapshotDigest string            `json:"snapshot_digest"`
	Snapshot       RunSnapshot       `json:"snapshot"`
}

// ProviderFetchTime records the latest fetch per live-data provider.
type ProviderFetchTime struct {
	Lodging *time.Time `json:"lodging,omitempty"`
	Cars    *time.Time `json:"cars,omitempty"`
	POI     *time.Time `json:"poi,omitempty"`
}

// RunSnapshot is the normalized decision snapshot a run was computed from.
type RunSnapshot struct {
	Itineraries []SnapshotItinerary `json:"itineraries"`
	Matrix      []MatrixRow         `json:"matrix"`
	Budget      BudgetSummary       `json:"budget"`
	Locks       map[string]string   `json:"locks,omitempty"`
}

// SnapshotItinerary is the normalized per-itinerary snapshot line.
type SnapshotItinerary struct {
	ID              string  `json:"id"`
	ResortName      string  `json:"resort_name"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	TotalPerPerson  float64 `json:"total_per_person"`
	TopLodgingName  string  `json:"top_lodging_name,omitempty"`
	TopLodgingPrice float64 `json:"top_lodging_price,omitempty"`
	LodgingCount    int     `json:"lodging_count"`
}

// RunDiff compares two consecutive runs.
type RunDiff struct {
	FromRunID                string       `json:"from_run_id"`
	ToRunID                  string       `json:"to_run_id"`
	SnapshotChanged          bool         `json:"snapshot_changed"`
	CostDeltas               []CostDelta  `json:"cost_deltas"`
	LodgingDeltas            []CountDelta `json:"lodging_deltas"`
	RankChanges              []RankChange `json:"rank_changes"`
	LockedDecisionsPreserved bool         `json:"locked_decisions_preserved"`
	PreservationNotes        []string     `json:"preservation_notes,omitempty"`
	Summary                  string       `json:"summary"`
}

// CostDelta is a per-itinerary change in total cost per person.
type CostDelta struct {
	ItineraryID string  `json:"itinerary_id"`
	Previous    float64 `json:"previous"`
	Current     float64 `json:"current"`
	Delta       float64 `json:"delta"`
}

// CountDelta is a per-itinerary change in lodging option count.
type CountDelta struct {
	ItineraryID string `json:"itinerary_id"`
	Previous    int    `json:"previous"`
	Current     int    `json:"current"`
	Delta       int    `json:"delta"`
}

// RankChange is a per-itinerary change in decision-matrix rank or score.
type RankChange struct {
	ItineraryID   string  `json:"itinerary_id"`
	PreviousRank  int     `json:"previous_rank"`
	CurrentRank   int     `json:"current_rank"`
	PreviousScore float64 `json:"previous_score"`
	CurrentScore  float64 `json:"current_score"`
}

// DecisionLogEntry is one audit trail entry.
type DecisionLogEntry struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Summary string    `json:"summary"`
	Author  string    `json:"author"`
	At      time.Time `json:"at"`
}

// Integrations are projections for calendar, expense, export, and
// messaging collaborators.
type Integrations struct {
	Calendar   []CalendarEvent  `json:"calendar"`
	Expenses   []ExpenseDefault `json:"expenses"`
	Sheets     SheetsExport     `json:"sheets"`
	Messaging  Messaging        `json:"messaging"`
	LinkHealth LinkHealth       `json:"link_health"`
}

// CalendarEvent is a draft calendar entry.
type CalendarEvent struct {
	Date     string `json:"date"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	SourceID string `json:"source_id,omitempty"`
}

// ExpenseDefault maps a task to an expense category and default payer.
type ExpenseDefault struct {
	TaskID       string `json:"task_id"`
	Category     string `json:"category"`
	DefaultPayer string `json:"default_payer,omitempty"`
}

// SheetsExport lists the stable export columns.
type SheetsExport struct {
	Columns []string `json:"columns"`
}

// Messaging holds notices for the messaging dispatcher.
type Messaging struct {
	Reminders    []Notice `json:"reminders"`
	VoteRequests []Notice `json:"vote_requests"`
	LinkRefresh  []Notice `json:"link_refresh"`
}

// Notice is one outbound message.
type Notice struct {
	Kind     string `json:"kind"`
	TargetID string `json:"target_id,omitempty"`
	Message  string `json:"message"`
}

// LinkHealth holds link probe results.
type LinkHealth struct {
	Records       []LinkRecord `json:"records"`
	LastCheckedAt *time.Time   `json:"last_checked_at,omitempty"`
}

// LinkRecord is the classification of one URL.
type LinkRecord struct {
	URL         string    `json:"url"`
	ItineraryID string    `json:"itinerary_id,omitempty"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	HTTPStatus  int       `json:"http_status,omitempty"`
	Method      string    `json:"method,omitempty"`
	Error       string    `json:"error,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Operations holds operational readiness checks.
type Operations struct {
	Checks         []OperationalCheck `json:"checks"`
	ReadinessScore int                `json:"readiness_score"`
}

// OperationalCheck is one trip-readiness signal.
type OperationalCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// BookingReadiness is the go/no-go checklist.
type BookingReadiness struct {
	Ready          bool            `json:"ready"`
	RemainingCount int             `json:"remaining_count"`
	Items          []ChecklistItem `json:"items"`
}

// ChecklistItem is one booking-readiness condition.
type ChecklistItem struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Done        bool   `json:"done"`
	HardBlocker bool   `json:"hard_blocker,omitempty"`
}
