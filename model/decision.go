package model

import "time"

// DecisionPackage is the computed set of ranked itinerary candidates, their
// budgets, the decision matrix, and the operations board. The workflow engine
// reads everything except Workflow, which it attaches or overwrites.
type DecisionPackage struct {
	Itineraries    []Itinerary    `json:"itineraries"`
	DecisionMatrix DecisionMatrix `json:"decision_matrix"`
	BudgetSummary  BudgetSummary  `json:"budget_summary"`
	OpsBoard       OpsBoard       `json:"ops_board"`
	PointsOfInt    POIResults     `json:"points_of_interest"`
	GeneratedAt    *time.Time     `json:"generated_at,omitempty"`
	Workflow       *WorkflowState `json:"workflow,omitempty"`
}

// Itinerary is one resort/date candidate.
type Itinerary struct {
	ID            string          `json:"id"`
	ResortName    string          `json:"resort_name"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	Budget        BudgetBreakdown `json:"budget"`
	Lodging       LodgingResults  `json:"lodging"`
	Cars          CarResults      `json:"cars"`
	ResearchLinks []string        `json:"research_links,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// DateRange renders the itinerary dates in date-lock form.
func (it Itinerary) DateRange() string {
	return FormatDateRange(it.StartDate, it.EndDate)
}

// TopLodging returns the first-ranked lodging option, if any.
func (it Itinerary) TopLodging() (LodgingOption, bool) {
	if len(it.Lodging.Options) == 0 {
		return LodgingOption{}, false
	}
	return it.Lodging.Options[0], true
}

// BudgetBreakdown is the per-person cost estimate for an itinerary.
type BudgetBreakdown struct {
	TotalPerPerson float64  `json:"total_per_person"`
	Lodging        float64  `json:"lodging,omitempty"`
	Lifts          float64  `json:"lifts,omitempty"`
	Transport      float64  `json:"transport,omitempty"`
	Food           float64  `json:"food,omitempty"`
	Assumptions    []string `json:"assumptions,omitempty"`
}

// LodgingResults are live lodging options with their fetch time.
type LodgingResults struct {
	Options   []LodgingOption `json:"options,omitempty"`
	FetchedAt *time.Time      `json:"fetched_at,omitempty"`
}

// LodgingOption is one bookable place to stay.
type LodgingOption struct {
	Name          string  `json:"name"`
	PricePerNight float64 `json:"price_per_night,omitempty"`
	TotalPrice    float64 `json:"total_price,omitempty"`
	BookingURL    string  `json:"booking_url,omitempty"`
}

// CarResults are live rental-car options with their fetch time.
type CarResults struct {
	Options   []CarOption `json:"options,omitempty"`
	FetchedAt *time.Time  `json:"fetched_at,omitempty"`
}

// CarOption is one rental-car quote.
type CarOption struct {
	Provider   string  `json:"provider"`
	Vehicle    string  `json:"vehicle,omitempty"`
	TotalPrice float64 `json:"total_price,omitempty"`
	BookingURL string  `json:"booking_url,omitempty"`
}

// DecisionMatrix holds per-candidate scores.
type DecisionMatrix struct {
	Rows []MatrixRow `json:"rows"`
}

// MatrixRow is the score line for one itinerary.
type MatrixRow struct {
	ItineraryID string             `json:"itinerary_id"`
	ResortName  string             `json:"resort_name,omitempty"`
	Rank        int                `json:"rank"`
	Score       float64            `json:"score"`
	Criteria    map[string]float64 `json:"criteria,omitempty"`
}

// BudgetSummary aggregates costs across candidates.
type BudgetSummary struct {
	MinPerPerson    float64 `json:"min_per_person,omitempty"`
	MaxPerPerson    float64 `json:"max_per_person,omitempty"`
	MedianPerPerson float64 `json:"median_per_person,omitempty"`
	TargetPerPerson float64 `json:"target_per_person,omitempty"`
	Currency        string  `json:"currency,omitempty"`
}

// OpsBoard is the externally generated task list.
type OpsBoard struct {
	Tasks []OpsTask `json:"tasks"`
}

// OpsTask is one ops-board task. Owner, DueDate, and Status seed the
// workflow task the first time it is seen.
type OpsTask struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Owner   string `json:"owner,omitempty"`
	DueDate string `json:"due_date,omitempty"`
	Status  string `json:"status,omitempty"`
}

// POIResults are points of interest near the candidates.
type POIResults struct {
	Results   []PointOfInterest `json:"results,omitempty"`
	FetchedAt *time.Time        `json:"fetched_at,omitempty"`
}

// PointOfInterest is a single nearby place.
type PointOfInterest struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Trip is the persisted unit: one spec, its decision package, and a version
// for optimistic locking.
type Trip struct {
	ID        string           `json:"id"`
	Spec      TripSpec         `json:"spec"`
	Decision  *DecisionPackage `json:"decision,omitempty"`
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TripSummary is a lightweight representation of a trip used in list views.
type TripSummary struct {
	ID           string    `json:"id"`
	CurrentStage string    `json:"current_stage,omitempty"`
	BookingReady bool      `json:"booking_ready"`
	Itineraries  int       `json:"itineraries"`
	Version      int       `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}
