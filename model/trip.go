package model

import "time"

// DateLayout is the calendar date format used throughout trip inputs.
const DateLayout = "2006-01-02"

// Travel modes.
const (
	TravelModeDrive  = "drive"
	TravelModeFly    = "fly"
	TravelModeEither = "either"
)

// TripSpec is the structured, partially-filled record of trip constraints
// produced by the conversational intake. It is read-only to the workflow
// engine.
type TripSpec struct {
	Dates         DateSpec        `json:"dates"`
	Group         GroupSpec       `json:"group"`
	Budget        BudgetSpec      `json:"budget"`
	Travel        TravelSpec      `json:"travel"`
	Location      LocationSpec    `json:"location"`
	Locks         SpecLocks       `json:"locks"`
	Extraction    ExtractionState `json:"extraction"`
	MissingFields []string        `json:"missing_fields,omitempty"`
}

// DateSpec holds the requested trip window.
type DateSpec struct {
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	Flexible bool   `json:"flexible,omitempty"`
}

// GroupSpec describes who is travelling.
type GroupSpec struct {
	Size        int      `json:"size,omitempty"`
	SkillLevels []string `json:"skill_levels,omitempty"`
}

// BudgetSpec is the per-person budget target.
type BudgetSpec struct {
	PerPersonTarget float64 `json:"per_person_target,omitempty"`
	Currency        string  `json:"currency,omitempty"`
}

// TravelSpec captures how the group gets to the mountain.
type TravelSpec struct {
	Mode           string  `json:"mode,omitempty"`
	Origin         string  `json:"origin,omitempty"`
	ArrivalAirport string  `json:"arrival_airport,omitempty"`
	MaxDriveHours  float64 `json:"max_drive_hours,omitempty"`
}

// LocationSpec narrows where the group wants to ski.
type LocationSpec struct {
	Region          string   `json:"region,omitempty"`
	PreferredResort []string `json:"preferred_resorts,omitempty"`
}

// SpecLocks are lock hints confirmed during intake.
type SpecLocks struct {
	ResortName  string `json:"resort_name,omitempty"`
	DatesLocked bool   `json:"dates_locked,omitempty"`
}

// ExtractionState carries the assumption records of the intake flow.
type ExtractionState struct {
	PendingAssumptions  []AssumptionRecord `json:"pending_assumptions,omitempty"`
	AcceptedAssumptions []AssumptionRecord `json:"accepted_assumptions,omitempty"`
}

// AssumptionRecord is one assumption made while filling the spec.
type AssumptionRecord struct {
	ID      string `json:"id,omitempty"`
	Field   string `json:"field,omitempty"`
	Summary string `json:"summary"`
}

// IsZero reports whether the spec has been reset to empty.
func (s TripSpec) IsZero() bool {
	return s.Dates == (DateSpec{}) &&
		s.Group.Size == 0 && len(s.Group.SkillLevels) == 0 &&
		s.Budget == (BudgetSpec{}) &&
		s.Travel == (TravelSpec{}) &&
		s.Location.Region == "" && len(s.Location.PreferredResort) == 0 &&
		s.Locks == (SpecLocks{}) &&
		len(s.Extraction.PendingAssumptions) == 0 &&
		len(s.Extraction.AcceptedAssumptions) == 0 &&
		len(s.MissingFields) == 0
}

// DrivingOnly reports whether the group has ruled out flying.
func (s TripSpec) DrivingOnly() bool {
	return s.Travel.Mode == TravelModeDrive
}

// StartDate parses the requested start date.
func (s TripSpec) StartDate() (time.Time, bool) {
	return ParseDate(s.Dates.Start)
}

// EndDate parses the requested end date.
func (s TripSpec) EndDate() (time.Time, bool) {
	return ParseDate(s.Dates.End)
}

// ParseDate parses a YYYY-MM-DD date, reporting false for empty or invalid
// input.
func ParseDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDateRange renders a date range the way date locks store it.
func FormatDateRange(start, end string) string {
	return start + " to " + end
}
