package model

import "time"

// SnapshotReport is a read-only export of a trip's workflow.
type SnapshotReport struct {
	Structured ReportData `json:"structured"`
	Markdown   string     `json:"markdown"`
}

// ReportData is the structured half of a snapshot report.
type ReportData struct {
	ExportedAt time.Time      `json:"exported_at"`
	Trip       SpecEssentials `json:"trip"`
	Workflow   WorkflowState  `json:"workflow"`
	Decision   DecisionDigest `json:"decision"`
}

// SpecEssentials are the trip constraints worth repeating in an export.
type SpecEssentials struct {
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	GroupSize  int      `json:"group_size,omitempty"`
	Budget     float64  `json:"budget_per_person,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	TravelMode string   `json:"travel_mode,omitempty"`
	Region     string   `json:"region,omitempty"`
	Resorts    []string `json:"preferred_resorts,omitempty"`
}

// DecisionDigest condenses the decision package.
type DecisionDigest struct {
	ItineraryCount int           `json:"itinerary_count"`
	Ranking        []RankingLine `json:"ranking"`
	Budget         BudgetSummary `json:"budget"`
}

// RankingLine is one decision-matrix row joined with its itinerary.
type RankingLine struct {
	Rank           int     `json:"rank"`
	ItineraryID    string  `json:"itinerary_id"`
	ResortName     string  `json:"resort_name"`
	Score          float64 `json:"score"`
	TotalPerPerson float64 `json:"total_per_person"`
}
