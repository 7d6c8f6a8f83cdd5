package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/pitabwire/tripflow/internal/linkhealth"
	"github.com/pitabwire/tripflow/model"
)

var testNow = time.Date(2027, 1, 5, 12, 0, 0, 0, time.UTC)

// testClock advances one minute per reading so timestamps differ between
// derivations.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

// stubProber returns canned records and counts calls.
type stubProber struct {
	status  map[string]string
	targets []linkhealth.Target
}

func (s *stubProber) Probe(_ context.Context, targets []linkhealth.Target) []model.LinkRecord {
	s.targets = targets
	out := make([]model.LinkRecord, 0, len(targets))
	for _, t := range targets {
		status := model.LinkOK
		if st, ok := s.status[t.URL]; ok {
			status = st
		}
		out = append(out, model.LinkRecord{URL: t.URL, ItineraryID: t.ItineraryID, Kind: t.Kind, Status: status, CheckedAt: testNow})
	}
	return out
}

func newTestEngine(opts ...Option) *Engine {
	clock := &testClock{t: testNow}
	n := 0
	base := []Option{
		WithClock(clock.now),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		}),
		WithProber(&stubProber{}),
		WithMarkers(Markers{Model: "planner-large", Profile: "balanced", PromptVersions: []string{"intake-v2", "ranking-v4"}}),
	}
	return NewEngine(append(base, opts...)...)
}

func testSpec() model.TripSpec {
	return model.TripSpec{
		Dates:    model.DateSpec{Start: "2027-02-12", End: "2027-02-15"},
		Group:    model.GroupSpec{Size: 4, SkillLevels: []string{"intermediate"}},
		Budget:   model.BudgetSpec{PerPersonTarget: 1200, Currency: "USD"},
		Travel:   model.TravelSpec{Mode: model.TravelModeFly, Origin: "SFO"},
		Location: model.LocationSpec{Region: "Utah"},
	}
}

func lockedSpec() model.TripSpec {
	spec := testSpec()
	spec.Locks = model.SpecLocks{ResortName: "Alta", DatesLocked: true}
	return spec
}

func testDecision() model.DecisionPackage {
	fetched := testNow.Add(-2 * time.Hour)
	return model.DecisionPackage{
		Itineraries: []model.Itinerary{
			{
				ID:         "it-alta",
				ResortName: "Alta",
				StartDate:  "2027-02-12",
				EndDate:    "2027-02-15",
				Budget: model.BudgetBreakdown{
					TotalPerPerson: 900,
					Assumptions:    []string{"Lift tickets at window price", "Shared condo for four", "Groceries split evenly"},
				},
				Lodging: model.LodgingResults{
					Options:   []model.LodgingOption{{Name: "Alta Lodge", TotalPrice: 2400, BookingURL: "https://stay.example/alta-lodge"}},
					FetchedAt: &fetched,
				},
				ResearchLinks: []string{"https://alta.example/conditions"},
			},
			{
				ID:         "it-snowbird",
				ResortName: "Snowbird",
				StartDate:  "2027-02-12",
				EndDate:    "2027-02-15",
				Budget:     model.BudgetBreakdown{TotalPerPerson: 1050},
				Lodging: model.LodgingResults{
					Options:   []model.LodgingOption{{Name: "Cliff Lodge", TotalPrice: 2800, BookingURL: "https://stay.example/cliff"}},
					FetchedAt: &fetched,
				},
			},
		},
		DecisionMatrix: model.DecisionMatrix{Rows: []model.MatrixRow{
			{ItineraryID: "it-alta", ResortName: "Alta", Rank: 1, Score: 87.5},
			{ItineraryID: "it-snowbird", ResortName: "Snowbird", Rank: 2, Score: 80},
		}},
		BudgetSummary: model.BudgetSummary{MinPerPerson: 900, MaxPerPerson: 1050, MedianPerPerson: 975, TargetPerPerson: 1200, Currency: "USD"},
		OpsBoard: model.OpsBoard{Tasks: []model.OpsTask{
			{ID: "book-lodging", Title: "Book lodging"},
			{ID: "buy-lift-tickets", Title: "Buy lift tickets"},
			{ID: "plan-dinner", Title: "Plan group dinner"},
		}},
	}
}

func strPtr(s string) *string { return &s }

func stageStatus(t interface{ Helper() }, state model.StageState, id string) string {
	t.Helper()
	st, _ := state.Find(id)
	return st.Status
}
