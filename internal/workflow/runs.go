package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/pitabwire/tripflow/model"
)

const maxRuns = 12

// costEpsilon ignores sub-cent float noise in cost deltas.
const costEpsilon = 0.005

// newRun stamps one derivation.
func (e *Engine) newRun(decision model.DecisionPackage, locks []model.LockedDecision, opts DeriveOptions, now time.Time) model.RunMetadata {
	snap := buildSnapshot(decision, locks)
	return model.RunMetadata{
		RunID:          e.newID(),
		Trigger:        triggerOf(opts),
		RecomputeMode:  opts.RecomputeMode,
		CreatedAt:      now,
		Model:          e.markers.Model,
		Profile:        e.markers.Profile,
		PromptVersions: append([]string(nil), e.markers.PromptVersions...),
		ScoringVersion: ScoringVersion,
		ProviderFetch:  providerFetch(decision),
		SnapshotDigest: snapshotDigest(snap),
		Snapshot:       snap,
	}
}

// appendRun adds run to the history, keeps the last maxRuns, and diffs it
// against its predecessor.
func appendRun(r model.Repeatability, run model.RunMetadata) model.Repeatability {
	if n := len(r.Runs); n > 0 {
		diff := DiffRuns(r.Runs[n-1], run)
		r.LatestDiff = &diff
	}
	r.Runs = append(r.Runs, run)
	if len(r.Runs) > maxRuns {
		r.Runs = append([]model.RunMetadata(nil), r.Runs[len(r.Runs)-maxRuns:]...)
	}
	return r
}

func buildSnapshot(decision model.DecisionPackage, locks []model.LockedDecision) model.RunSnapshot {
	snap := model.RunSnapshot{
		Itineraries: make([]model.SnapshotItinerary, 0, len(decision.Itineraries)),
		Matrix:      append([]model.MatrixRow(nil), decision.DecisionMatrix.Rows...),
		Budget:      decision.BudgetSummary,
	}
	for _, it := range decision.Itineraries {
		si := model.SnapshotItinerary{
			ID:             it.ID,
			ResortName:     it.ResortName,
			StartDate:      it.StartDate,
			EndDate:        it.EndDate,
			TotalPerPerson: it.Budget.TotalPerPerson,
			LodgingCount:   len(it.Lodging.Options),
		}
		if top, ok := it.TopLodging(); ok {
			si.TopLodgingName = top.Name
			si.TopLodgingPrice = top.TotalPrice
		}
		snap.Itineraries = append(snap.Itineraries, si)
	}
	for _, l := range locks {
		if !l.Locked {
			continue
		}
		if snap.Locks == nil {
			snap.Locks = make(map[string]string)
		}
		snap.Locks[l.Type] = l.Value
	}
	return snap
}

// digestItinerary is the hashed projection of a snapshot line. Lodging
// counts are diffed but do not make a run materially different.
type digestItinerary struct {
	ID              string  `json:"id"`
	ResortName      string  `json:"resort_name"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	TotalPerPerson  float64 `json:"total_per_person"`
	TopLodgingName  string  `json:"top_lodging_name"`
	TopLodgingPrice float64 `json:"top_lodging_price"`
}

func snapshotDigest(snap model.RunSnapshot) string {
	payload := struct {
		Itineraries []digestItinerary   `json:"itineraries"`
		Matrix      []model.MatrixRow   `json:"matrix"`
		Budget      model.BudgetSummary `json:"budget"`
	}{
		Itineraries: make([]digestItinerary, 0, len(snap.Itineraries)),
		Matrix:      snap.Matrix,
		Budget:      snap.Budget,
	}
	for _, it := range snap.Itineraries {
		payload.Itineraries = append(payload.Itineraries, digestItinerary{
			ID:              it.ID,
			ResortName:      it.ResortName,
			StartDate:       it.StartDate,
			EndDate:         it.EndDate,
			TotalPerPerson:  it.TotalPerPerson,
			TopLodgingName:  it.TopLodgingName,
			TopLodgingPrice: it.TopLodgingPrice,
		})
	}

	// Map keys in criteria marshal sorted, so the encoding is canonical.
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func providerFetch(decision model.DecisionPackage) model.ProviderFetchTime {
	latest := func(cur *time.Time, ts *time.Time) *time.Time {
		if ts == nil || (cur != nil && !ts.After(*cur)) {
			return cur
		}
		t := *ts
		return &t
	}

	var pf model.ProviderFetchTime
	for _, it := range decision.Itineraries {
		pf.Lodging = latest(pf.Lodging, it.Lodging.FetchedAt)
		pf.Cars = latest(pf.Cars, it.Cars.FetchedAt)
	}
	pf.POI = latest(nil, decision.PointsOfInt.FetchedAt)
	return pf
}

// DiffRuns compares two runs by itinerary ID.
func DiffRuns(prev, cur model.RunMetadata) model.RunDiff {
	diff := model.RunDiff{
		FromRunID:       prev.RunID,
		ToRunID:         cur.RunID,
		SnapshotChanged: prev.SnapshotDigest != cur.SnapshotDigest,
		CostDeltas:      []model.CostDelta{},
		LodgingDeltas:   []model.CountDelta{},
		RankChanges:     []model.RankChange{},
	}

	prevIts := make(map[string]model.SnapshotItinerary, len(prev.Snapshot.Itineraries))
	for _, it := range prev.Snapshot.Itineraries {
		prevIts[it.ID] = it
	}
	for _, it := range cur.Snapshot.Itineraries {
		p, ok := prevIts[it.ID]
		if !ok {
			continue
		}
		if delta := it.TotalPerPerson - p.TotalPerPerson; math.Abs(delta) > costEpsilon {
			diff.CostDeltas = append(diff.CostDeltas, model.CostDelta{
				ItineraryID: it.ID,
				Previous:    p.TotalPerPerson,
				Current:     it.TotalPerPerson,
				Delta:       math.Round(delta*100) / 100,
			})
		}
		if it.LodgingCount != p.LodgingCount {
			diff.LodgingDeltas = append(diff.LodgingDeltas, model.CountDelta{
				ItineraryID: it.ID,
				Previous:    p.LodgingCount,
				Current:     it.LodgingCount,
				Delta:       it.LodgingCount - p.LodgingCount,
			})
		}
	}

	prevRows := make(map[string]model.MatrixRow, len(prev.Snapshot.Matrix))
	for _, row := range prev.Snapshot.Matrix {
		prevRows[row.ItineraryID] = row
	}
	for _, row := range cur.Snapshot.Matrix {
		p, ok := prevRows[row.ItineraryID]
		if !ok || p.Rank == row.Rank {
			continue
		}
		diff.RankChanges = append(diff.RankChanges, model.RankChange{
			ItineraryID:   row.ItineraryID,
			PreviousRank:  p.Rank,
			CurrentRank:   row.Rank,
			PreviousScore: p.Score,
			CurrentScore:  row.Score,
		})
	}

	diff.LockedDecisionsPreserved, diff.PreservationNotes = lockPreservation(prev.Snapshot, cur.Snapshot)
	diff.Summary = diffSummary(diff)
	return diff
}

// lockPreservation checks that no resort or date lock was released or
// changed since the previous run, and that a lock the previous candidates
// offered is still offered. A lock no candidate ever offered is noted only.
func lockPreservation(prev, cur model.RunSnapshot) (bool, []string) {
	preserved := true
	var notes []string

	for _, typ := range []string{model.DecisionDates, model.DecisionResort} {
		was, hadLock := prev.Locks[typ]
		now, hasLock := cur.Locks[typ]

		switch {
		case hadLock && !hasLock:
			preserved = false
			notes = append(notes, fmt.Sprintf("Locked %s %q was released.", typ, was))
			continue
		case hadLock && was != now:
			preserved = false
			notes = append(notes, fmt.Sprintf("Locked %s changed from %q to %q.", typ, was, now))
		case !hasLock:
			continue
		}

		switch {
		case representedBy(cur.Itineraries, typ, now):
			notes = append(notes, fmt.Sprintf("Locked %s %q is still offered by the current candidates.", typ, now))
		case representedBy(prev.Itineraries, typ, now):
			preserved = false
			notes = append(notes, fmt.Sprintf("Locked %s %q no longer appears among the current candidates.", typ, now))
		default:
			notes = append(notes, fmt.Sprintf("Locked %s %q is not offered by any candidate.", typ, now))
		}
	}
	return preserved, notes
}

func representedBy(its []model.SnapshotItinerary, typ, value string) bool {
	for _, it := range its {
		switch typ {
		case model.DecisionResort:
			if it.ResortName == value {
				return true
			}
		case model.DecisionDates:
			if model.FormatDateRange(it.StartDate, it.EndDate) == value {
				return true
			}
		}
	}
	return false
}

func diffSummary(d model.RunDiff) string {
	locks := "locked decisions preserved"
	if !d.LockedDecisionsPreserved {
		locks = "locked decisions NOT preserved"
	}
	if !d.SnapshotChanged && len(d.CostDeltas) == 0 && len(d.RankChanges) == 0 {
		return fmt.Sprintf("No material changes since the previous run; %s.", locks)
	}
	return fmt.Sprintf("%d itinerary cost change(s), %d rank change(s); %s.", len(d.CostDeltas), len(d.RankChanges), locks)
}
