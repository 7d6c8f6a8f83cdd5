package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/pitabwire/tripflow/model"
)

// specAuthor attributes locks confirmed during intake.
const specAuthor = "trip-intake"

// decisionTypes lists every lockable decision type.
var decisionTypes = map[string]bool{
	model.DecisionDates:     true,
	model.DecisionResort:    true,
	model.DecisionLodging:   true,
	model.DecisionTransport: true,
	model.DecisionBudgetCap: true,
}

// specLocks returns the locks the trip spec declares, keyed by type.
func specLocks(spec model.TripSpec) []model.LockedDecision {
	var out []model.LockedDecision
	if spec.Locks.DatesLocked && spec.Dates.Start != "" && spec.Dates.End != "" {
		out = append(out, model.LockedDecision{
			Type:  model.DecisionDates,
			Value: model.FormatDateRange(spec.Dates.Start, spec.Dates.End),
		})
	}
	if spec.Locks.ResortName != "" {
		out = append(out, model.LockedDecision{
			Type:  model.DecisionResort,
			Value: spec.Locks.ResortName,
		})
	}
	return out
}

// deriveLocks merges spec-declared locks with the previous registry.
//
// A spec lock keeps its previous UpdatedAt while its value is unchanged. An
// explicit unlock of a spec lock survives until the spec value changes.
// Workflow locks are carried forward unless the spec now declares the type.
func deriveLocks(spec model.TripSpec, prev []model.LockedDecision, now time.Time) []model.LockedDecision {
	prevByType := make(map[string]model.LockedDecision, len(prev))
	for _, p := range prev {
		prevByType[p.Type] = p
	}

	byType := make(map[string]model.LockedDecision)
	for _, sl := range specLocks(spec) {
		entry := model.LockedDecision{
			Type:      sl.Type,
			Value:     sl.Value,
			Locked:    true,
			Source:    model.LockSourceTripSpec,
			Author:    specAuthor,
			UpdatedAt: now,
		}
		if p, ok := prevByType[sl.Type]; ok && p.Value == sl.Value {
			entry.UpdatedAt = p.UpdatedAt
			if p.Source == model.LockSourceTripSpec {
				entry.Locked = p.Locked
				entry.Author = p.Author
			}
		}
		byType[sl.Type] = entry
	}

	for _, p := range prev {
		if p.Source != model.LockSourceWorkflow || !p.Locked {
			continue
		}
		if _, derived := byType[p.Type]; derived {
			continue
		}
		byType[p.Type] = p
	}

	out := make([]model.LockedDecision, 0, len(byType))
	for _, l := range byType {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// findLock returns the registry entry for a decision type.
func findLock(locks []model.LockedDecision, typ string) (model.LockedDecision, bool) {
	for _, l := range locks {
		if l.Type == typ {
			return l, true
		}
	}
	return model.LockedDecision{}, false
}

// isLocked reports whether typ has an active lock.
func isLocked(locks []model.LockedDecision, typ string) bool {
	l, ok := findLock(locks, typ)
	return ok && l.Locked
}

// lockChanges describes every value or flag change between two registries.
func lockChanges(prev, cur []model.LockedDecision) []string {
	prevByType := make(map[string]model.LockedDecision, len(prev))
	for _, p := range prev {
		prevByType[p.Type] = p
	}

	var out []string
	seen := make(map[string]bool, len(cur))
	for _, c := range cur {
		seen[c.Type] = true
		p, ok := prevByType[c.Type]
		switch {
		case !ok && c.Locked:
			out = append(out, fmt.Sprintf("Locked %s: %s", c.Type, c.Value))
		case !ok:
			out = append(out, fmt.Sprintf("Recorded %s: %s (unlocked)", c.Type, c.Value))
		case p.Value != c.Value:
			out = append(out, fmt.Sprintf("%s lock changed from %s to %s", c.Type, p.Value, c.Value))
		case p.Locked && !c.Locked:
			out = append(out, fmt.Sprintf("Unlocked %s: %s", c.Type, c.Value))
		case !p.Locked && c.Locked:
			out = append(out, fmt.Sprintf("Re-locked %s: %s", c.Type, c.Value))
		}
	}
	for _, p := range prev {
		if !seen[p.Type] && p.Locked {
			out = append(out, fmt.Sprintf("Released %s lock: %s", p.Type, p.Value))
		}
	}
	return out
}
