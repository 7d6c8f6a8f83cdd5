package workflow

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pitabwire/tripflow/model"
)

const (
	maxAssumptions             = 40
	budgetAssumptionsPerOption = 2
)

var validAssumptionStatuses = map[string]bool{
	model.AssumptionPending:   true,
	model.AssumptionAccepted:  true,
	model.AssumptionDismissed: true,
}

// deriveAssumptions merges the four assumption sources into one queue. Item
// IDs are composite keys, so a reviewed status survives summary edits.
func deriveAssumptions(spec model.TripSpec, decision model.DecisionPackage, prev model.AssumptionQueue) model.AssumptionQueue {
	prevStatus := make(map[string]string, len(prev.Queue))
	for _, item := range prev.Queue {
		prevStatus[item.ID] = item.Status
	}

	var candidates []model.AssumptionItem
	for _, r := range spec.Extraction.PendingAssumptions {
		candidates = append(candidates, model.AssumptionItem{
			ID:      "pending:" + recordKey(r),
			Source:  model.AssumptionSourcePending,
			Summary: r.Summary,
		})
	}
	for _, r := range spec.Extraction.AcceptedAssumptions {
		candidates = append(candidates, model.AssumptionItem{
			ID:      "accepted:" + recordKey(r),
			Source:  model.AssumptionSourceAccepted,
			Summary: r.Summary,
		})
	}
	for _, field := range spec.MissingFields {
		candidates = append(candidates, model.AssumptionItem{
			ID:      "missing:" + slug(field),
			Source:  model.AssumptionSourceMissing,
			Summary: fmt.Sprintf("Missing required field: %s", field),
		})
	}
	for _, it := range decision.Itineraries {
		for i, text := range it.Budget.Assumptions {
			if i >= budgetAssumptionsPerOption {
				break
			}
			candidates = append(candidates, model.AssumptionItem{
				ID:          fmt.Sprintf("budget:%s:%d", it.ID, i),
				Source:      model.AssumptionSourceBudget,
				Summary:     text,
				ItineraryID: it.ID,
			})
		}
	}

	seen := make(map[string]bool, len(candidates))
	queue := make([]model.AssumptionItem, 0, len(candidates))
	for _, item := range candidates {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		item.Status = model.AssumptionPending
		if s, ok := prevStatus[item.ID]; ok && validAssumptionStatuses[s] {
			item.Status = s
		}
		queue = append(queue, item)
		if len(queue) == maxAssumptions {
			break
		}
	}

	return model.AssumptionQueue{Queue: queue, Counts: countAssumptions(queue)}
}

func countAssumptions(queue []model.AssumptionItem) model.AssumptionCounts {
	var c model.AssumptionCounts
	for _, item := range queue {
		switch item.Status {
		case model.AssumptionAccepted:
			c.Accepted++
		case model.AssumptionDismissed:
			c.Dismissed++
		default:
			c.Pending++
		}
	}
	return c
}

// recordKey picks the most stable discriminator an assumption record has.
func recordKey(r model.AssumptionRecord) string {
	switch {
	case r.ID != "":
		return r.ID
	case r.Field != "":
		return slug(r.Field)
	default:
		return slug(r.Summary)
	}
}

// slug lowercases s and collapses runs of other characters into dashes.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
