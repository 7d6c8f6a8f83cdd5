package workflow

import (
	"time"

	"github.com/pitabwire/tripflow/internal/linkhealth"
	"github.com/pitabwire/tripflow/model"
)

const (
	freshWindow = 6 * time.Hour
	agingWindow = 48 * time.Hour
)

// deriveItineraryAudit classifies each candidate by the age of its oldest
// live-data fetch and tags what the candidate is built from.
func deriveItineraryAudit(decision model.DecisionPackage, now time.Time) []model.ItineraryAudit {
	out := make([]model.ItineraryAudit, 0, len(decision.Itineraries))
	for _, it := range decision.Itineraries {
		var oldest *time.Time
		for _, ts := range []*time.Time{it.Lodging.FetchedAt, it.Cars.FetchedAt} {
			if ts != nil && (oldest == nil || ts.Before(*oldest)) {
				t := *ts
				oldest = &t
			}
		}

		freshness := model.FreshnessUnknown
		if oldest != nil {
			switch age := now.Sub(*oldest); {
			case age <= freshWindow:
				freshness = model.FreshnessFresh
			case age <= agingWindow:
				freshness = model.FreshnessAging
			default:
				freshness = model.FreshnessStale
			}
		}

		tags := []string{}
		if len(it.Lodging.Options) > 0 {
			tags = append(tags, "live_lodging")
		} else {
			tags = append(tags, "no_live_lodging")
		}
		if len(it.Cars.Options) > 0 {
			tags = append(tags, "live_cars")
		}
		if len(it.Budget.Assumptions) > 0 {
			tags = append(tags, "budget_assumptions")
		}
		if len(it.ResearchLinks) > 0 {
			tags = append(tags, "research_links")
		}
		if len(it.Warnings) > 0 {
			tags = append(tags, "warnings")
		}
		if freshness == model.FreshnessStale {
			tags = append(tags, "stale_data")
		}

		out = append(out, model.ItineraryAudit{
			ItineraryID:   it.ID,
			Freshness:     freshness,
			OldestFetchAt: oldest,
			Tags:          tags,
		})
	}
	return out
}

// carryLinkHealth keeps previous probe records for URLs the decision still
// references.
func carryLinkHealth(decision model.DecisionPackage, prev model.LinkHealth) model.LinkHealth {
	referenced := make(map[string]bool)
	for _, t := range linkhealth.CollectTargets(decision) {
		referenced[t.URL] = true
	}

	records := make([]model.LinkRecord, 0, len(prev.Records))
	for _, r := range prev.Records {
		if referenced[r.URL] {
			records = append(records, r)
		}
	}
	return model.LinkHealth{Records: records, LastCheckedAt: prev.LastCheckedAt}
}

// brokenLinks counts records classified broken.
func brokenLinks(h model.LinkHealth) int {
	n := 0
	for _, r := range h.Records {
		if r.Status == model.LinkBroken {
			n++
		}
	}
	return n
}
