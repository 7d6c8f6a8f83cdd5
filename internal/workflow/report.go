package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pitabwire/tripflow/model"
)

// BuildSnapshotReport exports the trip's workflow. A decision without
// workflow state is derived first without recording a run.
func (e *Engine) BuildSnapshotReport(spec model.TripSpec, decision model.DecisionPackage) model.SnapshotReport {
	var state model.WorkflowState
	if decision.Workflow != nil {
		state = *decision.Workflow
	} else {
		state = e.derive(spec, decision, nil, DeriveOptions{}, false)
	}

	data := model.ReportData{
		ExportedAt: e.now().UTC(),
		Trip: model.SpecEssentials{
			StartDate:  spec.Dates.Start,
			EndDate:    spec.Dates.End,
			GroupSize:  spec.Group.Size,
			Budget:     spec.Budget.PerPersonTarget,
			Currency:   spec.Budget.Currency,
			TravelMode: spec.Travel.Mode,
			Region:     spec.Location.Region,
			Resorts:    spec.Location.PreferredResort,
		},
		Workflow: state,
		Decision: model.DecisionDigest{
			ItineraryCount: len(decision.Itineraries),
			Ranking:        ranking(decision),
			Budget:         decision.BudgetSummary,
		},
	}
	return model.SnapshotReport{Structured: data, Markdown: renderMarkdown(data)}
}

func ranking(decision model.DecisionPackage) []model.RankingLine {
	costs := make(map[string]float64, len(decision.Itineraries))
	for _, it := range decision.Itineraries {
		costs[it.ID] = it.Budget.TotalPerPerson
	}

	lines := make([]model.RankingLine, 0, len(decision.DecisionMatrix.Rows))
	for _, row := range decision.DecisionMatrix.Rows {
		lines = append(lines, model.RankingLine{
			Rank:           row.Rank,
			ItineraryID:    row.ItineraryID,
			ResortName:     row.ResortName,
			Score:          row.Score,
			TotalPerPerson: costs[row.ItineraryID],
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Rank < lines[j].Rank })
	return lines
}

func renderMarkdown(d model.ReportData) string {
	var b strings.Builder
	w := d.Workflow

	b.WriteString("# Trip snapshot\n\n")
	fmt.Fprintf(&b, "- Exported at: %s\n", d.ExportedAt.Format("2006-01-02 15:04 MST"))
	stageStatus := ""
	if st, ok := w.Stage.Find(w.Stage.Current); ok {
		stageStatus = " (" + st.Status + ")"
	}
	fmt.Fprintf(&b, "- Current stage: %s%s\n", w.Stage.Current, stageStatus)
	if w.BookingReadiness.Ready {
		b.WriteString("- Booking ready: yes\n")
	} else {
		fmt.Fprintf(&b, "- Booking ready: no (%d item(s) remaining)\n", w.BookingReadiness.RemainingCount)
	}

	b.WriteString("\n## Locked decisions\n\n")
	locked := 0
	for _, l := range w.LockedDecisions {
		if !l.Locked {
			continue
		}
		locked++
		fmt.Fprintf(&b, "- %s: %s (%s)\n", l.Type, l.Value, l.Source)
	}
	if locked == 0 {
		b.WriteString("- None yet\n")
	}

	b.WriteString("\n## Ranking\n\n")
	if len(d.Decision.Ranking) == 0 {
		b.WriteString("- No candidates ranked\n")
	}
	for _, line := range d.Decision.Ranking {
		fmt.Fprintf(&b, "%d. %s: score %.1f, %.0f per person\n", line.Rank, line.ResortName, line.Score, line.TotalPerPerson)
	}

	b.WriteString("\n## Latest run diff\n\n")
	if w.Repeatability.LatestDiff != nil {
		fmt.Fprintf(&b, "%s\n", w.Repeatability.LatestDiff.Summary)
	} else {
		b.WriteString("No previous run to compare.\n")
	}

	b.WriteString("\n## Open tasks\n\n")
	open := 0
	for _, t := range w.Coordination.Tasks {
		if t.Status == model.TaskStatusDone {
			continue
		}
		open++
		fmt.Fprintf(&b, "- [ ] %s", t.Title)
		var meta []string
		if t.Owner != "" {
			meta = append(meta, "owner: "+t.Owner)
		}
		if t.DueDate != "" {
			meta = append(meta, "due "+t.DueDate)
		}
		if t.Critical {
			meta = append(meta, "critical")
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(meta, ", "))
		}
		b.WriteString("\n")
	}
	if open == 0 {
		b.WriteString("- All tasks done\n")
	}
	return b.String()
}
