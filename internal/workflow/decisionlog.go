package workflow

import (
	"fmt"
	"time"

	"github.com/pitabwire/tripflow/model"
)

const maxDecisionLog = 80

// appendLog adds an entry unless it repeats the previous entry's type,
// summary, and author. The log keeps its last maxDecisionLog entries.
func (e *Engine) appendLog(log []model.DecisionLogEntry, typ, summary, author string, at time.Time) []model.DecisionLogEntry {
	if n := len(log); n > 0 {
		last := log[n-1]
		if last.Type == typ && last.Summary == summary && last.Author == author {
			return log
		}
	}

	log = append(log, model.DecisionLogEntry{
		ID:      e.newID(),
		Type:    typ,
		Summary: summary,
		Author:  author,
		At:      at,
	})
	if len(log) > maxDecisionLog {
		log = append([]model.DecisionLogEntry(nil), log[len(log)-maxDecisionLog:]...)
	}
	return log
}

func stageTransitionSummary(from, to string) string {
	if from == "" {
		return fmt.Sprintf("Workflow started at stage %s", to)
	}
	return fmt.Sprintf("Stage moved from %s to %s", from, to)
}

// triggerSummary phrases the log entry for a derivation trigger. Refreshes
// are not logged.
func triggerSummary(trigger string) (string, bool) {
	switch trigger {
	case model.TriggerChatGeneration:
		return "Decision package generated from chat", true
	case model.TriggerRecomputeSameSnapshot:
		return "Recomputed on the same data snapshot", true
	case model.TriggerRecomputeRefreshedLive:
		return "Recomputed with refreshed live data", true
	default:
		return "", false
	}
}
