package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tripflow/model"
)

func TestDeriveAssumptions_mergesFourSources(t *testing.T) {
	spec := testSpec()
	spec.Extraction.PendingAssumptions = []model.AssumptionRecord{{Field: "group.size", Summary: "Assume four skiers"}}
	spec.Extraction.AcceptedAssumptions = []model.AssumptionRecord{{ID: "a-7", Summary: "Flying from SFO"}}
	spec.MissingFields = []string{"Budget Target"}

	q := deriveAssumptions(spec, testDecision(), model.AssumptionQueue{})

	var ids []string
	for _, item := range q.Queue {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{
		"pending:group.size",
		"accepted:a-7",
		"missing:budget-target",
		"budget:it-alta:0",
		"budget:it-alta:1",
	}, ids)
	assert.Equal(t, 5, q.Counts.Pending)
	assert.Equal(t, "it-alta", q.Queue[3].ItineraryID)
	assert.Equal(t, model.AssumptionSourceBudget, q.Queue[3].Source)
}

func TestDeriveAssumptions_statusFromPreviousQueue(t *testing.T) {
	prev := model.AssumptionQueue{Queue: []model.AssumptionItem{
		{ID: "budget:it-alta:0", Status: model.AssumptionDismissed},
		{ID: "budget:it-alta:1", Status: "bogus"},
		{ID: "gone", Status: model.AssumptionAccepted},
	}}

	q := deriveAssumptions(testSpec(), testDecision(), prev)

	require.Len(t, q.Queue, 2)
	assert.Equal(t, model.AssumptionDismissed, q.Queue[0].Status)
	assert.Equal(t, model.AssumptionPending, q.Queue[1].Status)
	assert.Equal(t, model.AssumptionCounts{Pending: 1, Dismissed: 1}, q.Counts)
}

func TestDeriveAssumptions_dedupesAndCaps(t *testing.T) {
	spec := testSpec()
	for i := 0; i < 50; i++ {
		spec.Extraction.PendingAssumptions = append(spec.Extraction.PendingAssumptions,
			model.AssumptionRecord{ID: fmt.Sprintf("p-%d", i%45), Summary: "x"})
	}

	q := deriveAssumptions(spec, model.DecisionPackage{}, model.AssumptionQueue{})
	assert.Len(t, q.Queue, maxAssumptions)
	assert.Equal(t, maxAssumptions, q.Counts.Pending)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "budget-target", slug("Budget  Target!"))
	assert.Equal(t, "dates.start", slug("dates.start"))
	assert.Equal(t, "", slug("???"))
}
