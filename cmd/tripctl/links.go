package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitabwire/tripflow/internal/linkhealth"
	"github.com/pitabwire/tripflow/internal/workflow"
	"github.com/pitabwire/tripflow/model"
)

var (
	linksTimeout     time.Duration
	linksConcurrency int
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Probe itinerary links and refresh the workflow",
	Long: `Links checks every URL the decision package references, stores the
results under integrations.link_health, and re-derives the workflow so stage
blockers and booking readiness reflect broken links.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTrip(cmd)
		if err != nil {
			return err
		}
		decision, err := requireDecision(t)
		if err != nil {
			return err
		}

		prober := linkhealth.NewProber(linkhealth.Config{
			Timeout:        linksTimeout,
			MaxConcurrency: linksConcurrency,
		})
		engine := newEngine(workflow.WithProber(prober))

		probed := engine.ValidateLinks(cmd.Context(), decision)
		derived := engine.DeriveContext(cmd.Context(), t.Spec, probed, nil,
			workflow.DeriveOptions{Trigger: model.TriggerWorkflowRefresh})

		broken := 0
		for _, r := range derived.Workflow.Integrations.LinkHealth.Records {
			if r.Status != model.LinkOK {
				broken++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", r.Status, r.URL)
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d links checked, %d need attention\n",
			len(derived.Workflow.Integrations.LinkHealth.Records), broken)

		t.Decision = &derived
		return writeJSON(cmd, t)
	},
}

func init() {
	linksCmd.Flags().DurationVar(&linksTimeout, "timeout", 5*time.Second, "per-link probe timeout")
	linksCmd.Flags().IntVar(&linksConcurrency, "concurrency", 4, "maximum concurrent probes")
}
