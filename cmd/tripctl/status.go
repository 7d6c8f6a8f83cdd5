package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pitabwire/tripflow/internal/workflow"
	"github.com/pitabwire/tripflow/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stage table and booking readiness for a trip document",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTrip(cmd)
		if err != nil {
			return err
		}
		decision, err := requireDecision(t)
		if err != nil {
			return err
		}

		// Status is read-only: derive without touching the document when it
		// carries no workflow yet.
		if decision.Workflow == nil {
			decision = newEngine().DeriveContext(cmd.Context(), t.Spec, decision, nil,
				workflow.DeriveOptions{Trigger: model.TriggerWorkflowRefresh})
		}

		w, closeFn, err := output(cmd)
		if err != nil {
			return err
		}
		printStatus(w, t.ID, *decision.Workflow)
		return closeFn()
	},
}

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func stageMarker(status string) string {
	switch status {
	case model.StageStatusDone:
		return green("●")
	case model.StageStatusInProgress:
		return yellow("◐")
	case model.StageStatusBlocked:
		return red("✗")
	default:
		return gray("○")
	}
}

func printStatus(w io.Writer, tripID string, state model.WorkflowState) {
	title := "Trip status"
	if tripID != "" {
		title += ": " + tripID
	}
	fmt.Fprintf(w, "%s\n\n", bold(title))

	for _, st := range state.Stage.Stages {
		current := ""
		if st.ID == state.Stage.Current {
			current = bold(" <- current")
		}
		fmt.Fprintf(w, "  %s %-18s %-12s%s\n", stageMarker(st.Status), st.ID, st.Status, current)
		for _, b := range st.Blockers {
			fmt.Fprintf(w, "      %s\n", gray("- "+b))
		}
	}

	br := state.BookingReadiness
	fmt.Fprintln(w)
	if br.Ready {
		fmt.Fprintf(w, "Booking ready: %s\n", green("yes"))
	} else {
		fmt.Fprintf(w, "Booking ready: %s (%d remaining)\n", red("no"), br.RemainingCount)
	}
	for _, item := range br.Items {
		if item.Done {
			continue
		}
		label := item.Label
		if item.HardBlocker {
			label = red(label)
		}
		fmt.Fprintf(w, "  [ ] %s\n", label)
	}

	fmt.Fprintf(w, "\nReadiness score: %d\n", state.Operations.ReadinessScore)
}
