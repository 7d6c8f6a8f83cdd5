package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/tripflow/internal/workflow"
	"github.com/pitabwire/tripflow/model"
)

var (
	deriveTrigger string
	deriveMode    string
	deriveActor   string
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive workflow state for a trip document",
	Long: `Derive re-runs the workflow engine over the document's spec and decision
package and prints the updated trip. The existing workflow state supplies
continuity for locks, votes, tasks, and run history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTrip(cmd)
		if err != nil {
			return err
		}
		decision, err := requireDecision(t)
		if err != nil {
			return err
		}

		opts, err := deriveOptions(deriveTrigger, deriveMode, deriveActor)
		if err != nil {
			return err
		}

		derived := newEngine().DeriveContext(cmd.Context(), t.Spec, decision, nil, opts)
		t.Decision = &derived
		return writeJSON(cmd, t)
	},
}

func init() {
	deriveCmd.Flags().StringVar(&deriveTrigger, "trigger", model.TriggerWorkflowRefresh,
		"derivation trigger: chat_generation, workflow_refresh, or recompute")
	deriveCmd.Flags().StringVar(&deriveMode, "mode", model.RecomputeSameSnapshot,
		"recompute mode when --trigger=recompute: same_snapshot or refreshed_live")
	deriveCmd.Flags().StringVar(&deriveActor, "actor", "", "name recorded on decision log entries")
}

// deriveOptions maps CLI flags onto engine options.
func deriveOptions(trigger, mode, actor string) (workflow.DeriveOptions, error) {
	opts := workflow.DeriveOptions{Actor: actor}
	switch trigger {
	case model.TriggerChatGeneration, model.TriggerWorkflowRefresh:
		opts.Trigger = trigger
	case "recompute":
		if mode != model.RecomputeSameSnapshot && mode != model.RecomputeRefreshed {
			return opts, fmt.Errorf("unknown recompute mode %q", mode)
		}
		opts.Trigger = workflow.TriggerForMode(mode)
		opts.RecomputeMode = mode
	default:
		return opts, fmt.Errorf("unknown trigger %q", trigger)
	}
	return opts, nil
}
