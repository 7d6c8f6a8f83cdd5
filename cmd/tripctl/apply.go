package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pitabwire/tripflow/model"
)

var (
	actionsFile string
	applyActor  string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a batch of workflow actions to a trip document",
	Long: `Apply reads a JSON array of actions (or an object with an "actions"
member) and applies them in order. Actions that reference missing state are
skipped; the per-action results are printed to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTrip(cmd)
		if err != nil {
			return err
		}
		decision, err := requireDecision(t)
		if err != nil {
			return err
		}
		actions, err := readActions(actionsFile)
		if err != nil {
			return err
		}
		for i := range actions {
			if actions[i].Actor == "" {
				actions[i].Actor = applyActor
			}
		}

		out, results, err := newEngine().ApplyActions(t.Spec, decision, actions)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Status == model.ActionSkipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "action %d (%s): skipped: %s\n", r.Index, r.Type, r.Reason)
				continue
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "action %d (%s): %s\n", r.Index, r.Type, r.Status)
		}

		t.Decision = &out
		return writeJSON(cmd, t)
	},
}

func init() {
	applyCmd.Flags().StringVarP(&actionsFile, "actions", "a", "", "JSON file holding the action batch")
	applyCmd.Flags().StringVar(&applyActor, "actor", "", "author for actions that do not name one")
	_ = applyCmd.MarkFlagRequired("actions")
}

// readActions accepts either a bare array or an {"actions": [...]} object.
func readActions(path string) ([]model.Action, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read actions: %w", err)
	}

	var batch struct {
		Actions []model.Action `json:"actions"`
	}
	if err := json.Unmarshal(raw, &batch.Actions); err == nil {
		return batch.Actions, nil
	}
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	return batch.Actions, nil
}
