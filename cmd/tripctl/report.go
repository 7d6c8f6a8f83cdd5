package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var reportFormat string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the snapshot report for a trip document",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTrip(cmd)
		if err != nil {
			return err
		}
		decision, err := requireDecision(t)
		if err != nil {
			return err
		}

		report := newEngine().BuildSnapshotReport(t.Spec, decision)
		switch reportFormat {
		case "json":
			return writeJSON(cmd, report)
		case "markdown", "md":
			w, closeFn, err := output(cmd)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(w, report.Markdown); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		default:
			return fmt.Errorf("unknown report format %q", reportFormat)
		}
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "markdown", "report format: markdown or json")
}
