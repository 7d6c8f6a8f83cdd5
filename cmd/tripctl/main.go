// Package main is tripctl, an offline command-line runner for the workflow
// engine. It reads trip documents from JSON files, applies one engine
// operation, and writes the result to stdout or a file.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/tripflow/internal/workflow"
	"github.com/pitabwire/tripflow/model"
)

var (
	tripFile   string
	outputFile string
	noColor    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "tripctl",
	Short: "Run the trip workflow engine over local trip documents",
	Long: `tripctl derives and inspects trip workflow state offline.

A trip document is a JSON object with "spec" and "decision" members, the same
shape the API returns for GET /v1/trips/{tripId}.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&tripFile, "file", "f", "", "trip document to read (- for stdin)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write the result here instead of stdout")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine decisions to stderr")
	_ = rootCmd.MarkPersistentFlagRequired("file")

	rootCmd.AddCommand(deriveCmd, applyCmd, reportCmd, linksCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newEngine builds an engine whose logger honours --verbose.
func newEngine(opts ...workflow.Option) *workflow.Engine {
	logger := zap.NewNop()
	if verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	return workflow.NewEngine(append([]workflow.Option{workflow.WithLogger(logger)}, opts...)...)
}

// readTrip loads the trip document named by --file.
func readTrip(cmd *cobra.Command) (model.Trip, error) {
	var r io.Reader
	if tripFile == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(tripFile)
		if err != nil {
			return model.Trip{}, fmt.Errorf("open trip document: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var t model.Trip
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return model.Trip{}, fmt.Errorf("decode trip document: %w", err)
	}
	return t, nil
}

// requireDecision returns the trip's decision or an error naming the file.
func requireDecision(t model.Trip) (model.DecisionPackage, error) {
	if t.Decision == nil {
		return model.DecisionPackage{}, fmt.Errorf("%s has no decision package", tripFile)
	}
	return *t.Decision, nil
}

// output returns the destination for command results and a closer.
func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	if outputFile == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

// writeJSON writes v as indented JSON to the command's output.
func writeJSON(cmd *cobra.Command, v any) error {
	w, closeFn, err := output(cmd)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = closeFn()
		return fmt.Errorf("encode result: %w", err)
	}
	return closeFn()
}
