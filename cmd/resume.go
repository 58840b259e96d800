package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/popsim/popsim/sim/epidemic"
)

var resumeFrom string // Checkpoint file the continuation starts from

// resumeScenario continues the checkpoint at from. A nil until runs to
// completion.
func resumeScenario(w io.Writer, from string, until *float64, opts runOptions) (*epidemic.Result, error) {
	if from == "" {
		return nil, fmt.Errorf("no checkpoint given")
	}
	sc, err := loadScenario(opts)
	if err != nil {
		return nil, err
	}
	cp, err := epidemic.LoadCheckpoint(from)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Resuming run %s at t=%v with %d people and %d plans", cp.RunID, cp.Time, len(cp.Persons), len(cp.Plans))
	reg := prometheus.NewRegistry()
	res, err := epidemic.Resume(sc, cp, until, reg)
	if err != nil {
		return nil, err
	}
	return res, finish(w, res, reg, opts)
}

// resumeCmd continues a run from a checkpoint
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue a run from a checkpoint",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		opts := flagOverrides(cmd)
		// --until is the continuation horizon, not a scenario override.
		until := opts.horizon
		opts.horizon = nil
		if _, err := resumeScenario(os.Stdout, resumeFrom, until, opts); err != nil {
			logrus.Fatalf("Resume failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}
