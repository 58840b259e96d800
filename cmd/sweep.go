package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/popsim/popsim/sim/epidemic"
)

var (
	replicates  int // Number of seeds in a sweep
	parallelism int // Concurrent runs in a sweep
)

// sweep runs the scenario once per seed in [first, first+n). Runs share one
// registry; each run's collectors carry a seed label. Results are in seed
// order.
func sweep(ctx context.Context, sc *epidemic.Scenario, first int64, n, parallel int, reg prometheus.Registerer) ([]*epidemic.Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("replicates must be >= 1, got %d", n)
	}
	if parallel < 1 {
		return nil, fmt.Errorf("parallel must be >= 1, got %d", parallel)
	}
	results := make([]*epidemic.Result, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			replica := *sc
			replica.Sim.Seed = first + int64(i)
			labeled := prometheus.WrapRegistererWith(prometheus.Labels{"seed": strconv.FormatInt(replica.Sim.Seed, 10)}, reg)
			res, err := epidemic.Run(&replica, labeled)
			if err != nil {
				return fmt.Errorf("seed %d: %w", replica.Sim.Seed, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runSweep(ctx context.Context, w io.Writer, first int64, n, parallel int, opts runOptions) ([]*epidemic.Result, error) {
	sc, err := loadScenario(opts)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Sweeping %d seeds from %d (%d at a time)", n, first, parallel)
	reg := prometheus.NewRegistry()
	results, err := sweep(ctx, sc, first, n, parallel, reg)
	if err != nil {
		return nil, err
	}
	printSweep(w, results)
	if opts.metricsPath != "" {
		if err := prometheus.WriteToTextfile(opts.metricsPath, reg); err != nil {
			return nil, fmt.Errorf("writing metrics: %w", err)
		}
	}
	return results, nil
}

// sweepCmd runs replicate seeds of one scenario
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a scenario over consecutive seeds",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		opts := flagOverrides(cmd)
		opts.seed = nil
		if _, err := runSweep(cmd.Context(), os.Stdout, seed, replicates, parallelism, opts); err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		logrus.Info("Sweep complete.")
	},
}
