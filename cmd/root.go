package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/epidemic"
	"github.com/popsim/popsim/sim/trace"
)

var (
	scenarioPath   string  // Scenario file (YAML, or TOML by extension)
	seed           int64   // Overrides the scenario seed when set
	horizon        float64 // Overrides the scenario horizon when set
	logLevel       string  // Log verbosity level
	checkpointPath string  // Where to write the end-of-run checkpoint
	metricsPath    string  // Where to write Prometheus metrics in text format
	traceLevel     string  // Plan/event trace level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "popsim",
	Short: "Discrete-event simulator for agent populations",
}

// setLogLevel applies the --log flag.
func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runOptions collects what the run and resume commands need.
type runOptions struct {
	scenario       string
	seed           *int64
	horizon        *float64
	traceLevel     string
	checkpointPath string
	metricsPath    string
}

// loadScenario reads the scenario and applies command line overrides.
func loadScenario(opts runOptions) (*epidemic.Scenario, error) {
	if opts.scenario == "" {
		return nil, fmt.Errorf("no scenario file given")
	}
	sc, err := epidemic.LoadScenario(opts.scenario)
	if err != nil {
		return nil, err
	}
	if opts.seed != nil {
		sc.Sim.Seed = *opts.seed
	}
	if opts.horizon != nil {
		sc.Sim.Horizon = sim.Until(*opts.horizon)
	}
	if opts.traceLevel != "" {
		sc.Sim.Trace.Level = trace.TraceLevel(opts.traceLevel)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// finish reports a result and writes the requested output files.
func finish(w io.Writer, res *epidemic.Result, reg *prometheus.Registry, opts runOptions) error {
	printResult(w, res)
	if opts.checkpointPath != "" {
		if err := res.Checkpoint.Save(opts.checkpointPath); err != nil {
			return err
		}
		logrus.Infof("Checkpoint written to %s (%d pending plans)", opts.checkpointPath, len(res.Checkpoint.Plans))
	}
	if opts.metricsPath != "" {
		if err := prometheus.WriteToTextfile(opts.metricsPath, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

func runScenario(w io.Writer, opts runOptions) (*epidemic.Result, error) {
	sc, err := loadScenario(opts)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Starting scenario %s: population=%d, seed=%d, horizon=%s",
		opts.scenario, sc.Population, sc.Sim.Seed, describeHorizon(sc.Sim.Horizon))
	reg := prometheus.NewRegistry()
	res, err := epidemic.Run(sc, reg)
	if err != nil {
		return nil, err
	}
	return res, finish(w, res, reg, opts)
}

// describeHorizon formats an optional horizon for log lines.
func describeHorizon(h *float64) string {
	if h == nil {
		return "none"
	}
	return fmt.Sprintf("%v", *h)
}

// flagOverrides turns explicitly set flags into overrides, so an unset
// --seed keeps the scenario's seed and an explicit --horizon 0 stops at t=0.
func flagOverrides(cmd *cobra.Command) runOptions {
	opts := runOptions{
		scenario:       scenarioPath,
		traceLevel:     traceLevel,
		checkpointPath: checkpointPath,
		metricsPath:    metricsPath,
	}
	if cmd.Flags().Changed("seed") {
		opts.seed = &seed
	}
	if cmd.Flags().Changed("horizon") || cmd.Flags().Changed("until") {
		opts.horizon = &horizon
	}
	return opts
}

// runCmd executes a scenario from the start
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if _, err := runScenario(os.Stdout, flagOverrides(cmd)); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addScenarioFlags registers the flags shared by every simulating command.
func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario file (.yaml or .toml)")
	cmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.Flags().StringVar(&metricsPath, "metrics", "", "Write Prometheus metrics to this file")
	cmd.Flags().StringVar(&traceLevel, "trace-level", "", "Trace verbosity (none, plans, events)")
}

// init sets up CLI flags and subcommands
func init() {
	addScenarioFlags(runCmd)
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for random draws (overrides the scenario)")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Stop before plans after this time (overrides the scenario)")
	runCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Write a checkpoint at the end of the run")

	addScenarioFlags(resumeCmd)
	resumeCmd.Flags().StringVar(&resumeFrom, "from", "", "Checkpoint to resume from")
	resumeCmd.Flags().Float64Var(&horizon, "until", 0, "Horizon of the continuation (unset runs to completion)")
	resumeCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Write a checkpoint at the end of the continuation")

	addScenarioFlags(sweepCmd)
	sweepCmd.Flags().Int64Var(&seed, "seed", 42, "First seed of the sweep")
	sweepCmd.Flags().IntVar(&replicates, "replicates", 8, "Number of seeds to run")
	sweepCmd.Flags().IntVar(&parallelism, "parallel", 4, "Maximum concurrent runs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(sweepCmd)
}
