package sim

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/popsim/popsim/sim/trace"
)

// Config groups the kernel settings for one run.
type Config struct {
	Seed int64 `yaml:"seed" toml:"seed"`
	// StartTime is the initial clock value. A continuation run starts at the
	// time its checkpoint was taken.
	StartTime float64 `yaml:"start_time" toml:"start_time"`
	// Horizon stops the run before the first plan scheduled after it. Those
	// plans stay pending and can be collected. Nil runs until no active plan
	// remains.
	Horizon *float64          `yaml:"horizon" toml:"horizon"`
	Trace   trace.TraceConfig `yaml:"trace" toml:"trace"`

	// Streams are the random stream positions a continuation run resumes from.
	Streams []StreamPosition `yaml:"-" toml:"-"`
	// RunID labels log lines and checkpoints. A random id is generated when empty.
	RunID string `yaml:"-" toml:"-"`
	// Registerer receives the run's Prometheus collectors. May be nil.
	Registerer prometheus.Registerer `yaml:"-" toml:"-"`
}

// Validate checks that times are finite and consistent.
func (c Config) Validate() error {
	if math.IsNaN(c.StartTime) || math.IsInf(c.StartTime, 0) {
		return fmt.Errorf("start_time must be finite, got %v", c.StartTime)
	}
	if h := c.Horizon; h != nil {
		if math.IsNaN(*h) || math.IsInf(*h, -1) {
			return fmt.Errorf("horizon must be a number, got %v", *h)
		}
		if *h < c.StartTime {
			return fmt.Errorf("horizon %v precedes start_time %v", *h, c.StartTime)
		}
	}
	if !trace.IsValidTraceLevel(string(c.Trace.Level)) {
		return fmt.Errorf("unknown trace level %q", c.Trace.Level)
	}
	return nil
}

// Until returns a horizon of t.
func Until(t float64) *float64 { return &t }

// pastHorizon reports whether a plan at t is held back by the horizon.
func (c Config) pastHorizon(t float64) bool {
	return c.Horizon != nil && t > *c.Horizon
}
