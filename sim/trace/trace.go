package trace

// TraceLevel controls the verbosity of run tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelPlans records every executed plan.
	TraceLevelPlans TraceLevel = "plans"
	// TraceLevelEvents records executed plans and every published event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelPlans:  true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel `yaml:"level" toml:"level"`
}

// Enabled reports whether anything is recorded.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelPlans || c.Level == TraceLevelEvents
}

// SimulationTrace collects plan and event records during a run.
type SimulationTrace struct {
	Config TraceConfig
	Plans  []PlanRecord
	Events []EventRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config: config,
		Plans:  make([]PlanRecord, 0),
		Events: make([]EventRecord, 0),
	}
}

// RecordPlan appends a plan record. No-op below TraceLevelPlans.
func (st *SimulationTrace) RecordPlan(record PlanRecord) {
	if !st.Config.Enabled() {
		return
	}
	st.Plans = append(st.Plans, record)
}

// RecordEvent appends an event record. No-op below TraceLevelEvents.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	if st.Config.Level != TraceLevelEvents {
		return
	}
	st.Events = append(st.Events, record)
}
