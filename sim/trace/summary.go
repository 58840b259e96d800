package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	PlansExecuted    int
	PassivePlans     int
	EventsPublished  int
	NestedEvents     int
	MaxDepth         int
	LastPlanTime     float64
	KindDistribution map[string]int // event kind → count of published events
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		KindDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.PlansExecuted = len(st.Plans)
	for _, p := range st.Plans {
		if p.Passive {
			summary.PassivePlans++
		}
		if p.Time > summary.LastPlanTime {
			summary.LastPlanTime = p.Time
		}
	}

	summary.EventsPublished = len(st.Events)
	for _, e := range st.Events {
		summary.KindDistribution[e.Kind]++
		if e.Depth > 0 {
			summary.NestedEvents++
		}
		if e.Depth > summary.MaxDepth {
			summary.MaxDepth = e.Depth
		}
	}

	return summary
}
