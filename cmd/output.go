package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/popsim/popsim/sim/epidemic"
	"github.com/popsim/popsim/sim/trace"
)

// printResult writes the run summary, the census reports and the kernel
// metrics.
func printResult(w io.Writer, res *epidemic.Result) {
	fmt.Fprintf(w, "=== Run %s (seed %d) ===\n", res.RunID, res.Seed)
	fmt.Fprintf(w, "Ended at t=%.4f\n", res.EndTime)
	if len(res.Reports) > 0 {
		fmt.Fprintf(w, "%10s %10s %10s %10s %10s\n", "time", "S", "I", "R", "N")
		for _, r := range res.Reports {
			fmt.Fprintf(w, "%10.2f %10d %10d %10d %10d\n", r.Time, r.Susceptible, r.Infectious, r.Recovered, r.Population)
		}
	}
	f := res.Final
	fmt.Fprintf(w, "Final: S=%d I=%d R=%d N=%d\n", f.Susceptible, f.Infectious, f.Recovered, f.Population)
	t := res.Tally
	fmt.Fprintf(w, "Infections: %d (transmissions %d, in households %d)\n", t.Infections, t.Transmissions, t.HouseholdTransmissions)
	fmt.Fprintf(w, "Recoveries: %d  Deaths: %d  Vaccinations: %d  Arrivals: %d\n", t.Recoveries, t.Deaths, t.Vaccinations, t.Arrivals)
	res.Metrics.Print(w)
	if res.Trace != nil && res.Trace.Config.Enabled() {
		s := trace.Summarize(res.Trace)
		fmt.Fprintf(w, "Trace: %d plans (%d passive), %d events, max depth %d\n",
			s.PlansExecuted, s.PassivePlans, s.EventsPublished, s.MaxDepth)
	}
}

// printSweep writes one line per seed plus attack rate statistics.
func printSweep(w io.Writer, results []*epidemic.Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Seed < results[j].Seed })
	fmt.Fprintf(w, "%8s %12s %12s %10s %10s\n", "seed", "end", "infections", "deaths", "attack")
	rates := make([]float64, 0, len(results))
	for _, res := range results {
		rate := attackRate(res)
		rates = append(rates, rate)
		fmt.Fprintf(w, "%8d %12.2f %12d %10d %9.1f%%\n", res.Seed, res.EndTime, res.Tally.Infections, res.Tally.Deaths, 100*rate)
	}
	if len(results) > 0 {
		fmt.Fprintf(w, "Mean attack rate: %.1f%% (median %.1f%%, p90 %.1f%%)\n",
			100*mean(rates), 100*percentile(rates, 50), 100*percentile(rates, 90))
	}
}

// attackRate is the share of everyone who ever lived in the run that was
// infected.
func attackRate(res *epidemic.Result) float64 {
	everyone := res.Final.Population + res.Tally.Deaths
	if everyone == 0 {
		return 0
	}
	return float64(res.Tally.Infections) / float64(everyone)
}
