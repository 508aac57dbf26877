package simulation

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sarchlab/schd/execunit"
	"github.com/sarchlab/schd/sim/timing"
)

// ThreadSummary tells how often a thread ran.
type ThreadSummary struct {
	Name  string
	Runs  uint64
	State string
}

// TaskSummary describes the latency of a task, from dispatch to the
// completion of its last unit.
type TaskSummary struct {
	Name   string
	Count  int
	Mean   float64
	StdDev float64
	P95    float64
}

// UnitSummary describes how busy an execution unit was.
type UnitSummary struct {
	Name        string
	Jobs        uint64
	BusyTime    float64
	Utilization float64
	Rescales    uint64
}

// Summary is the outcome of a simulation.
type Summary struct {
	EndTime      timing.VTimeInSec
	Threads      []ThreadSummary
	Tasks        []TaskSummary
	Units        []UnitSummary
	RegistrySize int
}

// Summary collects the statistics of the simulation.
func (s *Simulation) Summary() Summary {
	sum := Summary{
		EndTime:      s.engine.Now(),
		RegistrySize: s.planner.RegistrySize(),
	}

	for _, th := range s.planner.Threads() {
		sum.Threads = append(sum.Threads, ThreadSummary{
			Name:  th.Name,
			Runs:  th.Runs,
			State: th.State.String(),
		})
	}

	latencies := s.planner.Latencies()

	names := make([]string, 0, len(latencies))
	for name := range latencies {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		sum.Tasks = append(sum.Tasks, summarizeTask(name, latencies[name]))
	}

	for _, name := range s.unitNames() {
		u := s.unitIndex[name]
		busy := s.busy[name].BusyTime()

		us := UnitSummary{
			Name:     name,
			Jobs:     u.NumJobs(),
			BusyTime: busy,
			Rescales: s.tags.GetTagCountAt(execunit.ContentionTag, name),
		}

		if sum.EndTime > 0 {
			us.Utilization = busy / sum.EndTime
		}

		sum.Units = append(sum.Units, us)
	}

	return sum
}

func summarizeTask(name string, latencies []float64) TaskSummary {
	sorted := append([]float64(nil), latencies...)
	sort.Float64s(sorted)

	ts := TaskSummary{
		Name:  name,
		Count: len(sorted),
	}

	if len(sorted) == 0 {
		return ts
	}

	ts.Mean = stat.Mean(sorted, nil)
	ts.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)

	if len(sorted) > 1 {
		ts.StdDev = stat.StdDev(sorted, nil)
	}

	return ts
}

// Print writes the summary as plain text.
func (sum Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "end time: %s\n", timing.FormatTime(sum.EndTime))
	fmt.Fprintf(w, "event registry: %d\n", sum.RegistrySize)

	fmt.Fprintln(w, "threads:")

	for _, t := range sum.Threads {
		fmt.Fprintf(w, "  %-16s runs=%d state=%s\n", t.Name, t.Runs, t.State)
	}

	fmt.Fprintln(w, "tasks:")

	for _, t := range sum.Tasks {
		fmt.Fprintf(w, "  %-16s n=%d mean=%s stddev=%s p95=%s\n",
			t.Name, t.Count,
			timing.FormatTime(t.Mean),
			timing.FormatTime(t.StdDev),
			timing.FormatTime(t.P95))
	}

	fmt.Fprintln(w, "units:")

	for _, u := range sum.Units {
		fmt.Fprintf(w, "  %-16s jobs=%d busy=%s util=%.1f%% rescales=%d\n",
			u.Name, u.Jobs, timing.FormatTime(u.BusyTime),
			u.Utilization*100, u.Rescales)
	}
}
