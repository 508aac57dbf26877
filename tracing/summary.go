package tracing

import (
	"context"
	"sort"

	"github.com/sarchlab/schd/datarecording"
)

// TaskUsage aggregates the recorded tasks of one name.
type TaskUsage struct {
	Name  string
	Count int
	Busy  float64
	First float64
	Last  float64
}

// TraceSummary is what a trace database says about a finished run.
type TraceSummary struct {
	// Units has one entry per execution unit, over the jobs it ran.
	Units []TaskUsage

	// Threads has one entry per thread, over its runs.
	Threads []TaskUsage

	// Tags counts the task tags by what they say, e.g. "contention".
	Tags map[string]int
}

type tagCount struct {
	What string
}

// Summarize reads the job tables of a trace database. Tasks of jobKind are
// grouped by the unit that ran them and tasks of threadKind by their name.
func Summarize(
	ctx context.Context,
	reader datarecording.DataReader,
	jobKind, threadKind string,
) (TraceSummary, error) {
	var s TraceSummary

	reader.MapTable(JobTable, JobRecord{})
	reader.MapTable(TagTable, tagCount{})

	jobs, _, err := datarecording.QueryAs[JobRecord](ctx, reader, JobTable,
		datarecording.QueryParams{
			Where:   "Kind = ?",
			Args:    []any{jobKind},
			OrderBy: "StartTime, ID",
		})
	if err != nil {
		return s, err
	}

	s.Units = usages(jobs, func(r JobRecord) string { return r.Unit })

	runs, _, err := datarecording.QueryAs[JobRecord](ctx, reader, JobTable,
		datarecording.QueryParams{
			Where:   "Kind = ?",
			Args:    []any{threadKind},
			OrderBy: "StartTime, ID",
		})
	if err != nil {
		return s, err
	}

	s.Threads = usages(runs, func(r JobRecord) string { return r.Job })

	tags, _, err := datarecording.QueryAs[tagCount](ctx, reader, TagTable,
		datarecording.QueryParams{})
	if err != nil {
		return s, err
	}

	s.Tags = make(map[string]int)
	for _, t := range tags {
		s.Tags[t.What]++
	}

	return s, nil
}

func usages(records []JobRecord, key func(JobRecord) string) []TaskUsage {
	byName := make(map[string]*TaskUsage)

	for _, r := range records {
		name := key(r)

		u, ok := byName[name]
		if !ok {
			u = &TaskUsage{Name: name, First: r.StartTime}
			byName[name] = u
		}

		u.Count++
		u.Busy += r.EndTime - r.StartTime

		if r.EndTime > u.Last {
			u.Last = r.EndTime
		}
	}

	list := make([]TaskUsage, 0, len(byName))
	for _, u := range byName {
		list = append(list, *u)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	return list
}
