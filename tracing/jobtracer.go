package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/schd/datarecording"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/timing"
)

// Tables written by JobTracer.
const (
	JobTable = "job"
	TagTable = "job_tag"
)

// JobRecord is a row of JobTable. Unit is the domain that ran the task and
// Job is what it ran.
type JobRecord struct {
	ID        string
	Kind      string
	Unit      string
	Job       string
	StartTime float64
	EndTime   float64
}

type tagEntry struct {
	Time   float64
	JobID  string
	Unit   string
	What   string
	Detail string
}

// JobTracer records every task that its domains report, together with the
// tags attached to it.
type JobTracer struct {
	lock       sync.Mutex
	timeTeller timing.TimeTeller
	recorder   datarecording.DataRecorder

	inflight map[string]JobRecord
}

// NewJobTracer creates a JobTracer and its tables.
func NewJobTracer(
	timeTeller timing.TimeTeller,
	recorder datarecording.DataRecorder,
) *JobTracer {
	recorder.CreateTable(JobTable, JobRecord{})
	recorder.CreateTable(TagTable, tagEntry{})

	return &JobTracer{
		timeTeller: timeTeller,
		recorder:   recorder,
		inflight:   make(map[string]JobRecord),
	}
}

// Func records task starts, tags and ends.
func (t *JobTracer) Func(ctx hooking.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.timeTeller.Now()

	switch ctx.Pos {
	case hooking.HookPosTaskStart:
		ts := ctx.Item.(hooking.TaskStart)
		t.inflight[ts.ID] = JobRecord{
			ID:        ts.ID,
			Kind:      ts.Kind,
			Unit:      ts.Where,
			Job:       ts.What,
			StartTime: now,
		}
	case hooking.HookPosTaskTag:
		tag := ctx.Item.(hooking.TaskTag)
		t.recorder.InsertData(TagTable, tagEntry{
			Time:   now,
			JobID:  tag.TaskID,
			Unit:   tag.Where,
			What:   tag.What,
			Detail: tag.Detail,
		})
	case hooking.HookPosTaskEnd:
		te := ctx.Item.(hooking.TaskEnd)

		entry, ok := t.inflight[te.ID]
		if !ok {
			return
		}

		delete(t.inflight, te.ID)

		entry.EndTime = now
		t.recorder.InsertData(JobTable, entry)
	}
}

// NumInflight returns the number of jobs that started but not ended.
func (t *JobTracer) NumInflight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}

// Terminate records the unfinished jobs as ending now.
func (t *JobTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.timeTeller.Now()

	ids := make([]string, 0, len(t.inflight))
	for id := range t.inflight {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		entry := t.inflight[id]
		entry.EndTime = now
		t.recorder.InsertData(JobTable, entry)
		delete(t.inflight, id)
	}

	t.recorder.Flush()
}
