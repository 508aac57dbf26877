package hooking

import (
	"sort"
)

type interval struct {
	start, end float64
}

// BusyTimeTracer traces the time that a domain is processing a kind of task.
// If the task processing time overlaps, this tracer only considers one
// instance of the overlapped time.
type BusyTimeTracer struct {
	timeTeller TimeTeller
	filter     TaskFilter

	inflight map[string]float64
	finished []interval
	busyTime float64
	numTasks uint64
}

// NewBusyTimeTracer creates a new BusyTimeTracer
func NewBusyTimeTracer(
	timeTeller TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]float64),
	}
}

// Func records the start end of a task.
func (t *BusyTimeTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// BusyTime returns the total time has been spent on the traced tasks.
func (t *BusyTimeTracer) BusyTime() float64 {
	return t.busyTime
}

// NumTasks returns the number of completed tasks.
func (t *BusyTimeTracer) NumTasks() uint64 {
	return t.numTasks
}

// StartTask records the task start time
func (t *BusyTimeTracer) StartTask(taskStart TaskStart) {
	if t.filter != nil && !t.filter(taskStart) {
		return
	}

	t.inflight[taskStart.ID] = t.timeTeller.Now()
}

// EndTask records the end of the task
func (t *BusyTimeTracer) EndTask(taskEnd TaskEnd) {
	start, ok := t.inflight[taskEnd.ID]
	if !ok {
		return
	}

	delete(t.inflight, taskEnd.ID)

	t.numTasks++
	t.finished = append(t.finished,
		interval{start: start, end: t.timeTeller.Now()})
	t.collapse()
}

// TerminateAllTasks will mark all the in-flight tasks as completed now.
func (t *BusyTimeTracer) TerminateAllTasks() {
	now := t.timeTeller.Now()

	ids := make([]string, 0, len(t.inflight))
	for id := range t.inflight {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		t.finished = append(t.finished,
			interval{start: t.inflight[id], end: now})
		delete(t.inflight, id)
	}

	t.collapse()
}

// collapse merges the finished intervals into disjoint groups. A group that
// ends before the earliest in-flight task can no longer grow, so it is folded
// into busyTime. The other groups are kept.
func (t *BusyTimeTracer) collapse() {
	horizon, hasInflight := t.earliestInflight()

	sort.Slice(t.finished, func(i, j int) bool {
		return t.finished[i].start < t.finished[j].start
	})

	groups := make([]interval, 0, len(t.finished))

	for _, iv := range t.finished {
		n := len(groups)
		if n > 0 && iv.start <= groups[n-1].end {
			if iv.end > groups[n-1].end {
				groups[n-1].end = iv.end
			}

			continue
		}

		groups = append(groups, iv)
	}

	kept := groups[:0]

	for _, g := range groups {
		if hasInflight && g.end >= horizon {
			kept = append(kept, g)
			continue
		}

		t.busyTime += g.end - g.start
	}

	t.finished = kept
}

func (t *BusyTimeTracer) earliestInflight() (float64, bool) {
	found := false
	earliest := 0.0

	for _, start := range t.inflight {
		if !found || start < earliest {
			earliest = start
			found = true
		}
	}

	return earliest, found
}
