package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/schd/sim/hooking"
)

// A ProgressBar counts the tasks of one kind that the hooked domains start
// and end. The total is unknown while the simulation runs, so it only grows.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// Func counts task starts and ends. Tasks of other kinds are ignored. An end
// without a start is ignored as well.
func (b *ProgressBar) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case hooking.HookPosTaskStart:
		if ctx.Item.(hooking.TaskStart).Kind != b.Kind {
			return
		}

		b.Lock()
		b.Total++
		b.InProgress++
		b.Unlock()
	case hooking.HookPosTaskEnd:
		b.Lock()
		if b.InProgress > 0 {
			b.InProgress--
			b.Finished++
		}
		b.Unlock()
	}
}

// Counts returns the finished and the in-progress counts.
func (b *ProgressBar) Counts() (finished, inProgress uint64) {
	b.Lock()
	defer b.Unlock()

	return b.Finished, b.InProgress
}
