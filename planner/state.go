package planner

import (
	"fmt"
	"regexp"

	"github.com/markphelps/optional"

	"github.com/sarchlab/schd/model"
	"github.com/sarchlab/schd/sim/timing"
)

// ThreadState is where a thread is in its sequence.
type ThreadState int

// The thread states.
const (
	Idle ThreadState = iota
	Waiting
	Running
)

func (s ThreadState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Waiting:
		return "Waiting"
	case Running:
		return "Running"
	default:
		return fmt.Sprintf("ThreadState(%d)", int(s))
	}
}

type thread struct {
	name     string
	priority float64
	start    []*regexp.Regexp
	sequence []model.Step

	state ThreadState
	index int

	// Entries that ignited the current run.
	ignition []uint64

	// Units running the current task.
	active []string

	runID     string
	runStart  timing.VTimeInSec
	taskStart timing.VTimeInSec
	runs      uint64
}

func (t *thread) step() model.Step {
	return t.sequence[t.index]
}

func (t *thread) removeActive(unit string) bool {
	for i, u := range t.active {
		if u == unit {
			t.active = append(t.active[:i], t.active[i+1:]...)
			return true
		}
	}

	return false
}

type task struct {
	model.Task
	patterns []*regexp.Regexp
}

type unit struct {
	name  string
	bound optional.String

	start timing.VTimeInSec
	end   timing.VTimeInSec
	jobs  uint64
}

// entry is a fired event in the registry.
type entry struct {
	id     uint64
	name   string
	time   timing.VTimeInSec
	raiser optional.String

	run      []string
	mismatch []string
	ended    int
}

func (e *entry) visibleTo(thread string) bool {
	if r, err := e.raiser.Get(); err == nil && r == thread {
		return false
	}

	return !contains(e.run, thread) && !contains(e.mismatch, thread)
}

// coverage is the number of threads that took a decision on the entry.
func (e *entry) coverage() int {
	n := len(e.run) + len(e.mismatch)
	if e.raiser.Present() {
		n++
	}

	return n
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}

	return false
}

// EntryStatus is a snapshot of a registry entry.
type EntryStatus struct {
	ID       uint64
	Name     string
	Time     timing.VTimeInSec
	Raiser   string
	Run      []string
	Mismatch []string
	Ended    int
}

func (e *entry) status() EntryStatus {
	return EntryStatus{
		ID:       e.id,
		Name:     e.name,
		Time:     e.time,
		Raiser:   e.raiser.OrElse(""),
		Run:      append([]string(nil), e.run...),
		Mismatch: append([]string(nil), e.mismatch...),
		Ended:    e.ended,
	}
}
