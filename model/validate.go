package model

import (
	"regexp"

	"github.com/sarchlab/schd/andlist"
	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/naming"
)

type validator struct {
	m    *Model
	errs report.Errors

	tasks     map[string]*Task
	executors map[string]*Executor
	resources map[string]*Resource
}

func (v *validator) fail(component, key, format string, args ...any) {
	v.errs = append(v.errs, report.ModelErrorf(component, key, format, args...))
}

func (v *validator) compile(component, pattern string) *regexp.Regexp {
	re, err := andlist.Compile(pattern)
	if err != nil {
		v.fail(component, pattern, "invalid pattern: %v", err)
		return nil
	}

	return re
}

// Validate checks the model for consistency. It reports every problem it
// finds, not only the first one.
func (m *Model) Validate() error {
	v := &validator{
		m:         m,
		tasks:     map[string]*Task{},
		executors: map[string]*Executor{},
		resources: map[string]*Resource{},
	}

	v.checkResources()
	v.checkExecutors()
	v.checkTasks()
	v.checkThreads()
	v.checkIgnition()

	if m.Time.End < 0 {
		v.fail("time", "end", "negative end time")
	}

	if m.Channels.Capacity <= 0 {
		v.fail("channels", "capacity", "channel capacity must be positive, got %d",
			m.Channels.Capacity)
	}

	return v.errs.ErrOrNil()
}

func (v *validator) checkName(component, name string, seen map[string]bool) bool {
	switch {
	case name == "":
		v.fail(component, "", "missing name")
		return false
	case seen[name]:
		v.fail(component, name, "duplicate name")
		return false
	}

	seen[name] = true

	return true
}

func (v *validator) checkResources() {
	seen := map[string]bool{}

	for i := range v.m.Common {
		r := &v.m.Common[i]

		if !v.checkName("common", r.Name, seen) {
			continue
		}

		if !naming.IsValidName(r.Name) {
			v.fail("common", r.Name, "invalid resource name")
		}

		if r.Capacity <= 0 {
			v.fail("common", r.Name, "capacity must be positive, got %g", r.Capacity)
		}

		v.resources[r.Name] = r
	}
}

func (v *validator) checkExecutors() {
	if len(v.m.Executors) == 0 {
		v.fail("executors", "", "no execution unit")
	}

	seen := map[string]bool{}

	for i := range v.m.Executors {
		e := &v.m.Executors[i]

		if !v.checkName("executors", e.Name, seen) {
			continue
		}

		if !naming.IsValidName(e.Name) {
			v.fail("executors", e.Name, "invalid execution unit name")
		}

		for _, r := range e.Common {
			if _, ok := v.resources[r]; !ok {
				v.fail("executors", e.Name, "unknown common resource %s", r)
			}
		}

		v.executors[e.Name] = e
	}
}

func (v *validator) checkTasks() {
	seen := map[string]bool{}

	for i := range v.m.Tasks {
		t := &v.m.Tasks[i]

		if !v.checkName("tasks", t.Name, seen) {
			continue
		}

		v.tasks[t.Name] = t

		if len(t.Exec) == 0 {
			v.fail("tasks", t.Name, "task has no run option")
		}

		for j, opt := range t.Exec {
			v.checkRunOption(t, j, opt)
		}
	}
}

func (v *validator) checkRunOption(t *Task, idx int, opt RunOption) {
	re := v.compile("tasks", opt.Run)

	var matched []*Executor

	if re != nil {
		for i := range v.m.Executors {
			e := &v.m.Executors[i]
			if re.MatchString(e.Name) {
				matched = append(matched, e)
			}
		}

		if len(matched) == 0 {
			v.fail("tasks", t.Name, "run option %d: pattern %q matches no execution unit",
				idx, opt.Run)
		}
	}

	for _, u := range opt.Use {
		if u.Demand < 0 {
			v.fail("tasks", t.Name, "negative demand %g on %s", u.Demand, u.Res)
		}

		if _, ok := v.resources[u.Res]; !ok {
			v.fail("tasks", t.Name, "unknown common resource %s", u.Res)
		}
	}

	// Every unit that may run the task gets the whole resource list of
	// the task, so each of them must be able to use all of it.
	for _, e := range matched {
		for _, r := range t.Resources() {
			if _, ok := v.resources[r]; ok && !e.Uses(r) {
				v.fail("tasks", t.Name, "execution unit %s does not declare resource %s",
					e.Name, r)
			}
		}
	}
}

func (v *validator) checkThreads() {
	if len(v.m.Threads) == 0 {
		v.fail("threads", "", "no thread")
	}

	seen := map[string]bool{}

	for i := range v.m.Threads {
		th := &v.m.Threads[i]

		if !v.checkName("threads", th.Name, seen) {
			continue
		}

		if len(th.Start) == 0 {
			v.fail("threads", th.Name, "thread has no start event")
		}

		for _, p := range th.Start {
			v.compile("threads", p)
		}

		if len(th.Sequence) == 0 {
			v.fail("threads", th.Name, "empty sequence")
		}

		v.checkSequence(th)
	}
}

func (v *validator) checkSequence(th *Thread) {
	prevIsEvent := true

	for i, s := range th.Sequence {
		switch {
		case s.Task != nil && s.Event != "":
			v.fail("threads", th.Name, "step %d has both a task and an event", i)
			continue
		case s.Task == nil && s.Event == "":
			v.fail("threads", th.Name, "step %d has neither a task nor an event", i)
			continue
		case s.Task == nil:
			if prevIsEvent {
				v.fail("threads", th.Name,
					"event %s at step %d does not follow a task", s.Event, i)
			}

			prevIsEvent = true

			continue
		}

		prevIsEvent = false

		if _, ok := v.tasks[s.Task.Run]; !ok {
			v.fail("threads", th.Name, "unknown task %s at step %d", s.Task.Run, i)
		}

		if _, err := msg.ParamID(s.Task.Param); err != nil {
			v.fail("threads", th.Name, "step %d: %v", i, err)
		}
	}
}

// checkIgnition makes sure every start pattern can match an event that may
// fire: the start event or an event raised by some thread.
func (v *validator) checkIgnition() {
	events := []string{StartEvent}

	for _, th := range v.m.Threads {
		for _, s := range th.Sequence {
			if s.Task == nil && s.Event != "" {
				events = append(events, s.Event)
			}
		}
	}

	for _, th := range v.m.Threads {
		for _, p := range th.Start {
			re, err := andlist.Compile(p)
			if err != nil {
				continue
			}

			found := false

			for _, e := range events {
				if re.MatchString(e) {
					found = true
					break
				}
			}

			if !found {
				v.fail("threads", th.Name, "unresolved ignition event %s", p)
			}
		}
	}
}

// Events returns the names of every event that may fire, starting with
// StartEvent.
func (m *Model) Events() []string {
	out := []string{StartEvent}
	seen := map[string]bool{StartEvent: true}

	for _, th := range m.Threads {
		for _, s := range th.Sequence {
			if s.Task == nil && s.Event != "" && !seen[s.Event] {
				seen[s.Event] = true
				out = append(out, s.Event)
			}
		}
	}

	return out
}
