// Package model describes the scheduling model that a simulation runs: the
// threads, the tasks they run, the execution units and the common
// resources.
package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/timing"
)

// StartEvent is the event that fires once at time zero.
const StartEvent = "__start__"

// Model is a complete scheduling model.
type Model struct {
	Threads   []Thread       `json:"threads" yaml:"threads"`
	Tasks     []Task         `json:"tasks" yaml:"tasks"`
	Executors []Executor     `json:"executors" yaml:"executors"`
	Common    []Resource     `json:"common" yaml:"common"`
	Time      TimeConfig     `json:"time" yaml:"time"`
	Report    report.Config  `json:"report" yaml:"report"`
	Trace     TraceConfig    `json:"trace" yaml:"trace"`
	Dump      DumpConfig     `json:"dump" yaml:"dump"`
	Monitor   MonitorConfig  `json:"monitor" yaml:"monitor"`
	Channels  ChannelsConfig `json:"channels" yaml:"channels"`
}

// Thread is an independently sequenced flow of tasks and events.
type Thread struct {
	Name     string   `json:"name" yaml:"name"`
	Priority float64  `json:"priority" yaml:"priority"`
	Start    []string `json:"start" yaml:"start"`
	Sequence []Step   `json:"sequence" yaml:"sequence"`
}

// Step is either a task to run or an event to raise.
type Step struct {
	Task  *TaskStep `json:"task,omitempty" yaml:"task,omitempty"`
	Event string    `json:"event,omitempty" yaml:"event,omitempty"`
}

// IsEvent tells if the step raises an event.
func (s Step) IsEvent() bool {
	return s.Task == nil
}

// TaskStep runs a task with a parameter payload. The payload must carry an
// "id" field.
type TaskStep struct {
	Run   string  `json:"run" yaml:"run"`
	Param msg.Doc `json:"param" yaml:"param"`
}

// Task is a named unit of work. It needs one execution unit per run option,
// all at the same time.
type Task struct {
	Name    string      `json:"name" yaml:"name"`
	Runtime Duration    `json:"runtime" yaml:"runtime"`
	Exec    []RunOption `json:"exec" yaml:"exec"`
}

// RunOption selects an execution unit by pattern and lists the demands on
// common resources while the task runs there.
type RunOption struct {
	Run string  `json:"run" yaml:"run"`
	Use []Use   `json:"use" yaml:"use"`
	Opt msg.Doc `json:"opt" yaml:"opt"`
}

// Use is a demand on a common resource.
type Use struct {
	Res    string  `json:"res" yaml:"res"`
	Demand float64 `json:"demand" yaml:"demand"`
}

// Resources returns the distinct resources of all the run options, in the
// order they are first used.
func (t Task) Resources() []string {
	var out []string

	seen := map[string]bool{}

	for _, opt := range t.Exec {
		for _, u := range opt.Use {
			if !seen[u.Res] {
				seen[u.Res] = true
				out = append(out, u.Res)
			}
		}
	}

	return out
}

// Demands returns the demand vector of a run option over Resources. A
// resource that the option does not use has a demand of 0.
func (t Task) Demands(option int) []msg.Demand {
	resources := t.Resources()
	out := make([]msg.Demand, len(resources))

	for i, r := range resources {
		out[i].Res = r

		for _, u := range t.Exec[option].Use {
			if u.Res == r {
				out[i].Demand = u.Demand
			}
		}
	}

	return out
}

// Executor is an execution unit.
type Executor struct {
	Name string `json:"name" yaml:"name"`

	// Common lists the resources the unit may use. Nil means all of them.
	Common []string `json:"common,omitempty" yaml:"common,omitempty"`
}

// Uses tells if the executor may use a resource.
func (e Executor) Uses(res string) bool {
	if e.Common == nil {
		return true
	}

	for _, r := range e.Common {
		if r == res {
			return true
		}
	}

	return false
}

// Resource is a common resource.
type Resource struct {
	Name     string  `json:"name" yaml:"name"`
	Capacity float64 `json:"capacity" yaml:"capacity"`
}

// TimeConfig bounds the simulated time.
type TimeConfig struct {
	// End stops the simulation. Zero runs until nothing is left to do.
	End Duration `json:"end" yaml:"end"`
}

// TraceConfig controls the signal and job recording.
type TraceConfig struct {
	// DB is the database file name without extension. Empty disables
	// tracing.
	DB string `json:"db" yaml:"db"`
}

// DumpConfig controls the message dump.
type DumpConfig struct {
	// File is the dump file. Empty disables the dump.
	File string `json:"file" yaml:"file"`

	// Mask selects the endpoints to dump. Empty means all.
	Mask string `json:"mask" yaml:"mask"`
}

// MonitorConfig controls the HTTP monitor.
type MonitorConfig struct {
	Enable      bool `json:"enable" yaml:"enable"`
	Port        int  `json:"port" yaml:"port"`
	OpenBrowser bool `json:"open_browser" yaml:"open_browser"`
}

// ChannelsConfig sizes the input ports.
type ChannelsConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

// Duration is a simulated duration in seconds. In a model file it is either
// a number of seconds or a string with a unit, such as "10 ns".
type Duration timing.VTimeInSec

// Seconds returns the duration as simulated time.
func (d Duration) Seconds() timing.VTimeInSec {
	return timing.VTimeInSec(d)
}

// UnmarshalJSON accepts numbers and strings with units.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}

	return d.set(f)
}

// UnmarshalYAML accepts numbers and strings with units.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: invalid duration", value.Line)
	}

	if value.Tag == "!!str" {
		return d.parse(value.Value)
	}

	var f float64
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
	}

	return d.set(f)
}

func (d *Duration) parse(s string) error {
	t, err := timing.ParseTime(s)
	if err != nil {
		return err
	}

	*d = Duration(t)

	return nil
}

func (d *Duration) set(f float64) error {
	if f < 0 {
		return fmt.Errorf("negative duration %g", f)
	}

	*d = Duration(f)

	return nil
}

// MarshalJSON writes the duration as a string with a unit.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(timing.FormatTime(d.Seconds()))
}

// MarshalYAML writes the duration as a string with a unit.
func (d Duration) MarshalYAML() (any, error) {
	return timing.FormatTime(d.Seconds()), nil
}
