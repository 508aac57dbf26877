package msg

import (
	"fmt"
	"strconv"

	"github.com/sarchlab/schd/sim/timing"
)

// Demand is the share of a common resource that a job asks for.
type Demand struct {
	Res    string
	Demand float64
}

// Dispatch is sent by the planner to an execution unit to start a job.
type Dispatch struct {
	Thread  string
	Task    string
	Runtime timing.VTimeInSec
	Param   Doc
	Common  []Demand
	Options Doc
}

// Doc renders the dispatch as a document.
func (d Dispatch) Doc() Doc {
	common := make([]Doc, len(d.Common))
	for i, c := range d.Common {
		common[i] = Doc{"res": c.Res, "demand": c.Demand}
	}

	doc := Doc{
		"thread":  d.Thread,
		"task":    d.Task,
		"runtime": d.Runtime,
		"param":   d.Param.Clone(),
		"common":  common,
	}

	if d.Options != nil {
		doc["options"] = d.Options.Clone()
	}

	return doc
}

// JobTag identifies the job as thread#task#param-id.
func (d Dispatch) JobTag() string {
	pid, _ := ParamID(d.Param)
	return JobTag(d.Thread, d.Task, pid)
}

// Hash identifies the job by the content of its dispatch. It is never 0, so
// 0 can mean idle.
func (d Dispatch) Hash() uint64 {
	h := d.Doc().Hash()
	if h == 0 {
		h = 1
	}

	return h
}

// ParseDispatch reads a dispatch document.
func ParseDispatch(doc Doc) (Dispatch, error) {
	var (
		d   Dispatch
		err error
	)

	if d.Thread, err = doc.String("thread"); err != nil {
		return d, err
	}

	if d.Task, err = doc.String("task"); err != nil {
		return d, err
	}

	if d.Runtime, err = doc.Float("runtime"); err != nil {
		return d, err
	}

	if d.Runtime < 0 {
		return d, fmt.Errorf("negative runtime %g", d.Runtime)
	}

	if d.Param, err = doc.Doc("param"); err != nil {
		return d, err
	}

	if _, err = ParamID(d.Param); err != nil {
		return d, err
	}

	common, err := doc.List("common")
	if err != nil {
		return d, err
	}

	for _, c := range common {
		var dm Demand

		if dm.Res, err = c.String("res"); err != nil {
			return d, err
		}

		if dm.Demand, err = c.Float("demand"); err != nil {
			return d, err
		}

		if dm.Demand < 0 {
			return d, fmt.Errorf("negative demand %g for %s", dm.Demand, dm.Res)
		}

		d.Common = append(d.Common, dm)
	}

	if doc.Has("options") {
		if d.Options, err = doc.Doc("options"); err != nil {
			return d, err
		}
	}

	return d, nil
}

// ParamID returns the "id" field of a parameter payload. Numbers are
// accepted and printed in their shortest form.
func ParamID(param Doc) (string, error) {
	v, ok := param["id"]
	if !ok {
		return "", fmt.Errorf("param has no %q field", "id")
	}

	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return "", fmt.Errorf("param id is %T", v)
		}

		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
}

// JobTag combines the names that identify a job.
func JobTag(thread, task, paramID string) string {
	return thread + "#" + task + "#" + paramID
}

// Link is exchanged between execution units and common resources. A unit
// reports whether it is connected and how much it demands. A resource
// answers with its aggregate demand and the connection state of the unit.
type Link struct {
	Connected bool
	Demand    float64
}

// Doc renders the link state as a document.
func (l Link) Doc() Doc {
	return Doc{
		"connected": l.Connected,
		"demand":    l.Demand,
	}
}

// ParseLink reads a link document.
func ParseLink(doc Doc) (Link, error) {
	var (
		l   Link
		err error
	)

	if l.Connected, err = doc.Bool("connected"); err != nil {
		return l, err
	}

	if l.Demand, err = doc.Float("demand"); err != nil {
		return l, err
	}

	return l, nil
}

// Completion tells the planner that the sender finished its job.
type Completion struct{}

// Doc renders the completion as a document.
func (Completion) Doc() Doc {
	return Doc{}
}
