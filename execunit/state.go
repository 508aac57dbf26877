package execunit

import "fmt"

// State is the connection state between a unit and one common resource.
type State int

// The connection states.
const (
	Idle State = iota
	WaitConnect
	Connected
	WaitDisconnect
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case WaitConnect:
		return "WaitConnect"
	case Connected:
		return "Connected"
	case WaitDisconnect:
		return "WaitDisconnect"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// resource is what a unit knows about one common resource.
type resource struct {
	name     string
	capacity float64
	state    State

	// Reported by the resource.
	resDemand float64
	resLoad   float64

	// Requested by the planner and currently advertised to the resource.
	planDemand float64
	execDemand float64
}

func (r *resource) clear() {
	r.resDemand = 0
	r.resLoad = 0
	r.planDemand = 0
	r.execDemand = 0
}

// ResourceStatus is a snapshot of a resource record.
type ResourceStatus struct {
	Name       string
	Capacity   float64
	State      State
	ResDemand  float64
	ResLoad    float64
	PlanDemand float64
	ExecDemand float64
}

func (r *resource) status() ResourceStatus {
	return ResourceStatus{
		Name:       r.name,
		Capacity:   r.capacity,
		State:      r.state,
		ResDemand:  r.resDemand,
		ResLoad:    r.resLoad,
		PlanDemand: r.planDemand,
		ExecDemand: r.execDemand,
	}
}
