package simulation

import (
	"log"

	"github.com/rs/xid"

	"github.com/sarchlab/schd/cres"
	"github.com/sarchlab/schd/datarecording"
	"github.com/sarchlab/schd/dump"
	"github.com/sarchlab/schd/execunit"
	"github.com/sarchlab/schd/model"
	"github.com/sarchlab/schd/monitoring"
	"github.com/sarchlab/schd/planner"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/tracing"
	"github.com/sarchlab/schd/xbar"
)

// PlannerName is the endpoint name of the planner.
const PlannerName = "planner"

// The crossbars of the fabric.
const (
	PlanToExec = "PlanToExec"
	ExecToCres = "ExecToCres"
	CresToExec = "CresToExec"
	ExecToPlan = "ExecToPlan"
)

// Builder can be used to build a simulation.
type Builder struct {
	model       *model.Model
	reporter    *report.Reporter
	traceDB     string
	dumpFile    string
	dumpMask    string
	monitorOn   bool
	monitorPort int
	openBrowser bool
	eventLogger *log.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithModel sets the model to simulate. The trace, dump and monitor
// sections of the model are used unless the builder overrides them.
func (b Builder) WithModel(m *model.Model) Builder {
	b.model = m
	b.traceDB = m.Trace.DB
	b.dumpFile = m.Dump.File
	b.dumpMask = m.Dump.Mask
	b.monitorOn = m.Monitor.Enable
	b.monitorPort = m.Monitor.Port
	b.openBrowser = m.Monitor.OpenBrowser

	return b
}

// WithReporter sets the reporter. By default, one is created from the
// report section of the model.
func (b Builder) WithReporter(r *report.Reporter) Builder {
	b.reporter = r
	return b
}

// WithTraceDB sets the database that receives the signals and the jobs,
// without the file extension.
func (b Builder) WithTraceDB(path string) Builder {
	b.traceDB = path
	return b
}

// WithDump sets the dump file and the endpoint mask.
func (b Builder) WithDump(file, mask string) Builder {
	b.dumpFile = file
	b.dumpMask = mask

	return b
}

// WithMonitorPort turns the monitor on at the given port. Port 0 picks a
// random port.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithoutMonitoring turns the monitor off.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithEventLogger prints every event that the engine handles.
func (b Builder) WithEventLogger(l *log.Logger) Builder {
	b.eventLogger = l
	return b
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	if b.model == nil {
		panic("simulation needs a model")
	}

	if err := b.model.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		id:        xid.New().String(),
		model:     b.model,
		engine:    timing.NewSerialEngine(),
		unitIndex: make(map[string]*execunit.Comp),
		resIndex:  make(map[string]*cres.Comp),
		busy:      make(map[string]*hooking.BusyTimeTracer),
		tags:      hooking.NewTagCountTracer(),
	}

	if err := b.buildReporter(s); err != nil {
		return nil, err
	}

	if b.eventLogger != nil {
		s.engine.AcceptHook(timing.NewEventLogger(b.eventLogger))
	}

	b.buildFabric(s)
	b.buildTracers(s)

	if err := b.buildDump(s); err != nil {
		return nil, err
	}

	if err := b.buildMonitor(s); err != nil {
		return nil, err
	}

	return s, nil
}

func (b Builder) buildReporter(s *Simulation) error {
	s.reporter = b.reporter
	if s.reporter == nil {
		r, err := report.NewReporter(b.model.Report)
		if err != nil {
			return report.ModelErrorf("report", b.model.Report.Level, "%v", err)
		}

		s.reporter = r
	}

	s.reporter.SetClock(s.engine)

	return nil
}

func (b Builder) buildFabric(s *Simulation) {
	xb := xbar.MakeBuilder().WithClock(s.engine)
	s.toUnits = xb.Build(PlanToExec)
	s.toRes = xb.Build(ExecToCres)
	s.fromRes = xb.Build(CresToExec)
	s.toPlanner = xb.Build(ExecToPlan)

	portCapacity := b.model.Channels.Capacity

	s.planner = planner.MakeBuilder().
		WithEngine(s.engine).
		WithOutput(s.toUnits).
		WithReporter(s.reporter).
		WithModel(b.model).
		WithPortCapacity(portCapacity).
		Build(PlannerName)
	s.toUnits.PlugInSource(PlannerName)
	s.toPlanner.PlugIn(s.planner.InPort)

	for _, r := range b.model.Common {
		var units []string

		for _, e := range b.model.Executors {
			if e.Uses(r.Name) {
				units = append(units, e.Name)
			}
		}

		c := cres.MakeBuilder().
			WithEngine(s.engine).
			WithOutput(s.fromRes).
			WithReporter(s.reporter).
			WithCapacity(r.Capacity).
			WithUnits(units).
			WithPortCapacity(portCapacity).
			Build(r.Name)

		s.resources = append(s.resources, c)
		s.resIndex[r.Name] = c
		s.toRes.PlugIn(c.InPort)
		s.fromRes.PlugInSource(r.Name)
	}

	for _, e := range b.model.Executors {
		ub := execunit.MakeBuilder().
			WithEngine(s.engine).
			WithResourceOutput(s.toRes).
			WithPlannerOutput(s.toPlanner).
			WithPlanner(PlannerName).
			WithReporter(s.reporter).
			WithPortCapacity(portCapacity)

		for _, r := range b.model.Common {
			if e.Uses(r.Name) {
				ub = ub.WithResource(r.Name, r.Capacity)
			}
		}

		u := ub.Build(e.Name)

		s.units = append(s.units, u)
		s.unitIndex[e.Name] = u
		s.toUnits.PlugIn(u.DispatchPort)
		s.fromRes.PlugIn(u.DemandPort)
		s.toRes.PlugInSource(e.Name)
		s.toPlanner.PlugInSource(e.Name)
	}
}

func (b Builder) buildTracers(s *Simulation) {
	for _, u := range s.units {
		busy := hooking.NewBusyTimeTracer(s.engine, func(t hooking.TaskStart) bool {
			return t.Kind == execunit.JobKind
		})
		s.busy[u.Name()] = busy
		u.AcceptHook(busy)
		u.AcceptHook(s.tags)
	}

	if b.traceDB == "" {
		return
	}

	s.recorder = datarecording.New(b.traceDB)

	s.signalTracer = tracing.NewSignalTracer(s.engine, s.recorder)
	s.signalTracer.Register(s.planner)

	for _, u := range s.units {
		s.signalTracer.Register(u)
	}

	for _, r := range s.resources {
		s.signalTracer.Register(r)
	}

	s.engine.AcceptHook(s.signalTracer)

	s.jobTracer = tracing.NewJobTracer(s.engine, s.recorder)
	s.planner.AcceptHook(s.jobTracer)

	for _, u := range s.units {
		u.AcceptHook(s.jobTracer)
	}
}

func (b Builder) buildDump(s *Simulation) error {
	if b.dumpFile == "" {
		return nil
	}

	w, err := dump.Create(b.dumpFile, s.engine, b.dumpMask)
	if err != nil {
		return report.ModelErrorf("dump", b.dumpFile, "%v", err)
	}

	s.dump = w

	for _, xb := range s.crossbars() {
		xb.AcceptHook(w)
	}

	for _, p := range s.ports() {
		p.AcceptHook(w)
	}

	return nil
}

func (b Builder) buildMonitor(s *Simulation) error {
	if !b.monitorOn {
		return nil
	}

	m := monitoring.NewMonitor().WithPortNumber(b.monitorPort)
	m.RegisterEngine(s.engine)
	m.RegisterComponent(s.planner, s.planner.InPort)

	for _, u := range s.units {
		m.RegisterComponent(u, u.DispatchPort, u.DemandPort)
	}

	for _, r := range s.resources {
		m.RegisterComponent(r, r.InPort)
	}

	s.progress = m.CreateProgressBar("jobs", execunit.JobKind)

	for _, u := range s.units {
		u.AcceptHook(s.progress)
	}

	addr, err := m.StartServer()
	if err != nil {
		return err
	}

	s.monitor = m

	if b.openBrowser {
		if err := m.OpenBrowser(addr); err != nil {
			s.reporter.Warning("monitor", "cannot open the browser")
		}
	}

	return nil
}
