// Package simulation wires a scheduling model into a runnable simulation:
// the planner, the execution units, the common resources and the crossbars
// between them, plus the tracers, the dump and the monitor.
package simulation

import (
	"errors"
	"sort"

	"go.uber.org/zap"

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

// A Simulation is a model ready to run.
type Simulation struct {
	id       string
	model    *model.Model
	engine   *timing.SerialEngine
	reporter *report.Reporter

	toUnits   *xbar.Crossbar
	toRes     *xbar.Crossbar
	fromRes   *xbar.Crossbar
	toPlanner *xbar.Crossbar

	planner   *planner.Comp
	units     []*execunit.Comp
	unitIndex map[string]*execunit.Comp
	resources []*cres.Comp
	resIndex  map[string]*cres.Comp

	recorder     datarecording.DataRecorder
	signalTracer *tracing.SignalTracer
	jobTracer    *tracing.JobTracer
	busy         map[string]*hooking.BusyTimeTracer
	tags         *hooking.TagCountTracer
	dump         *dump.Writer
	monitor      *monitoring.Monitor
	progress     *monitoring.ProgressBar

	ran        bool
	terminated bool
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Engine returns the engine.
func (s *Simulation) Engine() timing.Engine {
	return s.engine
}

// Reporter returns the reporter.
func (s *Simulation) Reporter() *report.Reporter {
	return s.reporter
}

// Planner returns the planner.
func (s *Simulation) Planner() *planner.Comp {
	return s.planner
}

// Unit returns an execution unit by name.
func (s *Simulation) Unit(name string) *execunit.Comp {
	return s.unitIndex[name]
}

// Resource returns a common resource by name.
func (s *Simulation) Resource(name string) *cres.Comp {
	return s.resIndex[name]
}

// DataRecorder returns the trace database, or nil when tracing is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.recorder
}

// Monitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

func (s *Simulation) crossbars() []*xbar.Crossbar {
	return []*xbar.Crossbar{s.toUnits, s.toRes, s.fromRes, s.toPlanner}
}

func (s *Simulation) ports() []*xbar.Port {
	ports := []*xbar.Port{s.planner.InPort}

	for _, u := range s.units {
		ports = append(ports, u.DispatchPort, u.DemandPort)
	}

	for _, r := range s.resources {
		ports = append(ports, r.InPort)
	}

	return ports
}

// Run starts the planner and runs until nothing is left to do, or until the
// end time of the model. A fatal error stops the run and is returned.
func (s *Simulation) Run() error {
	if s.ran {
		panic("simulation " + s.id + " already ran")
	}

	s.ran = true

	s.reporter.Info("sim", "simulation started",
		zap.String("id", s.id),
		zap.Int("threads", len(s.model.Threads)),
		zap.Int("units", len(s.units)),
		zap.Int("resources", len(s.resources)))

	s.planner.Start()

	var err error

	end := s.model.Time.End.Seconds()
	if end > 0 {
		err = s.engine.RunUntil(end)
	} else {
		err = s.engine.Run()
	}

	for _, name := range s.unitNames() {
		s.busy[name].TerminateAllTasks()
	}

	if err != nil {
		s.reporter.Fatal(err)
		return err
	}

	s.reporter.Info("sim", "simulation finished",
		zap.Float64("end_time", s.engine.Now()),
		zap.Int("registry", s.planner.RegistrySize()))

	return nil
}

func (s *Simulation) unitNames() []string {
	names := make([]string, 0, len(s.units))
	for _, u := range s.units {
		names = append(names, u.Name())
	}

	sort.Strings(names)

	return names
}

// Terminate flushes the traces, closes the dump and stops the monitor. It
// can be called more than once.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true

	var errs []error

	if s.jobTracer != nil {
		s.jobTracer.Terminate()
	}

	if s.signalTracer != nil {
		s.signalTracer.Sample()
	}

	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}

	if s.dump != nil {
		errs = append(errs, s.dump.Close())
	}

	if s.monitor != nil {
		if s.progress != nil {
			s.monitor.CompleteProgressBar(s.progress)
		}

		errs = append(errs, s.monitor.StopServer())
	}

	s.reporter.Sync()

	return errors.Join(errs...)
}
