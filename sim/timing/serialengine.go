package timing

import (
	"log"
	"reflect"
	"sync"

	"github.com/sarchlab/schd/sim/hooking"
)

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	hooking.HookableBase

	timeLock       sync.RWMutex
	time           VTimeInSec
	queue          EventQueue
	secondaryQueue EventQueue
	queueLock      sync.Mutex

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)

	e.queue = NewEventQueue()
	e.secondaryQueue = NewEventQueue()

	return e
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		log.Panicf(
			"scheduling an event earlier than current time, "+
				"evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now)
	}

	e.queueLock.Lock()
	defer e.queueLock.Unlock()

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)

		return
	}

	e.queue.Push(evt)
}

// Cancel removes a pending event.
func (e *SerialEngine) Cancel(evt Event) bool {
	e.queueLock.Lock()
	defer e.queueLock.Unlock()

	if evt.IsSecondary() {
		return e.secondaryQueue.Remove(evt)
	}

	return e.queue.Remove(evt)
}

// Pending returns the number of events that are waiting to be handled.
func (e *SerialEngine) Pending() int {
	e.queueLock.Lock()
	defer e.queueLock.Unlock()

	return e.queue.Len() + e.secondaryQueue.Len()
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTimeInSec) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// Run processes all the events scheduled in the SerialEngine
func (e *SerialEngine) Run() error {
	return e.run(0, false)
}

// RunUntil processes the events that happen no later than t. The clock then
// advances to t, so inputs given after it returns happen at t.
func (e *SerialEngine) RunUntil(t VTimeInSec) error {
	if err := e.run(t, true); err != nil {
		return err
	}

	if e.readNow() < t {
		e.writeNow(t)
	}

	return nil
}

func (e *SerialEngine) run(limit VTimeInSec, bounded bool) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		e.pauseLock.Lock()

		evt := e.nextEvent(limit, bounded)
		if evt == nil {
			e.pauseLock.Unlock()
			return nil
		}

		err := e.handle(evt)

		e.pauseLock.Unlock()

		if err != nil {
			return err
		}
	}
}

func (e *SerialEngine) handle(evt Event) error {
	now := e.readNow()
	if evt.Time() < now {
		log.Panicf(
			"cannot run event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now,
		)
	}

	e.writeNow(evt.Time())

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := evt.Handler().Handle(evt)

	hookCtx.Pos = HookPosAfterEvent
	hookCtx.Detail = err
	e.InvokeHook(hookCtx)

	return err
}

// nextEvent pops the next event to handle. Primary events go before
// secondary events of the same time.
func (e *SerialEngine) nextEvent(limit VTimeInSec, bounded bool) Event {
	e.queueLock.Lock()
	defer e.queueLock.Unlock()

	var q EventQueue

	switch {
	case e.queue.Len() == 0 && e.secondaryQueue.Len() == 0:
		return nil
	case e.queue.Len() == 0:
		q = e.secondaryQueue
	case e.secondaryQueue.Len() == 0:
		q = e.queue
	case e.queue.Peek().Time() <= e.secondaryQueue.Peek().Time():
		q = e.queue
	default:
		q = e.secondaryQueue
	}

	if bounded && q.Peek().Time() > limit {
		return nil
	}

	return q.Pop()
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// Now returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) Now() VTimeInSec {
	return e.readNow()
}
