package timing

import (
	"sync"
)

// WakeEvent resumes a process that has pending input.
type WakeEvent struct {
	*EventBase
}

// MakeWakeEvent creates a new WakeEvent.
func MakeWakeEvent(handler Handler, time VTimeInSec) *WakeEvent {
	return &WakeEvent{EventBase: NewEventBase(time, handler)}
}

// A Waker schedules wake events for a single process. At most one wake event
// is pending at any time, so any number of inputs arriving before the process
// runs are drained in one resumption.
type Waker struct {
	lock      sync.Mutex
	handler   Handler
	Engine    Engine
	secondary bool
	pending   bool
}

// NewWaker creates a waker for the handler.
func NewWaker(handler Handler, engine Engine) *Waker {
	return &Waker{
		handler: handler,
		Engine:  engine,
	}
}

// NewSecondaryWaker creates a waker that always schedule secondary wake
// events. These run after all the primary events of the same time, which lets
// a process observe everything that happened at that time.
func NewSecondaryWaker(handler Handler, engine Engine) *Waker {
	w := NewWaker(handler, engine)
	w.secondary = true

	return w
}

// WakeNow schedules a wake event at the current time unless one is pending.
func (w *Waker) WakeNow() {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.pending {
		return
	}

	evt := MakeWakeEvent(w.handler, w.Engine.Now())
	if w.secondary {
		evt.secondary = true
	}

	w.pending = true
	w.Engine.Schedule(evt)
}

// Woken must be called by the process when it handles a wake event, before it
// drains its inputs.
func (w *Waker) Woken() {
	w.lock.Lock()
	w.pending = false
	w.lock.Unlock()
}

// IsPending tells if a wake event is scheduled.
func (w *Waker) IsPending() bool {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.pending
}
