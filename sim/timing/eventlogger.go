package timing

import (
	"log"
	"reflect"
	"strings"

	"github.com/sarchlab/schd/sim/hooking"
)

// EventLogger is a hook that prints one line per handled event: the time,
// the event ID, the event type, the handler and whether the event is
// secondary.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger returns an EventLogger that writes into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

type named interface {
	Name() string
}

// Func logs the event before it is handled.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	h.logger.Printf("%s #%s %s -> %s%s",
		FormatTime(evt.Time()), evt.ID(), eventType(evt),
		handlerName(evt.Handler()), secondaryMark(evt))
}

func eventType(evt Event) string {
	t := reflect.TypeOf(evt).String()
	return strings.TrimPrefix(t, "*")
}

func handlerName(h Handler) string {
	if n, ok := h.(named); ok {
		return n.Name()
	}

	return reflect.TypeOf(h).String()
}

func secondaryMark(evt Event) string {
	if evt.IsSecondary() {
		return " (secondary)"
	}

	return ""
}
