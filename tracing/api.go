// Package tracing records what happens in a simulation: jobs running on
// execution units and the values of component signals over time.
package tracing

import (
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/naming"
)

// NamedHookable represent something both have a name and can be hooked
type NamedHookable interface {
	naming.Named
	hooking.Hookable
	InvokeHook(hooking.HookCtx)
}

func allRequiredFieldsMustBeNotEmpty(
	id string,
	domain NamedHookable,
	kind string,
	what string,
) {
	if id == "" {
		panic("id must not be empty")
	}

	if domain == nil {
		panic("domain must not be nil")
	}

	if kind == "" {
		panic("kind must not be empty")
	}

	if what == "" {
		panic("what must not be empty")
	}

	if domain.Name() == "" {
		panic("domain must have a name")
	}
}

// StartTask notifies the hooks that hook to the domain about the start of a
// task.
func StartTask(
	id string,
	domain NamedHookable,
	kind string,
	what string,
) {
	allRequiredFieldsMustBeNotEmpty(id, domain, kind, what)

	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    hooking.HookPosTaskStart,
		Item: hooking.TaskStart{
			ID:    id,
			Kind:  kind,
			What:  what,
			Where: domain.Name(),
		},
	})
}

// TagTask attaches a tag to a running task.
func TagTask(
	id string,
	domain NamedHookable,
	what string,
	detail string,
) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    hooking.HookPosTaskTag,
		Item: hooking.TaskTag{
			TaskID: id,
			Where:  domain.Name(),
			What:   what,
			Detail: detail,
		},
	})
}

// EndTask notifies the hooks about the end of a task.
func EndTask(
	id string,
	domain NamedHookable,
) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    hooking.HookPosTaskEnd,
		Item:   hooking.TaskEnd{ID: id},
	})
}
