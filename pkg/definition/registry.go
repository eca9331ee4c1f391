package definition

import (
	"strings"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/cockroachdb/errors"
)

// Registry maps the callback names used by charts to host functions
type Registry struct {
	actions   map[string]core.Action
	guards    map[string]core.Guard
	callbacks map[string]core.StateCallback
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		actions:   make(map[string]core.Action),
		guards:    make(map[string]core.Guard),
		callbacks: make(map[string]core.StateCallback),
	}
}

func checkName(kind, name string, exists bool) error {
	if strings.TrimSpace(name) == "" {
		return errors.Newf("%s name must not be empty", kind)
	}
	if exists {
		return errors.Newf("%s %q already registered", kind, name)
	}
	return nil
}

// RegisterAction binds a transition action under name
func (r *Registry) RegisterAction(name string, action core.Action) error {
	_, exists := r.actions[name]
	if err := checkName("action", name, exists); err != nil {
		return err
	}
	if action == nil {
		return errors.Newf("action %q is nil", name)
	}
	r.actions[name] = action
	return nil
}

// RegisterGuard binds a guard under name
func (r *Registry) RegisterGuard(name string, guard core.Guard) error {
	_, exists := r.guards[name]
	if err := checkName("guard", name, exists); err != nil {
		return err
	}
	if guard == nil {
		return errors.Newf("guard %q is nil", name)
	}
	r.guards[name] = guard
	return nil
}

// RegisterCallback binds an enter or exit callback under name
func (r *Registry) RegisterCallback(name string, cb core.StateCallback) error {
	_, exists := r.callbacks[name]
	if err := checkName("callback", name, exists); err != nil {
		return err
	}
	if cb == nil {
		return errors.Newf("callback %q is nil", name)
	}
	r.callbacks[name] = cb
	return nil
}

// Action looks up an action
func (r *Registry) Action(name string) (core.Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Guard looks up a guard
func (r *Registry) Guard(name string) (core.Guard, bool) {
	g, ok := r.guards[name]
	return g, ok
}

// Callback looks up an enter or exit callback
func (r *Registry) Callback(name string) (core.StateCallback, bool) {
	cb, ok := r.callbacks[name]
	return cb, ok
}
