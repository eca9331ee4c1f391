package machine

import (
	"github.com/anggasct/hsm/pkg/core"
	"github.com/cockroachdb/errors"
)

// Observer represents an entity that observes machine activity
type Observer interface {
	// Required methods

	// OnTransition is called after a transition has been executed
	OnTransition(machine string, outcome *core.Outcome)

	// OnStateEnter is called for every state entered, including on Start.
	// The event is nil when the state is entered by Start.
	OnStateEnter(machine string, state string, event *core.Event)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnStateExit is called for every state exited, including on Stop
	OnStateExit(machine string, state string, event *core.Event)

	// OnEventDeferred is called when an active state defers an event
	OnEventDeferred(machine string, state string, event *core.Event)

	// OnEventRejected is called when an event is unhandled
	OnEventRejected(machine string, event *core.Event, reason core.UnhandledReason)

	// OnError is called when a callback fails during dispatch
	OnError(machine string, err error, event *core.Event)

	// OnMachineStarted is called once the initial configuration is entered
	OnMachineStarted(machine string)

	// OnMachineStopped is called once the active configuration is exited
	OnMachineStopped(machine string)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

// OnTransition implements the required Observer method
func (o *BaseObserver) OnTransition(machine string, outcome *core.Outcome) {}

// OnStateEnter implements the required Observer method
func (o *BaseObserver) OnStateEnter(machine string, state string, event *core.Event) {}

// OnStateExit implements the optional ExtendedObserver method
func (o *BaseObserver) OnStateExit(machine string, state string, event *core.Event) {}

// OnEventDeferred implements the optional ExtendedObserver method
func (o *BaseObserver) OnEventDeferred(machine string, state string, event *core.Event) {}

// OnEventRejected implements the optional ExtendedObserver method
func (o *BaseObserver) OnEventRejected(machine string, event *core.Event, reason core.UnhandledReason) {
}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver) OnError(machine string, err error, event *core.Event) {}

// OnMachineStarted implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineStarted(machine string) {}

// OnMachineStopped implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineStopped(machine string) {}

// ObserverManager fans notifications out to a list of observers. A panicking
// observer is reported to the others through OnError and never reaches the
// machine.
type ObserverManager struct {
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	if observer == nil {
		return
	}
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered observers
func (om *ObserverManager) Len() int {
	return len(om.observers)
}

func (om *ObserverManager) each(machine, hook string, event *core.Event, fn func(Observer)) {
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)

	for _, observer := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err := errors.Newf("observer panic in %s: %v", hook, r)
					for _, other := range observers {
						if ext, ok := other.(ExtendedObserver); ok && other != observer {
							func() {
								defer func() { _ = recover() }()
								ext.OnError(machine, err, event)
							}()
						}
					}
				}
			}()
			fn(observer)
		}()
	}
}

func (om *ObserverManager) eachExtended(machine, hook string, event *core.Event, fn func(ExtendedObserver)) {
	om.each(machine, hook, event, func(o Observer) {
		if ext, ok := o.(ExtendedObserver); ok {
			fn(ext)
		}
	})
}

// NotifyTransition notifies all observers of an executed transition
func (om *ObserverManager) NotifyTransition(machine string, outcome *core.Outcome) {
	om.each(machine, "OnTransition", outcome.Event, func(o Observer) {
		o.OnTransition(machine, outcome)
	})
}

// NotifyStateEnter notifies all observers of state entry
func (om *ObserverManager) NotifyStateEnter(machine, state string, event *core.Event) {
	om.each(machine, "OnStateEnter", event, func(o Observer) {
		o.OnStateEnter(machine, state, event)
	})
}

// NotifyStateExit notifies all observers of state exit
func (om *ObserverManager) NotifyStateExit(machine, state string, event *core.Event) {
	om.eachExtended(machine, "OnStateExit", event, func(o ExtendedObserver) {
		o.OnStateExit(machine, state, event)
	})
}

// NotifyEventDeferred notifies all observers of a deferred event
func (om *ObserverManager) NotifyEventDeferred(machine, state string, event *core.Event) {
	om.eachExtended(machine, "OnEventDeferred", event, func(o ExtendedObserver) {
		o.OnEventDeferred(machine, state, event)
	})
}

// NotifyEventRejected notifies all observers of an unhandled event
func (om *ObserverManager) NotifyEventRejected(machine string, event *core.Event, reason core.UnhandledReason) {
	om.eachExtended(machine, "OnEventRejected", event, func(o ExtendedObserver) {
		o.OnEventRejected(machine, event, reason)
	})
}

// NotifyError notifies all observers of a dispatch error
func (om *ObserverManager) NotifyError(machine string, err error, event *core.Event) {
	om.eachExtended(machine, "OnError", event, func(o ExtendedObserver) {
		o.OnError(machine, err, event)
	})
}

// NotifyMachineStarted notifies all observers that the machine has started
func (om *ObserverManager) NotifyMachineStarted(machine string) {
	om.eachExtended(machine, "OnMachineStarted", nil, func(o ExtendedObserver) {
		o.OnMachineStarted(machine)
	})
}

// NotifyMachineStopped notifies all observers that the machine has stopped
func (om *ObserverManager) NotifyMachineStopped(machine string) {
	om.eachExtended(machine, "OnMachineStopped", nil, func(o ExtendedObserver) {
		o.OnMachineStopped(machine)
	})
}
