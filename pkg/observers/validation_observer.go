package observers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/machine"
)

// ValidationObserver records behavior that breaks expectations declared up
// front: transitions outside an allow list, callback errors and, in strict
// mode, unhandled events.
type ValidationObserver struct {
	machine.BaseObserver

	expectedStates     map[string]bool
	visitedStates      map[string]bool
	allowedTransitions map[string]map[string]bool
	rejectIsViolation  bool
	violations         []string
	mutex              sync.RWMutex
}

var _ machine.ExtendedObserver = (*ValidationObserver)(nil)

// NewValidationObserver creates a new validation observer
func NewValidationObserver() *ValidationObserver {
	return &ValidationObserver{
		expectedStates:     make(map[string]bool),
		visitedStates:      make(map[string]bool),
		allowedTransitions: make(map[string]map[string]bool),
		violations:         make([]string, 0),
	}
}

// Strict makes unhandled events count as violations
func (o *ValidationObserver) Strict() *ValidationObserver {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.rejectIsViolation = true
	return o
}

// AddExpectedState adds a state that must be entered at some point
func (o *ValidationObserver) AddExpectedState(stateName string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[stateName] = true
}

// AddAllowedTransition allows from -> to. Once any transition from a source
// is allowed, every other destination from that source is a violation.
func (o *ValidationObserver) AddAllowedTransition(from, to string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[string]bool)
	}
	o.allowedTransitions[from][to] = true
}

// OnStateEnter marks the state as visited
func (o *ValidationObserver) OnStateEnter(machine, state string, event *core.Event) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[state] = true
}

// OnTransition checks the transition against the allow list
func (o *ValidationObserver) OnTransition(machine string, outcome *core.Outcome) {
	t := outcome.Transition
	if t.IsInternal() {
		return
	}
	from, to := t.Source().Name(), t.Destination().Name()

	o.mutex.Lock()
	defer o.mutex.Unlock()

	if allowed, exists := o.allowedTransitions[from]; exists && !allowed[to] {
		o.violations = append(o.violations, fmt.Sprintf(
			"invalid transition from '%s' to '%s' on event '%s'", from, to, eventName(outcome.Event)))
	}
}

// OnEventRejected records a violation in strict mode
func (o *ValidationObserver) OnEventRejected(machine string, event *core.Event, reason core.UnhandledReason) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.rejectIsViolation {
		o.violations = append(o.violations, fmt.Sprintf("event '%s' unhandled: %s", eventName(event), reason))
	}
}

// OnError records a violation
func (o *ValidationObserver) OnError(machine string, err error, event *core.Event) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, fmt.Sprintf("error occurred: %v", err))
}

// GetViolations returns all validation violations
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns expected states that were never entered, sorted
func (o *ValidationObserver) GetUnvisitedStates() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []string
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}
	sort.Strings(unvisited)
	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset clears visited states and violations
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedStates = make(map[string]bool)
	o.violations = make([]string, 0)
}
