package builders

import (
	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/observers"
)

// ValidationBuilder collects expectations for a ValidationObserver
type ValidationBuilder struct {
	observer *observers.ValidationObserver
}

// NewValidationBuilder creates a new validation builder
func NewValidationBuilder() *ValidationBuilder {
	return &ValidationBuilder{observer: observers.NewValidationObserver()}
}

// ExpectState adds a state that must be entered during the run
func (v *ValidationBuilder) ExpectState(stateName string) *ValidationBuilder {
	v.observer.AddExpectedState(stateName)
	return v
}

// ExpectAllStates expects every node of tree to be entered
func (v *ValidationBuilder) ExpectAllStates(tree *core.Hierarchy) *ValidationBuilder {
	for _, n := range tree.Nodes() {
		v.observer.AddExpectedState(n.Name())
	}
	return v
}

// AllowTransition adds an allowed transition
func (v *ValidationBuilder) AllowTransition(from, to string) *ValidationBuilder {
	v.observer.AddAllowedTransition(from, to)
	return v
}

// Strict counts unhandled events as violations
func (v *ValidationBuilder) Strict() *ValidationBuilder {
	v.observer.Strict()
	return v
}

// Build returns the validation observer
func (v *ValidationBuilder) Build() *observers.ValidationObserver {
	return v.observer
}
