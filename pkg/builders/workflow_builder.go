package builders

import (
	"github.com/anggasct/hsm/pkg/core"
)

// Workflow event names
const (
	EventNext     = "next"
	EventComplete = "complete"
	EventAbort    = "abort"
)

// CompletedState is the state entered by EventComplete from the last step
const CompletedState = "completed"

// WorkflowBuilder builds a linear workflow: steps entered one after another
// on EventNext inside a composite named after the workflow.
type WorkflowBuilder struct {
	*StateMachineBuilder
	flow  *StateBuilder
	steps []*StateBuilder
}

// NewWorkflowBuilder creates a new workflow builder
func NewWorkflowBuilder(name string) *WorkflowBuilder {
	b := NewStateMachineBuilder(name)
	return &WorkflowBuilder{
		StateMachineBuilder: b,
		flow:                b.Root(),
	}
}

// AddSequentialStep appends a step whose enter callback is onEnter. The first
// step is the initial state; every other step is reached from the previous
// one on EventNext.
func (w *WorkflowBuilder) AddSequentialStep(name string, onEnter core.StateCallback) *WorkflowBuilder {
	step := w.flow.State(name)
	if onEnter != nil {
		step.OnEntry(onEnter)
	}
	if n := len(w.steps); n > 0 {
		w.steps[n-1].To(name).On(EventNext)
	}
	w.steps = append(w.steps, step)
	return w
}

// WithAbort adds a state reached on EventAbort from any step
func (w *WorkflowBuilder) WithAbort(name string) *WorkflowBuilder {
	w.flow.State(name)
	w.flow.To(name).On(EventAbort).Local()
	return w
}

// FinishWorkflow adds CompletedState, reached from the last step on
// EventComplete.
func (w *WorkflowBuilder) FinishWorkflow() *WorkflowBuilder {
	w.flow.State(CompletedState)
	if n := len(w.steps); n > 0 {
		w.steps[n-1].To(CompletedState).On(EventComplete)
	}
	return w
}
