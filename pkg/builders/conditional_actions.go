package builders

import (
	"github.com/anggasct/hsm/pkg/core"
	"github.com/rs/zerolog"
)

// ConditionalActions provides helpers for common guards and actions
type ConditionalActions struct{}

// IfDataEquals creates a guard passing when the event payload holds value under key
func (ConditionalActions) IfDataEquals(key string, value any) core.Guard {
	return func(_, _ *core.State, data map[string]any) bool {
		if val, exists := data[key]; exists {
			return val == value
		}
		return false
	}
}

// IfDataExists creates a guard passing when the event payload has key
func (ConditionalActions) IfDataExists(key string) core.Guard {
	return func(_, _ *core.State, data map[string]any) bool {
		_, exists := data[key]
		return exists
	}
}

// Not negates a guard
func (ConditionalActions) Not(guard core.Guard) core.Guard {
	return func(source, target *core.State, data map[string]any) bool {
		return !guard(source, target, data)
	}
}

// All passes when every guard passes. Evaluation stops at the first failure.
func (ConditionalActions) All(guards ...core.Guard) core.Guard {
	return func(source, target *core.State, data map[string]any) bool {
		for _, g := range guards {
			if !g(source, target, data) {
				return false
			}
		}
		return true
	}
}

// Any passes when at least one guard passes
func (ConditionalActions) Any(guards ...core.Guard) core.Guard {
	return func(source, target *core.State, data map[string]any) bool {
		for _, g := range guards {
			if g(source, target, data) {
				return true
			}
		}
		return false
	}
}

// Chain runs actions in order and stops at the first error
func (ConditionalActions) Chain(actions ...core.Action) core.Action {
	return func(source, target *core.State, data map[string]any) error {
		for _, a := range actions {
			if err := a(source, target, data); err != nil {
				return err
			}
		}
		return nil
	}
}

// LogMessage creates an action that logs message at info level
func (ConditionalActions) LogMessage(logger zerolog.Logger, message string) core.Action {
	return func(source, target *core.State, _ map[string]any) error {
		logger.Info().Str("source", source.Name()).Str("target", target.Name()).Msg(message)
		return nil
	}
}

// Conditions provides a singleton instance of ConditionalActions
var Conditions = ConditionalActions{}
