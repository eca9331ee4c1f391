// Package observers provides observers for monitoring machine activity
package observers

import (
	"os"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/machine"
	"github.com/rs/zerolog"
)

// LoggingObserver writes machine activity as structured log events.
// Transitions, start and stop are logged at info, entries, exits and
// deferrals at debug, unhandled events at info and callback failures at
// error.
type LoggingObserver struct {
	logger zerolog.Logger
}

var _ machine.ExtendedObserver = (*LoggingObserver)(nil)

// NewLoggingObserver creates a logging observer writing to logger
func NewLoggingObserver(logger zerolog.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// NewDefaultLoggingObserver logs to stderr at info level
func NewDefaultLoggingObserver() *LoggingObserver {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	return NewLoggingObserver(logger)
}

func eventName(event *core.Event) string {
	if event == nil {
		return ""
	}
	return event.Name()
}

// OnTransition logs an executed transition
func (o *LoggingObserver) OnTransition(machine string, outcome *core.Outcome) {
	o.logger.Info().
		Str("machine", machine).
		Str("event", eventName(outcome.Event)).
		Str("transition", outcome.Transition.Name()).
		Stringer("kind", outcome.TransitionKind).
		Str("leaf", outcome.Leaf.Name()).
		Msg("transition")
}

// OnStateEnter logs state entry
func (o *LoggingObserver) OnStateEnter(machine, state string, event *core.Event) {
	o.logger.Debug().Str("machine", machine).Str("state", state).Str("event", eventName(event)).Msg("enter")
}

// OnStateExit logs state exit
func (o *LoggingObserver) OnStateExit(machine, state string, event *core.Event) {
	o.logger.Debug().Str("machine", machine).Str("state", state).Str("event", eventName(event)).Msg("exit")
}

// OnEventDeferred logs a deferral
func (o *LoggingObserver) OnEventDeferred(machine, state string, event *core.Event) {
	o.logger.Debug().Str("machine", machine).Str("state", state).Str("event", eventName(event)).Msg("deferred")
}

// OnEventRejected logs an unhandled event
func (o *LoggingObserver) OnEventRejected(machine string, event *core.Event, reason core.UnhandledReason) {
	o.logger.Info().
		Str("machine", machine).
		Str("event", eventName(event)).
		Stringer("reason", reason).
		Msg("unhandled")
}

// OnError logs a callback failure
func (o *LoggingObserver) OnError(machine string, err error, event *core.Event) {
	o.logger.Error().Err(err).Str("machine", machine).Str("event", eventName(event)).Msg("dispatch error")
}

// OnMachineStarted logs machine start
func (o *LoggingObserver) OnMachineStarted(machine string) {
	o.logger.Info().Str("machine", machine).Msg("started")
}

// OnMachineStopped logs machine stop
func (o *LoggingObserver) OnMachineStopped(machine string) {
	o.logger.Info().Str("machine", machine).Msg("stopped")
}
