package observers

import (
	"sync"
	"time"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/machine"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver exports machine activity as Prometheus metrics
type MetricsObserver struct {
	transitions *prometheus.CounterVec
	entries     *prometheus.CounterVec
	deferred    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	timeInState *prometheus.HistogramVec

	lastStateEntry map[string]time.Time
	mutex          sync.Mutex
}

var _ machine.ExtendedObserver = (*MetricsObserver)(nil)

// NewMetricsObserver creates the collectors and registers them on reg
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Name:      "transitions_total",
			Help:      "Executed transitions by source, destination and kind.",
		}, []string{"machine", "source", "destination", "kind"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Name:      "state_entries_total",
			Help:      "Number of times each state was entered.",
		}, []string{"machine", "state"}),
		deferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Name:      "events_deferred_total",
			Help:      "Events deferred by each state.",
		}, []string{"machine", "state", "event"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Name:      "events_unhandled_total",
			Help:      "Events that no transition consumed.",
		}, []string{"machine", "event", "reason"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Name:      "callback_errors_total",
			Help:      "Dispatches whose callbacks returned an error.",
		}, []string{"machine"}),
		timeInState: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hsm",
			Name:      "state_duration_seconds",
			Help:      "Time spent in a state between entry and exit.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"machine", "state"}),
		lastStateEntry: make(map[string]time.Time),
	}
	for _, c := range []prometheus.Collector{
		o.transitions, o.entries, o.deferred, o.rejected, o.errors, o.timeInState,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering hsm metrics")
		}
	}
	return o, nil
}

// OnTransition counts the transition
func (o *MetricsObserver) OnTransition(machine string, outcome *core.Outcome) {
	t := outcome.Transition
	destination := t.Source().Name()
	if d := t.Destination(); d != nil {
		destination = d.Name()
	}
	o.transitions.WithLabelValues(machine, t.Source().Name(), destination, outcome.TransitionKind.String()).Inc()
}

// OnStateEnter counts the entry and starts the state timer
func (o *MetricsObserver) OnStateEnter(machine, state string, event *core.Event) {
	o.entries.WithLabelValues(machine, state).Inc()

	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.lastStateEntry[machine+"/"+state] = time.Now()
}

// OnStateExit observes the time spent in the state
func (o *MetricsObserver) OnStateExit(machine, state string, event *core.Event) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	key := machine + "/" + state
	if entered, ok := o.lastStateEntry[key]; ok {
		o.timeInState.WithLabelValues(machine, state).Observe(time.Since(entered).Seconds())
		delete(o.lastStateEntry, key)
	}
}

// OnEventDeferred counts the deferral
func (o *MetricsObserver) OnEventDeferred(machine, state string, event *core.Event) {
	o.deferred.WithLabelValues(machine, state, eventName(event)).Inc()
}

// OnEventRejected counts the unhandled event
func (o *MetricsObserver) OnEventRejected(machine string, event *core.Event, reason core.UnhandledReason) {
	o.rejected.WithLabelValues(machine, eventName(event), reason.String()).Inc()
}

// OnError counts the failure
func (o *MetricsObserver) OnError(machine string, err error, event *core.Event) {
	o.errors.WithLabelValues(machine).Inc()
}

// OnMachineStarted implements machine.ExtendedObserver
func (o *MetricsObserver) OnMachineStarted(machine string) {}

// OnMachineStopped implements machine.ExtendedObserver
func (o *MetricsObserver) OnMachineStopped(machine string) {}
