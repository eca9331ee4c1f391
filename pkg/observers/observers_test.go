package observers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/machine"
	"github.com/anggasct/hsm/pkg/states"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// door builds door { closed, open } with open/close events and a locked
// guard on open.
func door(t *testing.T, locked *bool) core.Node {
	t.Helper()
	root, err := states.NewCompositeState("door")
	require.NoError(t, err)
	closed, _ := core.NewState("closed")
	open, _ := core.NewState("open")
	require.NoError(t, root.AddSubstates(closed, open))

	require.NoError(t, closed.AddHandlerForEvent("open", open,
		core.WithGuard(func(_, _ *core.State, _ map[string]any) bool { return !*locked })))
	require.NoError(t, open.AddHandlerForEvent("close", closed))
	require.NoError(t, open.DeferEvent("lock"))
	require.NoError(t, closed.AddHandlerForEvent("lock", nil))
	return root
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLoggingObserver(zerolog.New(&buf).Level(zerolog.InfoLevel))

	locked := false
	m, err := machine.New(door(t, &locked), machine.WithObserver(obs))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	_, err = m.SendNamed("open", nil)
	require.NoError(t, err)
	_, err = m.SendNamed("bogus", nil)
	require.NoError(t, err)
	require.NoError(t, m.Stop())

	var messages []string
	for _, line := range logLines(t, &buf) {
		assert.Equal(t, "door", line["machine"])
		messages = append(messages, line["message"].(string))
	}
	// Entries and exits are debug and filtered out.
	assert.Equal(t, []string{"started", "transition", "unhandled", "stopped"}, messages)

	lines := logLines(t, &buf)
	assert.Equal(t, "closed -> open", lines[1]["transition"])
	assert.Equal(t, "external", lines[1]["kind"])
	assert.Equal(t, "open", lines[1]["leaf"])
	assert.Equal(t, "bogus", lines[2]["event"])
	assert.Equal(t, "no handler", lines[2]["reason"])
}

func TestLoggingObserverDebug(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLoggingObserver(zerolog.New(&buf).Level(zerolog.DebugLevel))
	ev, err := core.NewEvent("lock", nil)
	require.NoError(t, err)

	obs.OnStateEnter("m", "a", nil)
	obs.OnEventDeferred("m", "a", ev)
	obs.OnError("m", errors.New("boom"), ev)

	lines := logLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "", lines[0]["event"])
	assert.Equal(t, "deferred", lines[1]["message"])
	assert.Equal(t, "lock", lines[1]["event"])
	assert.Equal(t, "error", lines[2]["level"])
	assert.Equal(t, "boom", lines[2]["error"])
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewMetricsObserver(reg)
	require.NoError(t, err)

	locked := true
	m, err := machine.New(door(t, &locked), machine.WithObserver(obs))
	require.NoError(t, err)
	require.NoError(t, m.Start())

	send := func(name string) {
		_, err := m.SendNamed(name, nil)
		require.NoError(t, err)
	}
	send("open") // guard rejects
	locked = false
	send("open")
	send("lock") // deferred by open
	send("close")
	send("nothing")

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.transitions.WithLabelValues("door", "closed", "open", "external")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.transitions.WithLabelValues("door", "open", "closed", "external")))
	// The replayed lock is handled internally by closed.
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.transitions.WithLabelValues("door", "closed", "closed", "internal")))
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.entries.WithLabelValues("door", "closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.entries.WithLabelValues("door", "door")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.deferred.WithLabelValues("door", "open", "lock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.rejected.WithLabelValues("door", "open", "guard rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.rejected.WithLabelValues("door", "nothing", "no handler")))
	assert.Equal(t, 2, testutil.CollectAndCount(obs.timeInState))

	require.NoError(t, m.Stop())
	assert.Equal(t, 3, testutil.CollectAndCount(obs.timeInState))

	_, err = NewMetricsObserver(reg)
	assert.Error(t, err, "collectors are already registered")
}

func TestValidationObserver(t *testing.T) {
	obs := NewValidationObserver()
	obs.AddExpectedState("open")
	obs.AddExpectedState("closed")
	obs.AddExpectedState("jammed")
	obs.AddAllowedTransition("closed", "jammed")

	locked := false
	m, err := machine.New(door(t, &locked), machine.WithObserver(obs))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	_, err = m.SendNamed("open", nil)
	require.NoError(t, err)
	_, err = m.SendNamed("nothing", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"jammed"}, obs.GetUnvisitedStates())
	assert.Equal(t, []string{"invalid transition from 'closed' to 'open' on event 'open'"}, obs.GetViolations())

	obs.Reset()
	assert.False(t, obs.HasViolations())

	obs.Strict()
	_, err = m.SendNamed("nothing", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"event 'nothing' unhandled: no handler"}, obs.GetViolations())

	obs.OnError("door", errors.New("boom"), nil)
	assert.Len(t, obs.GetViolations(), 2)
}
