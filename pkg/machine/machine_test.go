package machine

import (
	"bytes"
	"sync"
	"testing"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/states"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// player builds
//
//	player { stopped, active { playing, paused } }
//
// stopped --play--> active, playing --pause--> paused, paused --resume-->
// playing, active --stop--> stopped. paused defers seek.
func player(t *testing.T) (core.Node, map[string]*core.State) {
	t.Helper()
	root, err := states.NewCompositeState("player")
	require.NoError(t, err)
	active, err := states.NewCompositeState("active")
	require.NoError(t, err)
	stopped, _ := core.NewState("stopped")
	playing, _ := core.NewState("playing")
	paused, _ := core.NewState("paused")

	require.NoError(t, root.AddSubstates(stopped, active))
	require.NoError(t, active.AddSubstates(playing, paused))

	require.NoError(t, stopped.AddHandlerForEvent("play", active.State))
	require.NoError(t, playing.AddHandlerForEvent("pause", paused))
	require.NoError(t, paused.AddHandlerForEvent("resume", playing))
	require.NoError(t, active.AddHandlerForEvent("stop", stopped))
	require.NoError(t, paused.DeferEvent("seek"))
	require.NoError(t, playing.AddHandlerForEvent("seek", nil))

	return root, map[string]*core.State{
		"player":  root.State,
		"active":  active.State,
		"stopped": stopped,
		"playing": playing,
		"paused":  paused,
	}
}

type recordingObserver struct {
	BaseObserver
	events []string
}

func (o *recordingObserver) OnTransition(machine string, outcome *core.Outcome) {
	o.events = append(o.events, "transition "+outcome.Transition.Name())
}

func (o *recordingObserver) OnStateEnter(machine, state string, event *core.Event) {
	o.events = append(o.events, "enter "+state)
}

func (o *recordingObserver) OnStateExit(machine, state string, event *core.Event) {
	o.events = append(o.events, "exit "+state)
}

func (o *recordingObserver) OnEventDeferred(machine, state string, event *core.Event) {
	o.events = append(o.events, "deferred "+event.Name()+" by "+state)
}

func (o *recordingObserver) OnEventRejected(machine string, event *core.Event, reason core.UnhandledReason) {
	o.events = append(o.events, "rejected "+event.Name()+": "+reason.String())
}

func (o *recordingObserver) OnMachineStarted(machine string) {
	o.events = append(o.events, "started "+machine)
}

func (o *recordingObserver) OnMachineStopped(machine string) {
	o.events = append(o.events, "stopped "+machine)
}

func (o *recordingObserver) take() []string {
	events := o.events
	o.events = nil
	return events
}

func TestMachineLifecycle(t *testing.T) {
	root, _ := player(t)
	obs := &recordingObserver{}
	m, err := New(root, WithName("jukebox"), WithObserver(obs))
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID())
	assert.Equal(t, "jukebox", m.Name())
	assert.Equal(t, StatusStopped, m.Status())
	assert.Nil(t, m.ActiveLeaf())

	_, err = m.SendNamed("play", nil)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, m.Stop(), ErrNotRunning)

	require.NoError(t, m.Start())
	assert.Equal(t, StatusRunning, m.Status())
	assert.ErrorIs(t, m.Start(), ErrAlreadyRunning)
	assert.Equal(t, []string{"player", "stopped"}, m.ActiveStates())
	assert.Equal(t, []string{"enter player", "enter stopped", "started jukebox"}, obs.take())

	out, err := m.SendNamed("play", nil)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeTransitioned, out.Kind)
	assert.Equal(t, []string{"player", "active", "playing"}, m.ActiveStates())
	assert.True(t, m.IsActive("active"))
	assert.False(t, m.IsActive("stopped"))
	assert.Equal(t, []string{"exit stopped", "enter active", "enter playing", "transition stopped -> active"}, obs.take())

	require.NoError(t, m.Stop())
	assert.Equal(t, StatusStopped, m.Status())
	assert.Empty(t, m.ActiveStates())
	assert.Equal(t, []string{"exit playing", "exit active", "exit player", "stopped jukebox"}, obs.take())

	// Restarting enters the initial configuration again.
	require.NoError(t, m.Start())
	assert.Equal(t, "stopped", m.ActiveLeaf().Name())
}

func TestMachineSealsRegistration(t *testing.T) {
	root, all := player(t)
	m, err := New(root)
	require.NoError(t, err)
	require.NoError(t, m.Start())

	err = all["playing"].AddHandlerForEvent("late", nil)
	assert.True(t, core.IsRegistrationClosedError(err))
}

func TestMachineDeferredReplay(t *testing.T) {
	root, all := player(t)
	var seeks []any
	require.NoError(t, all["playing"].AddHandlerForEvent("mark", nil,
		core.WithAction(func(_, _ *core.State, data map[string]any) error {
			seeks = append(seeks, data["at"])
			return nil
		})))
	require.NoError(t, all["paused"].DeferEvent("mark"))

	obs := &recordingObserver{}
	m, err := New(root, WithObserver(obs))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	_, err = m.SendNamed("play", nil)
	require.NoError(t, err)
	_, err = m.SendNamed("pause", nil)
	require.NoError(t, err)
	obs.take()

	for _, at := range []int{1, 2, 3} {
		out, err := m.SendNamed("mark", map[string]any{"at": at})
		require.NoError(t, err)
		assert.Equal(t, core.OutcomeDeferred, out.Kind)
	}
	assert.Equal(t, 3, m.PendingDeferred())
	assert.Len(t, m.DeferredEvents("paused"), 3)
	assert.Empty(t, seeks)

	_, err = m.SendNamed("resume", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, seeks, "replayed in submission order")
	assert.Zero(t, m.PendingDeferred())
	assert.Equal(t, []string{
		"deferred mark by paused",
		"deferred mark by paused",
		"deferred mark by paused",
		"exit paused",
		"enter playing",
		"transition paused -> playing",
		"transition playing (internal)",
		"transition playing (internal)",
		"transition playing (internal)",
	}, obs.take())
}

func TestMachineFlush(t *testing.T) {
	root, all := player(t)
	require.NoError(t, all["stopped"].DeferEvent("seek"))

	m, err := New(root, WithReplayDeferred(false))
	require.NoError(t, err)
	require.NoError(t, m.Start())

	_, err = m.SendNamed("seek", nil)
	require.NoError(t, err)
	_, err = m.SendNamed("play", nil)
	require.NoError(t, err)
	// Replay is disabled, so the event waits on stopped.
	assert.Len(t, m.DeferredEvents("stopped"), 1)

	outcomes, err := m.Flush("stopped")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, core.OutcomeTransitioned, outcomes[0].Kind)
	assert.True(t, outcomes[0].Transition.IsInternal())
	assert.Zero(t, m.PendingDeferred())

	// Flushing while the deferring state is still active keeps the event.
	_, err = m.SendNamed("pause", nil)
	require.NoError(t, err)
	_, err = m.SendNamed("seek", nil)
	require.NoError(t, err)
	outcomes, err = m.Flush("paused")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, core.OutcomeDeferred, outcomes[0].Kind)
	assert.Len(t, m.DeferredEvents("paused"), 1)

	require.NoError(t, m.Stop())
	assert.Zero(t, m.PendingDeferred())
}

func TestMachineUnhandledAndErrors(t *testing.T) {
	root, all := player(t)
	boom := errors.New("boom")
	all["stopped"].OnExit(func(_, _ *core.State, _ map[string]any) error { return boom })

	var logs bytes.Buffer
	obs := &recordingObserver{}
	m, err := New(root, WithObserver(obs), WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	obs.take()

	out, err := m.SendNamed("resume", nil)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeUnhandled, out.Kind)
	assert.Equal(t, []string{"rejected resume: no handler"}, obs.take())
	assert.Contains(t, logs.String(), `"message":"event unhandled"`)

	out, err = m.SendNamed("play", nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "playing", out.Leaf.Name())
	assert.Equal(t, "playing", m.ActiveLeaf().Name())
	assert.Contains(t, logs.String(), `"error":"boom"`)

	_, err = m.SendNamed("", nil)
	assert.True(t, core.IsInvalidNameError(err))
}

func TestMachineHierarchyErrors(t *testing.T) {
	root, _ := core.NewState("root")
	outer, _ := states.NewCompositeState("outer")
	require.NoError(t, outer.AddSubstate(root))

	_, err := New(root)
	require.Error(t, err)
	assert.True(t, core.IsHierarchyError(err))
}

func TestMachineConcurrentSend(t *testing.T) {
	root, all := player(t)
	var count int
	require.NoError(t, all["stopped"].AddHandlerForEvent("tick", nil,
		core.WithAction(func(_, _ *core.State, _ map[string]any) error {
			count++
			return nil
		})))
	m, err := New(root)
	require.NoError(t, err)
	require.NoError(t, m.Start())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = m.SendNamed("tick", nil)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, count)
}
