package hsm_test

import (
	"fmt"
	"testing"

	"github.com/anggasct/hsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuickStart(t *testing.T) {
	root, err := hsm.NewCompositeState("app")
	require.NoError(t, err)
	idle, _ := hsm.NewState("idle")
	running, _ := hsm.NewState("running")
	require.NoError(t, root.AddSubstates(idle, running))

	var log []string
	require.NoError(t, idle.AddHandlerForEvent("start", running,
		hsm.WithGuard(func(_, _ *hsm.State, data map[string]any) bool { return data["ready"] == true }),
		hsm.WithAction(func(src, dst *hsm.State, _ map[string]any) error {
			log = append(log, src.Name()+"->"+dst.Name())
			return nil
		})))
	require.NoError(t, running.AddHandlerForEvent("stop", idle, hsm.WithKind(hsm.Local)))

	m, err := hsm.NewMachine(root)
	require.NoError(t, err)
	_, err = m.SendNamed("start", nil)
	assert.ErrorIs(t, err, hsm.ErrNotRunning)
	require.NoError(t, m.Start())

	out, err := m.SendNamed("start", map[string]any{"ready": false})
	require.NoError(t, err)
	assert.Equal(t, hsm.Unhandled, out.Kind)

	out, err = m.SendNamed("start", map[string]any{"ready": true})
	require.NoError(t, err)
	assert.Equal(t, hsm.Transitioned, out.Kind)
	assert.Equal(t, []string{"idle->running"}, log)

	// Siblings cannot be related locally, so the request falls back to external.
	out, err = m.SendNamed("stop", nil)
	require.NoError(t, err)
	assert.Equal(t, hsm.External, out.TransitionKind)
}

func ExampleNewBuilder() {
	b := hsm.NewBuilder("turnstile")
	b.State("locked").To("unlocked").On("coin")
	b.State("unlocked").To("locked").On("push")

	m, err := b.BuildMachine()
	if err != nil {
		panic(err)
	}
	if err := m.Start(); err != nil {
		panic(err)
	}
	for _, event := range []string{"push", "coin", "push"} {
		out, _ := m.SendNamed(event, nil)
		fmt.Println(out)
	}
	// Output:
	// push: unhandled (no handler)
	// coin: external locked -> unlocked exit=[locked] enter=[unlocked] leaf=unlocked
	// push: external unlocked -> locked exit=[unlocked] enter=[locked] leaf=locked
}
