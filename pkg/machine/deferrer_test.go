package machine

import (
	"testing"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDeferrer(t *testing.T) {
	ev := func(name string) *core.Event {
		e, err := core.NewEvent(name, nil)
		require.NoError(t, err)
		return e
	}
	eventNames := func(ds []*DeferredEvent) []string {
		var out []string
		for _, d := range ds {
			out = append(out, d.Event.Name()+"@"+d.State)
		}
		return out
	}

	ed := NewEventDeferrer()
	ed.DeferEvent("a", ev("1"))
	ed.DeferEvent("b", ev("2"))
	ed.DeferEvent("a", ev("3"))
	assert.Equal(t, 3, ed.Count())
	assert.Len(t, ed.Events("a"), 2)
	assert.Empty(t, ed.Events("missing"))

	taken := ed.Take("a")
	assert.Equal(t, []string{"1@a", "3@a"}, eventNames(taken))
	assert.Equal(t, 1, ed.Count())

	// Requeued entries keep their place in the global order.
	ed.Requeue("b", taken[1])
	ed.Requeue("b", taken[0])
	assert.Equal(t, []string{"1@b", "2@b", "3@b"}, eventNames(ed.Drain()))
	assert.Zero(t, ed.Count())

	ed.DeferEvent("a", ev("4"))
	ed.Clear()
	assert.Zero(t, ed.Count())
}
