package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversAndDropsWhenFull(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	for i := 0; i < 15; i++ {
		h.Emit(TypeRunCompleted, map[string]int{"n": i})
	}
	assert.Len(t, ch, 10)

	var e Event
	require.NoError(t, json.Unmarshal([]byte(<-ch), &e))
	assert.Equal(t, TypeRunCompleted, e.Type)
	assert.JSONEq(t, `{"n":0}`, string(e.Data))

	h.Unsubscribe(ch)
	h.Unsubscribe(ch)
	assert.Zero(t, h.Subscribers())
}

func TestNilHubIsQuiet(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() {
		h.Publish("x")
		h.Emit(TypeRunStarted, nil)
	})
}
