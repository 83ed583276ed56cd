package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/hotkeyrelay/combo"
)

func TestClientQueuesInOrder(t *testing.T) {
	c := NewClient(2)
	require.NoError(t, c.Send([]byte("a")))
	require.NoError(t, c.Send([]byte("b")))
	assert.ErrorIs(t, c.Send([]byte("c")), ErrQueueFull)

	assert.Equal(t, "a", string(<-c.Frames()))
	assert.Equal(t, "b", string(<-c.Frames()))
}

func TestClientClose(t *testing.T) {
	c := NewClient(0)
	assert.NotEmpty(t, c.ID())

	c.Close()
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.ErrorIs(t, c.Send([]byte("x")), ErrClientClosed)
}

func TestSlowClientIsPruned(t *testing.T) {
	hub := NewHub()
	slow := NewClient(1)
	fast := NewClient(8)
	_, err := hub.Subscribe(slow)
	require.NoError(t, err)
	_, err = hub.Subscribe(fast)
	require.NoError(t, err)

	ev := Fired(combo.MustParse("CTRL+A"), SourceHotkey)
	assert.Equal(t, 2, hub.Publish(ev))
	assert.Equal(t, 1, hub.Publish(ev))
	assert.Equal(t, 1, hub.Count())

	select {
	case <-slow.Done():
	default:
		t.Fatal("pruned client should be closed")
	}
	assert.Len(t, fast.Frames(), 2)
}

func TestEventData(t *testing.T) {
	assert.Equal(t, `{"ready": true}`, string(ReadyEvent().Data()))
	assert.Equal(t, `{"combo": "CTRL+ALT+1"}`, string(Fired("CTRL+ALT+1", SourceHotkey).Data()))
	assert.Equal(t, `{"combo": "CTRL+\"Q\""}`, string(Fired(`CTRL+"Q"`, SourceHotkey).Data()))
}
