package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/hotkeyrelay/auth"
	"markestedt/hotkeyrelay/broadcast"
	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/config"
	"markestedt/hotkeyrelay/web"
)

type relay struct {
	registry *combo.Registry
	hub      *broadcast.Hub
	url      string
}

func startRelay(t *testing.T) *relay {
	t.Helper()
	token, err := auth.Issue()
	require.NoError(t, err)

	r := &relay{registry: combo.NewRegistry(), hub: broadcast.NewHub()}
	srv := web.NewServer(token, r.registry, r.hub, nil, config.Default())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(r.hub.Close)
	r.url = ts.URL
	return r
}

func TestHelloReturnsToken(t *testing.T) {
	r := startRelay(t)
	c := New(r.url + "/")

	token, err := c.Hello(context.Background())
	require.NoError(t, err)
	assert.Len(t, token, 32)
}

func TestConfigureAndTrigger(t *testing.T) {
	r := startRelay(t)
	c := New(r.url)
	ctx := context.Background()

	count, err := c.Configure(ctx, []string{"ctrl+alt+1", "Alt+Ctrl+1", "SHIFT+F5"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, r.registry.Contains("SHIFT+F5"))

	require.NoError(t, c.Trigger(ctx, "CTRL+ALT+1"))

	err = c.Trigger(ctx, "CTRL+ALT+9")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Message, "not registered")
}

func TestConfigureRejectsInvalid(t *testing.T) {
	r := startRelay(t)
	c := New(r.url)

	_, err := c.Configure(context.Background(), []string{"CTRL+"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

func TestUnauthorizedUnwrapsToSentinel(t *testing.T) {
	r := startRelay(t)
	c := New(r.url)
	c.token = "wrong"

	err := c.Trigger(context.Background(), "CTRL+ALT+1")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestStreamReceivesReadyThenFires(t *testing.T) {
	r := startRelay(t)
	c := New(r.url)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Configure(ctx, []string{"CTRL+ALT+1"})
	require.NoError(t, err)

	var got []Message
	done := make(chan error, 1)
	go func() {
		done <- c.Stream(ctx, func(m Message) error {
			got = append(got, m)
			if m.Ready {
				go c.Trigger(ctx, "CTRL+ALT+1")
				return nil
			}
			return errStop
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, errStop)
	case <-ctx.Done():
		t.Fatal("stream did not deliver the fire")
	}

	require.Len(t, got, 2)
	assert.True(t, got[0].Ready)
	assert.Equal(t, "CTRL+ALT+1", got[1].Combo)
}

var errStop = errors.New("stop")

func TestStreamEndsWithContext(t *testing.T) {
	r := startRelay(t)
	c := New(r.url)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- c.Stream(ctx, func(m Message) error {
			if m.Ready {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestStatusErrorMessage(t *testing.T) {
	assert.Equal(t, "relay returned 404", (&StatusError{StatusCode: 404}).Error())
	assert.Equal(t, "relay returned 400: bad", (&StatusError{StatusCode: 400, Message: "bad"}).Error())
}
