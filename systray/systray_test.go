package systray

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriberLabel(t *testing.T) {
	assert.Equal(t, "0 subscribers", subscriberLabel(0))
	assert.Equal(t, "1 subscriber", subscriberLabel(1))
	assert.Equal(t, "3 subscribers", subscriberLabel(3))
}

func TestWaitForQuitOpenUntilClicked(t *testing.T) {
	m := NewSystrayManager("127.0.0.1:17976", func() int { return 0 })

	select {
	case <-m.WaitForQuit():
		t.Fatal("quit closed before any click")
	default:
	}
}

func TestIconIsEmbedded(t *testing.T) {
	assert.NotEmpty(t, iconData)
	png := []byte("\x89PNG\r\n\x1a\n")
	ico := []byte{0, 0, 1, 0}
	assert.True(t, bytes.HasPrefix(iconData, png) || bytes.HasPrefix(iconData, ico))
}
