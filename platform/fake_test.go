package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/hotkeyrelay/combo"
)

func TestFakeHookDeliversToMatchingRegistrations(t *testing.T) {
	f := NewFake()
	c := combo.MustParse("CTRL+ALT+1")

	var presses, releases int
	ph, err := f.RegisterPress(c, func() { presses++ })
	require.NoError(t, err)
	rh, err := f.RegisterRelease("ALT", func() { releases++ })
	require.NoError(t, err)

	f.SimPress(c)
	f.SimPress(combo.MustParse("CTRL+ALT+2"))
	f.SimRelease("ALT")
	f.SimRelease("CTRL")

	assert.Equal(t, 1, presses)
	assert.Equal(t, 1, releases)

	require.NoError(t, f.Unregister(ph))
	require.NoError(t, f.Unregister(rh))
	assert.ErrorIs(t, f.Unregister(rh), ErrUnknownHandle)

	f.SimPress(c)
	assert.Equal(t, 1, presses)
}

func TestFakeHookFailOn(t *testing.T) {
	f := NewFake()
	f.FailOn("META")

	_, err := f.RegisterPress(combo.MustParse("META+K"), func() {})
	assert.ErrorIs(t, err, ErrUnsupportedKey)
	_, err = f.RegisterRelease("META", func() {})
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = f.RegisterRelease("K", func() {})
	assert.NoError(t, err)

	p, r := f.Registrations()
	assert.Equal(t, 0, p)
	assert.Equal(t, 1, r)
}
