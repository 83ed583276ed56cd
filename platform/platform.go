// Package platform describes the OS keyboard hook capability the relay
// consumes. Concrete backends live in platform/native.
package platform

import (
	"errors"

	"markestedt/hotkeyrelay/combo"
)

var (
	// ErrUnsupportedKey is returned when a key part has no mapping on this OS.
	ErrUnsupportedKey = errors.New("unsupported key")
	// ErrUnsupportedCombo is returned when the backend cannot watch a combo shape,
	// e.g. modifier-only combos on backends that need a primary key.
	ErrUnsupportedCombo = errors.New("unsupported combo")
	// ErrUnknownHandle is returned by Unregister for handles it never issued.
	ErrUnknownHandle = errors.New("unknown hook handle")
)

// Handle identifies one registration made with a Hook.
type Handle uint64

// Hook registers interest in key presses and releases.
//
// Callbacks may run on any goroutine, at any time, including shortly after
// the registration that produced them was removed. Callers must treat them
// as untrusted-timing signals. A press callback may fire repeatedly while
// the combo is held (OS key repeat).
type Hook interface {
	// RegisterPress calls fn each time every part of c is down.
	RegisterPress(c combo.Combo, fn func()) (Handle, error)
	// RegisterRelease calls fn each time part is released.
	RegisterRelease(part string, fn func()) (Handle, error)
	// Unregister removes a registration.
	Unregister(h Handle) error
	// Close removes every registration and releases OS resources.
	Close() error
}
