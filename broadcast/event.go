// Package broadcast tracks open push channels and fans fire-events out to
// all of them.
package broadcast

import (
	"encoding/json"
	"time"

	"markestedt/hotkeyrelay/combo"
)

// Event sources.
const (
	SourceHotkey  = "hotkey"
	SourceTrigger = "trigger"
)

// Event is an immutable fire-event, or the ready sentinel sent when a
// stream opens.
type Event struct {
	Combo  combo.Combo
	Ready  bool
	Source string
	At     time.Time
}

// Fired creates a fire-event for c.
func Fired(c combo.Combo, source string) Event {
	return Event{Combo: c, Source: source, At: time.Now()}
}

// ReadyEvent is sent once at stream open.
func ReadyEvent() Event {
	return Event{Ready: true, At: time.Now()}
}

// Data returns the JSON payload for the event: {"ready": true} or
// {"combo": "CTRL+ALT+1"}. The spacing matches what existing subscribers
// were written against.
func (e Event) Data() []byte {
	if e.Ready {
		return []byte(`{"ready": true}`)
	}
	quoted, _ := json.Marshal(string(e.Combo)) // marshalling a string cannot fail
	buf := make([]byte, 0, len(quoted)+11)
	buf = append(buf, `{"combo": `...)
	buf = append(buf, quoted...)
	buf = append(buf, '}')
	return buf
}
