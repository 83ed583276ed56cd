// Package combo canonicalizes key combinations and holds the set of
// combinations the relay is currently watching.
package combo

import (
	"errors"
	"fmt"
	"strings"
)

// Modifier part names in canonical order.
const (
	Ctrl  = "CTRL"
	Alt   = "ALT"
	Shift = "SHIFT"
	Meta  = "META"
)

var modifierOrder = []string{Ctrl, Alt, Shift, Meta}

var modifierAliases = map[string]string{
	"CTRL":    Ctrl,
	"CONTROL": Ctrl,
	"ALT":     Alt,
	"OPTION":  Alt,
	"OPT":     Alt,
	"SHIFT":   Shift,
	"META":    Meta,
	"CMD":     Meta,
	"COMMAND": Meta,
	"WIN":     Meta,
	"WINDOWS": Meta,
	"SUPER":   Meta,
}

// ErrInvalidCombo is returned for strings that cannot be canonicalized.
var ErrInvalidCombo = errors.New("invalid combo")

// Combo is a canonical key combination such as "CTRL+ALT+1".
// Construct only via Parse so the canonical form holds.
type Combo string

// Parse canonicalizes a combo string like " alt+ctrl+1 " into "CTRL+ALT+1".
// Modifiers are reordered, aliases folded and duplicates collapsed.
// At least one modifier is required and at most one non-modifier key.
func Parse(s string) (Combo, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty combo", ErrInvalidCombo)
	}

	mods := make(map[string]bool, len(modifierOrder))
	key := ""
	for _, raw := range strings.Split(s, "+") {
		part := strings.ToUpper(strings.TrimSpace(raw))
		if part == "" {
			return "", fmt.Errorf("%w: empty part in %q", ErrInvalidCombo, s)
		}
		if mod, ok := modifierAliases[part]; ok {
			mods[mod] = true
			continue
		}
		if key != "" && key != part {
			return "", fmt.Errorf("%w: more than one key in %q (%s, %s)", ErrInvalidCombo, s, key, part)
		}
		key = part
	}

	if len(mods) == 0 {
		return "", fmt.Errorf("%w: no modifier in %q", ErrInvalidCombo, s)
	}

	parts := make([]string, 0, len(mods)+1)
	for _, m := range modifierOrder {
		if mods[m] {
			parts = append(parts, m)
		}
	}
	if key != "" {
		parts = append(parts, key)
	}
	return Combo(strings.Join(parts, "+")), nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Combo {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the canonical form.
func (c Combo) String() string { return string(c) }

// Parts returns the distinct parts of the combo, modifiers first.
func (c Combo) Parts() []string {
	if c == "" {
		return nil
	}
	return strings.Split(string(c), "+")
}

// Modifiers returns the modifier parts in canonical order.
func (c Combo) Modifiers() []string {
	var mods []string
	for _, p := range c.Parts() {
		if IsModifier(p) {
			mods = append(mods, p)
		}
	}
	return mods
}

// Key returns the non-modifier key, or "" for a modifier-only combo.
func (c Combo) Key() string {
	parts := c.Parts()
	if len(parts) == 0 {
		return ""
	}
	last := parts[len(parts)-1]
	if IsModifier(last) {
		return ""
	}
	return last
}

// IsModifier reports whether part is a canonical modifier name.
func IsModifier(part string) bool {
	switch part {
	case Ctrl, Alt, Shift, Meta:
		return true
	}
	return false
}
