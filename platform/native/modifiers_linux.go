//go:build linux

package native

import (
	"golang.design/x/hotkey"

	"markestedt/hotkeyrelay/combo"
)

// modifierMap maps modifier parts to X11 modifiers.
var modifierMap = map[string]hotkey.Modifier{
	combo.Ctrl:  hotkey.ModCtrl,
	combo.Shift: hotkey.ModShift,
	combo.Alt:   hotkey.Mod1, // Alt is Mod1 on X11
	combo.Meta:  hotkey.Mod4, // Super is Mod4 on X11
}
