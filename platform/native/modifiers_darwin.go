//go:build darwin

package native

import (
	"golang.design/x/hotkey"

	"markestedt/hotkeyrelay/combo"
)

// modifierMap maps modifier parts to macOS modifiers.
var modifierMap = map[string]hotkey.Modifier{
	combo.Ctrl:  hotkey.ModCtrl,
	combo.Shift: hotkey.ModShift,
	combo.Alt:   hotkey.ModOption,
	combo.Meta:  hotkey.ModCmd,
}
