// Package native provides the OS keyboard hook backends: a low-level
// keyboard hook on Windows and golang.design/x/hotkey on Linux (X11) and
// macOS.
package native

import "sort"

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// modifiersExact reports whether every held set has a key down and every
// absent set has none.
func modifiersExact(down map[uint32]bool, held, absent [][]uint32) bool {
	for _, vks := range held {
		if !anyDown(down, vks) {
			return false
		}
	}
	for _, vks := range absent {
		if anyDown(down, vks) {
			return false
		}
	}
	return true
}

func anyDown(down map[uint32]bool, vks []uint32) bool {
	for _, vk := range vks {
		if down[vk] {
			return true
		}
	}
	return false
}
