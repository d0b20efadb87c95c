package keymap

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

// keyTypeRange covers every tea.KeyType bubbletea names, including the
// negative special keys (arrows, function keys, ...).
const keyTypeRange = 256

var namedKeys = func() map[string]tea.KeyType {
	out := map[string]tea.KeyType{}
	for kt := tea.KeyType(-keyTypeRange); kt < keyTypeRange; kt++ {
		if kt == tea.KeyRunes {
			continue
		}
		if name := (tea.Key{Type: kt}).String(); name != "" {
			if _, seen := out[name]; !seen {
				out[name] = kt
			}
		}
	}
	return out
}()

// ParseKey turns a key name as written in config or scripts ("j", "ctrl+c",
// "alt+up") into the tea.KeyMsg bubbletea would deliver for it.
func ParseKey(name string) (tea.KeyMsg, error) {
	if name == "" {
		return tea.KeyMsg{}, fmt.Errorf("keymap: empty key name")
	}
	alt := false
	rest := name
	if strings.HasPrefix(rest, "alt+") && len(rest) > len("alt+") {
		alt = true
		rest = strings.TrimPrefix(rest, "alt+")
	}
	if kt, ok := namedKeys[rest]; ok {
		return tea.KeyMsg{Type: kt, Alt: alt}, nil
	}
	if utf8.RuneCountInString(rest) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(rest), Alt: alt}, nil
	}
	return tea.KeyMsg{}, fmt.Errorf("keymap: unknown key %q", name)
}
