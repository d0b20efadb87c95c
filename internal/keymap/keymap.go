// Package keymap turns terminal input into intents. It is the only place that
// knows which keys mean what; swap the Decoder to drive the counter from a
// different input domain.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/lazycounter/internal/config"
	"github.com/kingrea/lazycounter/internal/intent"
)

// Decoder maps one raw input event to at most one intent.
type Decoder interface {
	Decode(msg tea.Msg) (intent.Intent, bool)
}

// DecoderFunc adapts a function into a Decoder.
type DecoderFunc func(tea.Msg) (intent.Intent, bool)

// Decode executes f(msg).
func (f DecoderFunc) Decode(msg tea.Msg) (intent.Intent, bool) {
	if f == nil {
		return intent.None, false
	}
	return f(msg)
}

// KeyMap binds keys to intents and doubles as the help footer source.
type KeyMap struct {
	Quit          key.Binding
	Increment     key.Binding
	LazyIncrement key.Binding
	Decrement     key.Binding
	LazyDecrement key.Binding
}

// Default returns the stock bindings.
func Default() KeyMap {
	return FromConfig(config.DefaultKeys())
}

// FromConfig builds bindings from configured key names.
func FromConfig(k config.Keys) KeyMap {
	return KeyMap{
		Quit:          binding(k.Quit, "quit"),
		Increment:     binding(k.Increment, "+1"),
		LazyIncrement: binding(k.LazyIncrement, "+1 later"),
		Decrement:     binding(k.Decrement, "-1"),
		LazyDecrement: binding(k.LazyDecrement, "-1 later"),
	}
}

func binding(keys []string, desc string) key.Binding {
	help := ""
	if len(keys) > 0 {
		help = keys[0]
	}
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// Decode implements Decoder. Only key presses produce intents.
func (k KeyMap) Decode(msg tea.Msg) (intent.Intent, bool) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return intent.None, false
	}
	switch {
	case key.Matches(keyMsg, k.Quit):
		return intent.Quit, true
	case key.Matches(keyMsg, k.Increment):
		return intent.Increment, true
	case key.Matches(keyMsg, k.LazyIncrement):
		return intent.LazyIncrement, true
	case key.Matches(keyMsg, k.Decrement):
		return intent.Decrement, true
	case key.Matches(keyMsg, k.LazyDecrement):
		return intent.LazyDecrement, true
	}
	return intent.None, false
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Increment, k.Decrement, k.LazyIncrement, k.LazyDecrement, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Increment, k.Decrement},
		{k.LazyIncrement, k.LazyDecrement},
		{k.Quit},
	}
}
