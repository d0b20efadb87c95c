package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/lazycounter/internal/counter"
	"github.com/kingrea/lazycounter/internal/keymap"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Foreground(lipgloss.Color("11")).
			Padding(0, 2).
			Align(lipgloss.Center)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	counterStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
)

// FrameOptions tunes Frame.
type FrameOptions struct {
	// Width is the terminal width; 0 lets the box size to its content.
	Width int
	// History caps how many completion records are listed.
	History int
	// Delay is mentioned in the instructions when set.
	Delay time.Duration
	// Spinner prefixes pending entries.
	Spinner string
}

// Frame renders one screen for the given state. It never mutates anything.
func Frame(st counter.State, keys keymap.KeyMap, opts FrameOptions) string {
	lines := []string{
		titleStyle.Render("Counter"),
		"",
		fmt.Sprintf("Press `%s` or `%s` to stop running.", helpKey(keys.Quit.Keys(), 1), helpKey(keys.Quit.Keys(), 0)),
		fmt.Sprintf("Press `%s` and `%s` to increment and decrement the counter respectively.",
			helpKey(keys.Increment.Keys(), 0), helpKey(keys.Decrement.Keys(), 0)),
		lazyLine(keys, opts.Delay),
		"",
		"Counter: " + counterStyle.Render(fmt.Sprintf("%d", st.Counter)),
	}

	if len(st.Pending) > 0 {
		lines = append(lines, "", fmt.Sprintf("Pending (%d)", len(st.Pending)))
		for _, p := range st.Pending {
			prefix := opts.Spinner
			if prefix == "" {
				prefix = "…"
			}
			lines = append(lines, dimStyle.Render(prefix+" "+p.String()))
		}
	}

	if recent := st.RecentCompletions(opts.History); len(recent) > 0 {
		lines = append(lines, "", fmt.Sprintf("Completed (%d)", len(st.Completions)))
		for _, c := range recent {
			lines = append(lines, doneStyle.Render("✓ "+c.String()))
		}
	}

	style := boxStyle
	if opts.Width > 4 {
		style = style.Width(opts.Width - 2)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func lazyLine(keys keymap.KeyMap, delay time.Duration) string {
	inc := helpKey(keys.LazyIncrement.Keys(), 0)
	dec := helpKey(keys.LazyDecrement.Keys(), 0)
	if delay <= 0 {
		return fmt.Sprintf("Press `%s` and `%s` to do the same lazily.", inc, dec)
	}
	return fmt.Sprintf("Press `%s` and `%s` to do the same after %s.", inc, dec, delay)
}

// helpKey picks keys[idx], falling back to the first key.
func helpKey(keys []string, idx int) string {
	if len(keys) == 0 {
		return "?"
	}
	if idx >= len(keys) {
		idx = 0
	}
	name := keys[idx]
	if strings.HasPrefix(name, "ctrl+") {
		return "Ctrl-" + strings.ToUpper(strings.TrimPrefix(name, "ctrl+"))
	}
	return name
}
