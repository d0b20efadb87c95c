// internal/tui/app.go
//
// This is the terminal front end for lazycounter. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: the App below, wrapping the dispatch loop
// 2. Update: every key press, tick and bus wake-up is handed to Loop.Step
// 3. View: renders a snapshot of the counter state
//
// bubbletea owns the terminal: raw mode, the alternate screen, and restoring
// both on quit, panic or a cancelled context.

package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/lazycounter/internal/bus"
	"github.com/kingrea/lazycounter/internal/dispatch"
	"github.com/kingrea/lazycounter/internal/keymap"
)

const defaultTickRate = 250 * time.Millisecond

// tickMsg forces a periodic wake-up so deferred resolutions get drained even
// when the user is idle.
type tickMsg time.Time

// busReadyMsg reports that something was submitted onto the bus.
type busReadyMsg struct {
	closed bool
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithTickRate overrides the periodic wake-up interval.
func WithTickRate(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.tickRate = d
		}
	}
}

// WithHistory sets how many completion records are shown.
func WithHistory(n int) AppOption {
	return func(a *App) {
		if n >= 0 {
			a.frame.History = n
		}
	}
}

// WithDelay lets the instructions mention the configured lazy delay.
func WithDelay(d time.Duration) AppOption {
	return func(a *App) {
		a.frame.Delay = d
	}
}

// WithLogger injects a logger.
func WithLogger(logger *zap.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// App is the bubbletea model. All state lives in the dispatch loop; App only
// adds what the screen needs.
type App struct {
	loop     *dispatch.Loop
	bus      *bus.Bus
	keys     keymap.KeyMap
	tickRate time.Duration
	logger   *zap.Logger

	// UI components
	help    help.Model
	spinner spinner.Model
	frame   FrameOptions

	// Window size (we get this from bubbletea)
	width  int
	height int

	quitting bool
	err      error
}

// NewApp creates a new App around a dispatch loop and the bus it drains.
func NewApp(loop *dispatch.Loop, b *bus.Bus, keys keymap.KeyMap, opts ...AppOption) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	app := &App{
		loop:     loop,
		bus:      b,
		keys:     keys,
		tickRate: defaultTickRate,
		logger:   zap.NewNop(),
		help:     help.New(),
		spinner:  sp,
		frame:    FrameOptions{History: 5},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

// Err returns the error that ended the session, if any.
func (a *App) Err() error {
	return a.err
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.tick(), waitForBus(a.bus), a.spinner.Tick)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.quitting {
		return a, nil
	}
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tickMsg:
		if cmd := a.step(msg); cmd != nil {
			return a, cmd
		}
		return a, a.tick()

	case busReadyMsg:
		if msg.closed {
			return a, nil
		}
		if cmd := a.step(msg); cmd != nil {
			return a, cmd
		}
		return a, waitForBus(a.bus)

	case tea.KeyMsg:
		return a, a.step(msg)
	}
	return a, nil
}

// step runs one dispatch tick and returns tea.Quit once the session is over.
func (a *App) step(msg tea.Msg) tea.Cmd {
	quit, err := a.loop.Step(msg)
	if err != nil {
		a.err = err
		a.logger.Error("dispatch step failed", zap.Error(err))
	}
	if quit || err != nil {
		a.quitting = true
		a.loop.Close()
		return tea.Quit
	}
	return nil
}

// View renders the current state.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	opts := a.frame
	opts.Width = a.width
	opts.Spinner = a.spinner.View()
	return Frame(a.loop.State(), a.keys, opts) + "\n" + a.help.View(a.keys)
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(a.tickRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForBus blocks until the bus signals a submission or is closed.
func waitForBus(b *bus.Bus) tea.Cmd {
	return func() tea.Msg {
		_, ok := <-b.Ready()
		return busReadyMsg{closed: !ok}
	}
}
