package dispatch

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/lazycounter/internal/bus"
	"github.com/kingrea/lazycounter/internal/counter"
	"github.com/kingrea/lazycounter/internal/keymap"
)

var (
	// ErrStopped is returned by Step once quit has been observed.
	ErrStopped = errors.New("dispatch: loop stopped")
	// ErrInputSource wraps failures reading the next input event.
	ErrInputSource = errors.New("dispatch: input source failed")
	// ErrRender wraps failures drawing a frame.
	ErrRender = errors.New("dispatch: render failed")
)

// Source supplies raw input events, blocking until one is available.
type Source interface {
	Next(ctx context.Context) (tea.Msg, error)
}

// Renderer draws one frame from a state snapshot.
type Renderer interface {
	Render(counter.State) error
}

// RendererFunc adapts a function into a Renderer.
type RendererFunc func(counter.State) error

// Render executes f(state).
func (f RendererFunc) Render(state counter.State) error {
	if f == nil {
		return nil
	}
	return f(state)
}

// Option customizes Loop construction.
type Option func(*Loop)

// WithLogger injects a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop is the sole mutator of application state. It is not safe for
// concurrent use; producers talk to it through the bus.
type Loop struct {
	bus     *bus.Bus
	decoder keymap.Decoder
	machine *counter.Machine
	logger  *zap.Logger
	stopped bool
}

// New wires a loop to its bus, decoder and state machine.
func New(b *bus.Bus, dec keymap.Decoder, m *counter.Machine, opts ...Option) *Loop {
	l := &Loop{
		bus:     b,
		decoder: dec,
		machine: m,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Step handles one input event: decode and submit it, then drain the bus and
// apply every ready event in order. Application stops at the first event
// that leaves the quit flag set; whatever was drained after it is discarded.
func (l *Loop) Step(msg tea.Msg) (bool, error) {
	if l.stopped {
		return true, ErrStopped
	}
	if in, ok := l.decoder.Decode(msg); ok {
		if err := l.bus.Submit(in); err != nil {
			return false, fmt.Errorf("dispatch: submit %s: %w", in, err)
		}
		l.logger.Debug("intent submitted", zap.Stringer("intent", in))
	}
	events := l.bus.DrainReady()
	for n, ev := range events {
		l.machine.Apply(ev)
		if l.machine.Quit() {
			l.stopped = true
			if skipped := len(events) - n - 1; skipped > 0 {
				l.logger.Debug("discarding events drained after quit", zap.Int("skipped", skipped))
			}
			break
		}
	}
	return l.stopped, nil
}

// Quit reports whether the loop has observed the quit flag.
func (l *Loop) Quit() bool {
	return l.stopped
}

// State returns a snapshot for rendering.
func (l *Loop) State() counter.State {
	return l.machine.State()
}

// Close tears down the consuming side of the bus. Deferred actions still in
// flight will find it closed and give up quietly.
func (l *Loop) Close() {
	l.bus.Close()
}

// Run drives the loop from src until quit is observed, rendering before the
// first read and after every step. The bus is closed on every exit path.
func (l *Loop) Run(ctx context.Context, src Source, r Renderer) error {
	defer l.Close()
	if err := r.Render(l.State()); err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	for !l.stopped {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := src.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			l.logger.Error("input source failed", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrInputSource, err)
		}
		if _, err := l.Step(msg); err != nil {
			return err
		}
		if err := r.Render(l.State()); err != nil {
			l.logger.Error("render failed", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrRender, err)
		}
	}
	l.logger.Info("dispatch loop finished", zap.Uint("counter", l.machine.State().Counter))
	return nil
}
