// Package counter holds the application state machine. Apply is the only way
// state changes, and it is called exclusively by the dispatch loop.
package counter

import (
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/lazycounter/internal/bus"
	"github.com/kingrea/lazycounter/internal/intent"
)

// Spawner schedules the resolution of a lazy intent and returns its id.
type Spawner interface {
	Spawn(original, resolved intent.Intent) bus.CorrelationID
}

// Option customizes Machine construction.
type Option func(*Machine)

// WithLogger injects a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp completions.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithInitial seeds the counter, mostly for tests around the bounds.
func WithInitial(value uint) Option {
	return func(m *Machine) {
		m.state.Counter = value
	}
}

// Machine applies action events to State.
type Machine struct {
	state   State
	spawner Spawner
	now     func() time.Time
	logger  *zap.Logger
}

// New builds a Machine with a zero state.
func New(spawner Spawner, opts ...Option) *Machine {
	m := &Machine{
		spawner: spawner,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	return m.state.Clone()
}

// Quit reports whether a Quit intent has been applied.
func (m *Machine) Quit() bool {
	return m.state.Quit
}

// Apply folds one event into the state.
func (m *Machine) Apply(ev bus.ActionEvent) {
	if ev.HasID() {
		m.resolve(ev)
		return
	}
	switch ev.Intent {
	case intent.Increment:
		m.state.increment()
	case intent.Decrement:
		m.state.decrement()
	case intent.LazyIncrement, intent.LazyDecrement:
		m.schedule(ev.Intent)
	case intent.Quit:
		if !m.state.Quit {
			m.logger.Info("quit requested", zap.Int("pending", len(m.state.Pending)))
		}
		m.state.Quit = true
	default:
		m.logger.Warn("ignoring unknown intent", zap.Int("intent", int(ev.Intent)))
	}
}

func (m *Machine) schedule(lazy intent.Intent) {
	if m.spawner == nil {
		m.logger.Warn("no spawner configured, dropping lazy intent", zap.Stringer("intent", lazy))
		return
	}
	id := m.spawner.Spawn(lazy, lazy.Resolved())
	m.state.Pending = append(m.state.Pending, PendingEntry{ID: id, Intent: lazy})
}

func (m *Machine) resolve(ev bus.ActionEvent) {
	resolved := ev.Intent.Resolved()
	if resolved != ev.Intent {
		m.logger.Warn("lazy intent arrived with an id, applying resolved form",
			zap.Uint64("id", uint64(ev.ID)), zap.Stringer("intent", ev.Intent))
	}
	switch resolved {
	case intent.Increment:
		m.state.increment()
	case intent.Decrement:
		m.state.decrement()
	default:
		m.logger.Warn("resolution carries a non-counter intent",
			zap.Uint64("id", uint64(ev.ID)), zap.Stringer("intent", ev.Intent))
		return
	}
	original := intent.None
	for _, p := range m.state.Pending {
		if p.ID == ev.ID {
			original = p.Intent
			break
		}
	}
	if removed := m.state.removePending(ev.ID); removed == 0 {
		m.logger.Warn("resolution without pending entry", zap.Uint64("id", uint64(ev.ID)))
	}
	if original == intent.None {
		original = resolved
	}
	m.state.Completions = append(m.state.Completions, Completion{ID: ev.ID, Intent: original, At: m.now()})
	m.logger.Debug("deferred action completed",
		zap.Uint64("id", uint64(ev.ID)), zap.Uint("counter", m.state.Counter))
}
