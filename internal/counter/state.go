package counter

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kingrea/lazycounter/internal/bus"
	"github.com/kingrea/lazycounter/internal/intent"
)

// Max is the largest value the counter can hold.
const Max uint = math.MaxUint

// PendingEntry describes one in-flight deferred action.
type PendingEntry struct {
	ID     bus.CorrelationID
	Intent intent.Intent
}

func (p PendingEntry) String() string {
	return fmt.Sprintf("%d: %s", p.ID, p.Intent.Describe())
}

// Completion records a resolved deferred action. Only renderers read it.
type Completion struct {
	ID     bus.CorrelationID
	Intent intent.Intent
	At     time.Time
}

func (c Completion) String() string {
	return fmt.Sprintf("Action %d completed", c.ID)
}

// State is the whole application state. It is owned by the dispatch loop.
type State struct {
	Counter     uint
	Quit        bool
	Pending     []PendingEntry
	Completions []Completion
}

// Clone returns a deep copy safe to hand to renderers.
func (s State) Clone() State {
	s.Pending = slices.Clone(s.Pending)
	s.Completions = slices.Clone(s.Completions)
	return s
}

// RecentCompletions returns at most n of the newest completion records,
// oldest first.
func (s State) RecentCompletions(n int) []Completion {
	if n <= 0 || len(s.Completions) == 0 {
		return nil
	}
	if len(s.Completions) <= n {
		return s.Completions
	}
	return s.Completions[len(s.Completions)-n:]
}

func (s *State) increment() {
	if s.Counter < Max {
		s.Counter++
	}
}

func (s *State) decrement() {
	if s.Counter > 0 {
		s.Counter--
	}
}

// removePending drops every entry keyed by id and reports how many went.
func (s *State) removePending(id bus.CorrelationID) int {
	before := len(s.Pending)
	s.Pending = slices.DeleteFunc(s.Pending, func(p PendingEntry) bool {
		return p.ID == id
	})
	return before - len(s.Pending)
}
