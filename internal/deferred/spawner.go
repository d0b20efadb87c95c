// Package deferred simulates latency-bearing work. Each lazy request gets its
// own goroutine that sleeps for a fixed delay and then re-injects the resolved
// intent onto the bus. Goroutines are neither tracked nor cancelled.
package deferred

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/lazycounter/internal/bus"
	"github.com/kingrea/lazycounter/internal/intent"
)

// DefaultDelay stands in for a network round trip.
const DefaultDelay = 5 * time.Second

// Submitter is the capability a deferred goroutine uses to deliver its
// resolution. bus.Sender satisfies it.
type Submitter interface {
	SubmitEvent(bus.ActionEvent) error
}

// Option customizes Spawner construction.
type Option func(*Spawner)

// WithLogger injects a logger for spawn and drop diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Spawner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAfter replaces time.After, letting tests decide when delays elapse.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Spawner) {
		if after != nil {
			s.after = after
		}
	}
}

// Spawner schedules resolutions for lazy intents.
type Spawner struct {
	sender Submitter
	delay  time.Duration
	after  func(time.Duration) <-chan time.Time
	logger *zap.Logger
}

// New wires a Spawner to a submission capability. Negative delays are
// treated as zero.
func New(sender Submitter, delay time.Duration, opts ...Option) *Spawner {
	if delay < 0 {
		delay = 0
	}
	s := &Spawner{
		sender: sender,
		delay:  delay,
		after:  time.After,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Delay returns the configured latency.
func (s *Spawner) Delay() time.Duration {
	return s.delay
}

// Spawn allocates a correlation id and starts a goroutine that submits
// resolved tagged with that id once the delay elapses. It returns at once.
func (s *Spawner) Spawn(original, resolved intent.Intent) bus.CorrelationID {
	id := bus.NextCorrelationID()
	wait := s.after(s.delay)
	s.logger.Debug("deferred action scheduled",
		zap.Uint64("id", uint64(id)),
		zap.Stringer("intent", original),
		zap.Duration("delay", s.delay),
	)
	go s.resolve(wait, bus.ActionEvent{Intent: resolved, ID: id})
	return id
}

func (s *Spawner) resolve(wait <-chan time.Time, ev bus.ActionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("deferred action panicked",
				zap.Uint64("id", uint64(ev.ID)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	<-wait
	if err := s.sender.SubmitEvent(ev); err != nil {
		if errors.Is(err, bus.ErrClosed) {
			s.logger.Debug("deferred action dropped after shutdown", zap.Uint64("id", uint64(ev.ID)))
			return
		}
		s.logger.Warn("deferred action lost", zap.Uint64("id", uint64(ev.ID)), zap.Error(err))
	}
}
