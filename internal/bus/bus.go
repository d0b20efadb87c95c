package bus

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kingrea/lazycounter/internal/intent"
)

// ErrClosed is returned by submissions after the consuming side was torn down.
var ErrClosed = errors.New("bus: closed")

// CorrelationID pairs a deferred request with its eventual resolution.
// Zero means "no correlation id".
type CorrelationID uint64

var lastID atomic.Uint64

// NextCorrelationID allocates a process-wide id. Ids start at 1 and are
// strictly increasing across goroutines.
func NextCorrelationID() CorrelationID {
	return CorrelationID(lastID.Add(1))
}

// ActionEvent is the unit carried on the bus.
type ActionEvent struct {
	Intent intent.Intent
	ID     CorrelationID
}

// HasID reports whether the event resolves a deferred request.
func (e ActionEvent) HasID() bool {
	return e.ID != 0
}

// Option customizes Bus construction.
type Option func(*Bus)

// WithLogger injects a logger for submission diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bus is an unbounded multi-producer, single-consumer FIFO of ActionEvents.
// Producers may be any goroutine; DrainReady must only be called by the owner.
type Bus struct {
	mu     sync.Mutex
	queue  []ActionEvent
	closed bool
	ready  chan struct{}
	logger *zap.Logger
}

// New constructs an empty, open bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		ready:  make(chan struct{}, 1),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Submit enqueues an intent with no correlation id.
func (b *Bus) Submit(i intent.Intent) error {
	return b.push(ActionEvent{Intent: i})
}

// DrainReady returns every queued event in submission order without waiting.
// It returns nil when nothing is queued or the bus is closed.
func (b *Bus) DrainReady() []ActionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	out := b.queue
	b.queue = nil
	return out
}

// Len reports how many events are waiting to be drained.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Ready yields a value whenever events were submitted since the last receive.
// Wake-ups are coalesced; the channel is closed by Close.
func (b *Bus) Ready() <-chan struct{} {
	return b.ready
}

// Sender returns a submission capability for background producers.
func (b *Bus) Sender() Sender {
	return Sender{bus: b}
}

// Close tears down the consuming side. Queued events are discarded and every
// later submission fails with ErrClosed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if dropped := len(b.queue); dropped > 0 {
		b.logger.Debug("bus closed with queued events", zap.Int("dropped", dropped))
	}
	b.queue = nil
	// Drop a pending wake-up so receivers see the close, not a stale token.
	select {
	case <-b.ready:
	default:
	}
	close(b.ready)
}

// Closed reports whether Close has run.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) push(ev ActionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.queue = append(b.queue, ev)
	select {
	case b.ready <- struct{}{}:
	default:
	}
	return nil
}

// Sender is a cheap, copyable handle that submits onto a Bus. The zero value
// behaves like a handle to a closed bus.
type Sender struct {
	bus *Bus
}

// Submit enqueues an intent with no correlation id.
func (s Sender) Submit(i intent.Intent) error {
	return s.SubmitEvent(ActionEvent{Intent: i})
}

// SubmitEvent enqueues a fully formed event, typically a resolution.
func (s Sender) SubmitEvent(ev ActionEvent) error {
	if s.bus == nil {
		return ErrClosed
	}
	return s.bus.push(ev)
}
