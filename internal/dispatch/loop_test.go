package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kingrea/lazycounter/internal/bus"
	"github.com/kingrea/lazycounter/internal/counter"
	"github.com/kingrea/lazycounter/internal/deferred"
	"github.com/kingrea/lazycounter/internal/intent"
	"github.com/kingrea/lazycounter/internal/keymap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type tick struct{}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newLoop(delay time.Duration) (*Loop, *bus.Bus) {
	b := bus.New()
	spawner := deferred.New(b.Sender(), delay)
	m := counter.New(spawner)
	return New(b, keymap.Default(), m), b
}

func stepAll(t *testing.T, l *Loop, msgs ...tea.Msg) {
	t.Helper()
	for _, msg := range msgs {
		_, err := l.Step(msg)
		require.NoError(t, err)
	}
}

// stepUntil keeps ticking until cond holds, like the periodic wake-up does.
func stepUntil(t *testing.T, l *Loop, cond func(counter.State) bool) counter.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, err := l.Step(tick{})
		require.NoError(t, err)
		if st := l.State(); cond(st) {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached before deadline; state %+v", l.State())
	return counter.State{}
}

func TestStepAppliesImmediateIntents(t *testing.T) {
	l, _ := newLoop(time.Hour)
	defer l.Close()
	stepAll(t, l, key('j'), key('j'), key('k'))
	assert.Equal(t, uint(1), l.State().Counter)
}

func TestStepDecrementAtZero(t *testing.T) {
	l, _ := newLoop(time.Hour)
	defer l.Close()
	stepAll(t, l, key('k'))
	assert.Equal(t, uint(0), l.State().Counter)
}

func TestStepIgnoresUnmappedInput(t *testing.T) {
	l, _ := newLoop(time.Hour)
	defer l.Close()
	stepAll(t, l, key('x'), tea.WindowSizeMsg{Width: 10, Height: 10}, tick{})
	st := l.State()
	assert.Equal(t, uint(0), st.Counter)
	assert.Empty(t, st.Pending)
}

func TestLazyIncrementResolvesThroughBus(t *testing.T) {
	l, _ := newLoop(20 * time.Millisecond)
	defer l.Close()

	stepAll(t, l, key('J'))
	st := l.State()
	require.Len(t, st.Pending, 1)
	assert.Equal(t, uint(0), st.Counter)
	id := st.Pending[0].ID

	st = stepUntil(t, l, func(s counter.State) bool { return len(s.Completions) == 1 })
	assert.Equal(t, uint(1), st.Counter)
	assert.Empty(t, st.Pending)
	assert.Equal(t, id, st.Completions[0].ID)
}

// Starting above zero keeps either resolution order from hitting the floor.
func TestLazyPairSettlesBackToStart(t *testing.T) {
	l, _ := newLoop(10 * time.Millisecond)
	defer l.Close()

	stepAll(t, l, key('j'), key('J'), key('K'))
	st := l.State()
	require.Len(t, st.Pending, 2)
	assert.Equal(t, uint(1), st.Counter)
	assert.NotEqual(t, st.Pending[0].ID, st.Pending[1].ID)
	assert.Less(t, uint64(st.Pending[0].ID), uint64(st.Pending[1].ID))

	st = stepUntil(t, l, func(s counter.State) bool { return len(s.Completions) == 2 })
	assert.Equal(t, uint(1), st.Counter)
	assert.Empty(t, st.Pending)
}

// From zero the result depends on which resolution lands first.
func TestLazyPairFromZeroEndsAtZeroOrOne(t *testing.T) {
	l, _ := newLoop(10 * time.Millisecond)
	defer l.Close()

	stepAll(t, l, key('J'), key('K'))
	st := stepUntil(t, l, func(s counter.State) bool { return len(s.Completions) == 2 })
	assert.Contains(t, []uint{0, 1}, st.Counter)
	assert.Empty(t, st.Pending)
}

func TestQuitStopsApplyingQueuedEvents(t *testing.T) {
	l, b := newLoop(time.Hour)
	defer l.Close()

	// Quit and an increment land in the same drain.
	require.NoError(t, b.Submit(intent.Quit))
	require.NoError(t, b.Submit(intent.Increment))
	quit, err := l.Step(tick{})
	require.NoError(t, err)
	assert.True(t, quit)
	assert.True(t, l.State().Quit)
	assert.Equal(t, uint(0), l.State().Counter)

	quit, err = l.Step(key('j'))
	assert.True(t, quit)
	assert.ErrorIs(t, err, ErrStopped)
	assert.True(t, l.State().Quit)
}

func TestQuitWithPendingLazyDoesNotCancel(t *testing.T) {
	l, b := newLoop(5 * time.Millisecond)
	stepAll(t, l, key('J'), key('q'))
	require.True(t, l.Quit())
	l.Close()
	require.True(t, b.Closed())
	// The deferred goroutine finishes on its own against the closed bus;
	// goleak in TestMain catches it if it never exits.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, l.State().Pending, 1)
}

type scriptSource struct {
	msgs []tea.Msg
	err  error
}

func (s *scriptSource) Next(ctx context.Context) (tea.Msg, error) {
	if len(s.msgs) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	msg := s.msgs[0]
	s.msgs = s.msgs[1:]
	return msg, nil
}

func TestRunRendersEveryStepAndClosesBus(t *testing.T) {
	l, b := newLoop(time.Hour)
	src := &scriptSource{msgs: []tea.Msg{key('j'), key('j'), key('q'), key('j')}}
	var frames []counter.State
	err := l.Run(context.Background(), src, RendererFunc(func(s counter.State) error {
		frames = append(frames, s)
		return nil
	}))
	require.NoError(t, err)
	require.Len(t, frames, 4, "initial frame plus one per consumed event")
	assert.Equal(t, uint(2), frames[len(frames)-1].Counter)
	assert.True(t, frames[len(frames)-1].Quit)
	assert.Len(t, src.msgs, 1, "input after quit is never read")
	assert.True(t, b.Closed())
}

func TestRunInputFailureIsFatal(t *testing.T) {
	l, b := newLoop(time.Hour)
	boom := errors.New("tty gone")
	src := &scriptSource{msgs: []tea.Msg{key('j')}, err: boom}
	err := l.Run(context.Background(), src, RendererFunc(func(counter.State) error { return nil }))
	assert.ErrorIs(t, err, ErrInputSource)
	assert.ErrorIs(t, err, boom)
	assert.True(t, b.Closed())
}

func TestRunRenderFailureIsFatal(t *testing.T) {
	l, b := newLoop(time.Hour)
	boom := errors.New("draw failed")
	calls := 0
	src := &scriptSource{msgs: []tea.Msg{key('j'), key('j')}}
	err := l.Run(context.Background(), src, RendererFunc(func(counter.State) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}))
	assert.ErrorIs(t, err, ErrRender)
	assert.ErrorIs(t, err, boom)
	assert.True(t, b.Closed())
}

func TestRunHonoursContextCancellation(t *testing.T) {
	l, b := newLoop(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptSource{}
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, src, RendererFunc(func(counter.State) error { return nil }))
	}()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
	assert.True(t, b.Closed())
}
