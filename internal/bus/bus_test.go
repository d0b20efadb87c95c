package bus

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/lazycounter/internal/intent"
)

func TestDrainReadyPreservesSubmissionOrder(t *testing.T) {
	b := New()
	seq := []intent.Intent{intent.Increment, intent.Increment, intent.Decrement, intent.LazyIncrement, intent.Quit}
	for _, i := range seq {
		require.NoError(t, b.Submit(i))
	}
	got := b.DrainReady()
	want := make([]ActionEvent, 0, len(seq))
	for _, i := range seq {
		want = append(want, ActionEvent{Intent: i})
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("drain order mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, b.DrainReady(), "second drain should be empty")
}

func TestDrainReadyOnEmptyBusDoesNotBlock(t *testing.T) {
	b := New()
	assert.Nil(t, b.DrainReady())
	assert.Equal(t, 0, b.Len())
}

func TestSenderAndBusShareOneOrder(t *testing.T) {
	b := New()
	s := b.Sender()
	clone := s
	require.NoError(t, b.Submit(intent.Increment))
	require.NoError(t, s.SubmitEvent(ActionEvent{Intent: intent.Decrement, ID: 7}))
	require.NoError(t, clone.Submit(intent.Quit))

	got := b.DrainReady()
	want := []ActionEvent{
		{Intent: intent.Increment},
		{Intent: intent.Decrement, ID: 7},
		{Intent: intent.Quit},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

// Each producer holds the turn while it submits, so the global submission
// order is known and must be reproduced by DrainReady.
func TestConcurrentProducersKeepGlobalOrder(t *testing.T) {
	b := New()
	const producers = 8
	const perProducer = 50

	var (
		turn     sync.Mutex
		recorded []ActionEvent
	)
	var g errgroup.Group
	for p := 0; p < producers; p++ {
		sender := b.Sender()
		id := CorrelationID(p + 1)
		g.Go(func() error {
			for n := 0; n < perProducer; n++ {
				turn.Lock()
				ev := ActionEvent{Intent: intent.Increment, ID: id}
				err := sender.SubmitEvent(ev)
				if err == nil {
					recorded = append(recorded, ev)
				}
				turn.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got := b.DrainReady()
	require.Len(t, got, producers*perProducer)
	if diff := cmp.Diff(recorded, got); diff != "" {
		t.Fatalf("drain diverged from submission order (-want +got):\n%s", diff)
	}
}

func TestSubmitAfterCloseFails(t *testing.T) {
	b := New()
	require.NoError(t, b.Submit(intent.Increment))
	b.Close()
	b.Close()

	assert.True(t, b.Closed())
	assert.True(t, errors.Is(b.Submit(intent.Increment), ErrClosed))
	assert.True(t, errors.Is(b.Sender().SubmitEvent(ActionEvent{Intent: intent.Increment, ID: 1}), ErrClosed))
	assert.Nil(t, b.DrainReady(), "queued events are discarded on close")

	_, open := <-b.Ready()
	assert.False(t, open, "ready channel should be closed")
}

func TestZeroSenderActsClosed(t *testing.T) {
	var s Sender
	assert.ErrorIs(t, s.Submit(intent.Increment), ErrClosed)
}

func TestReadySignalsCoalesced(t *testing.T) {
	b := New()
	require.NoError(t, b.Submit(intent.Increment))
	require.NoError(t, b.Submit(intent.Decrement))

	select {
	case <-b.Ready():
	default:
		t.Fatalf("expected a ready signal after submission")
	}
	select {
	case <-b.Ready():
		t.Fatalf("ready signals should coalesce")
	default:
	}
	assert.Equal(t, 2, b.Len())
}

func TestCorrelationIDsUniqueAndIncreasing(t *testing.T) {
	first := NextCorrelationID()
	second := NextCorrelationID()
	require.Greater(t, uint64(second), uint64(first))

	const workers = 16
	const each = 200
	var (
		mu  sync.Mutex
		all []CorrelationID
	)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			local := make([]CorrelationID, 0, each)
			for n := 0; n < each; n++ {
				id := NextCorrelationID()
				if len(local) > 0 && id <= local[len(local)-1] {
					return errors.New("ids went backwards within one goroutine")
				}
				local = append(local, id)
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			t.Fatalf("duplicate correlation id %d", all[i])
		}
	}
	assert.Greater(t, uint64(all[0]), uint64(second))
}
