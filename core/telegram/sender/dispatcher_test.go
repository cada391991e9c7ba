package sender

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "", "send.turn", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	}))
	d.Close()

	assert.EqualValues(t, 3, calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherGivesUpOnPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "", "send.turn", "sendMessage", func() error {
		calls.Add(1)
		return tele.NewError(400, "Bad Request: chat not found")
	}))
	d.Close()

	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, d.ErrorCount())
}

func TestDispatcherStopsRetryingAtDeadline(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 10, RetryBackoff: time.Hour, MaxDuration: 20 * time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "", "send.turn", "sendMessage", func() error {
		calls.Add(1)
		return timeoutErr{}
	}))
	d.Close()

	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, d.ErrorCount())
}

func TestDispatcherQueueLimits(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	block := func() error {
		close(started)
		<-release
		return nil
	}

	require.NoError(t, d.Enqueue(context.Background(), "", "a", "", block))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "", "b", "", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "", "c", "", func() error { return nil }), ErrQueueFull)
	assert.Error(t, d.Enqueue(context.Background(), "", "d", "", nil))

	close(release)
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), "", "e", "", func() error { return nil }), ErrQueueClosed)
	d.Close()
}

func TestDispatcherKeepsOrderPerKey(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4})
	var (
		mu  sync.Mutex
		got = map[string][]int{}
	)
	for i := range 10 {
		for _, key := range []string{"1", "2", "3"} {
			require.NoError(t, d.Enqueue(context.Background(), key, "send.turn", "sendMessage", func() error {
				// Later jobs are faster, so any reordering within a key shows up.
				time.Sleep(time.Duration(10-i) * time.Millisecond)
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			}))
		}
	}
	d.Close()

	want := make([]int, 10)
	for i := range want {
		want[i] = i
	}
	for _, key := range []string{"1", "2", "3"} {
		assert.Equal(t, want, got[key], "key %s", key)
	}
}
