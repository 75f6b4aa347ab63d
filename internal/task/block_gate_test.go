package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/throttleq/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestBlockQueue_DefersAdmission(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 2
	q := newTestQueue(t, cfg)

	release := q.BlockQueue(0)
	blocked, until := q.BlockStatus()
	assert.True(t, blocked)
	assert.True(t, until.IsZero())

	var ran atomic.Bool
	_, err := q.Add(func(ctx context.Context) (any, error) {
		ran.Store(true)
		return "after", nil
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.Equal(t, 1, q.NumberQueued())
	assert.Equal(t, 0, q.NumberPending())

	require.NoError(t, q.UnblockQueue())
	assert.True(t, isClosed(release))

	results, err := q.IsDone(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []any{"after"}, results)

	blocked, until = q.BlockStatus()
	assert.False(t, blocked)
	assert.True(t, until.IsZero())
}

func TestBlockQueue_RunningTasksContinue(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 2
	q := newTestQueue(t, cfg)
	rec := recordEvents(q)

	started := make(chan struct{})
	proceed := make(chan struct{})
	slow, err := q.Add(func(ctx context.Context) (any, error) {
		close(started)
		<-proceed
		return "slow", nil
	}, WithName("slow"))
	require.NoError(t, err)

	<-started
	q.BlockQueue(0)

	next, err := q.Add(value("next", 0), WithName("next"))
	require.NoError(t, err)

	close(proceed)
	result, err := slow.Wait(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "slow", result)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateQueued, next.State())

	require.NoError(t, q.UnblockQueue())
	_, err = next.Wait(testContext(t))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(rec.kindsFor("slow")) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t,
		[]events.Kind{events.KindQueued, events.KindStart, events.KindBlocked, events.KindComplete},
		rec.kindsFor("slow"))
}

func TestBlockQueue_EventsForRunningTasks(t *testing.T) {
	q := newTestQueue(t, testConfig())
	rec := recordEvents(q)

	started := make(chan struct{})
	proceed := make(chan struct{})
	h, err := q.Add(func(ctx context.Context) (any, error) {
		close(started)
		<-proceed
		return nil, nil
	}, WithName("worker"))
	require.NoError(t, err)

	<-started
	q.BlockQueue(0)
	q.BlockQueue(0)
	require.NoError(t, q.UnblockQueue())
	close(proceed)

	_, err = h.Wait(testContext(t))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(rec.kindsFor("worker")) == 5
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t,
		[]events.Kind{events.KindQueued, events.KindStart, events.KindBlocked, events.KindUnblocked, events.KindComplete},
		rec.kindsFor("worker"))
}

func TestBlockQueue_Idempotent(t *testing.T) {
	q := newTestQueue(t, testConfig())

	first := q.BlockQueue(50 * time.Millisecond)
	second := q.BlockQueue(200 * time.Millisecond)
	assert.Equal(t, first, second)

	blocked, until := q.BlockStatus()
	assert.True(t, blocked)
	assert.WithinDuration(t, time.Now().Add(200*time.Millisecond), until, 50*time.Millisecond)

	// the first deadline no longer applies
	time.Sleep(100 * time.Millisecond)
	assert.False(t, isClosed(first))

	require.Eventually(t, func() bool {
		return isClosed(first)
	}, time.Second, 5*time.Millisecond)

	blocked, until = q.BlockStatus()
	assert.False(t, blocked)
	assert.True(t, until.IsZero())
	assert.ErrorIs(t, q.UnblockQueue(), ErrNotBlocked)
}

func TestBlockQueue_ReblockIndefinitely(t *testing.T) {
	q := newTestQueue(t, testConfig())

	release := q.BlockQueue(30 * time.Millisecond)
	q.BlockQueue(0)

	time.Sleep(80 * time.Millisecond)
	assert.False(t, isClosed(release))
	blocked, until := q.BlockStatus()
	assert.True(t, blocked)
	assert.True(t, until.IsZero())

	require.NoError(t, q.UnblockQueue())
	assert.True(t, isClosed(release))
}

func TestBlockQueue_ManualReleaseBeatsTimer(t *testing.T) {
	q := newTestQueue(t, testConfig())

	first := q.BlockQueue(40 * time.Millisecond)
	require.NoError(t, q.UnblockQueue())
	assert.True(t, isClosed(first))

	// a new block must not be released by the old timer
	second := q.BlockQueue(0)
	time.Sleep(80 * time.Millisecond)
	assert.False(t, isClosed(second))
	require.NoError(t, q.UnblockQueue())
}

func TestUnblockQueue_NotBlocked(t *testing.T) {
	q := newTestQueue(t, testConfig())
	assert.ErrorIs(t, q.UnblockQueue(), ErrNotBlocked)
}

func TestClose_ReleasesBlock(t *testing.T) {
	q := newTestQueue(t, testConfig())

	release := q.BlockQueue(time.Hour)
	q.Close()

	select {
	case <-release:
	case <-time.After(time.Second):
		t.Fatal("block was not released by Close")
	}
	blocked, until := q.BlockStatus()
	assert.False(t, blocked)
	assert.True(t, until.IsZero())

	assert.True(t, isClosed(q.BlockQueue(time.Hour)), "closed queue must not block")
	blocked, _ = q.BlockStatus()
	assert.False(t, blocked)
}
