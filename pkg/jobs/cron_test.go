package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadflow/pkg/analytics"
	"github.com/jordanlanch/leadflow/pkg/campaign"
	"github.com/jordanlanch/leadflow/pkg/logger"
)

type fakeQueue struct {
	calls     int32
	lastBatch int32
	block     chan struct{}
	started   chan struct{}
	once      sync.Once
	err       error
}

func (q *fakeQueue) ProcessSendQueue(ctx context.Context, batchSize int) (*campaign.ProcessResult, error) {
	atomic.AddInt32(&q.calls, 1)
	atomic.StoreInt32(&q.lastBatch, int32(batchSize))
	if q.started != nil {
		q.once.Do(func() { close(q.started) })
	}
	if q.block != nil {
		<-q.block
	}
	return &campaign.ProcessResult{Processed: batchSize}, q.err
}

type fakeStats struct {
	calls int32
	err   error
}

func (s *fakeStats) Rebuild(ctx context.Context) (*analytics.Snapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return &analytics.Snapshot{Total: 7}, nil
}

func testConfig() Config {
	return Config{SendQueueSchedule: "@every 1m", StatsRebuildSchedule: "0 3 * * *", BatchSize: 10}
}

func TestRunSendQueue_UsesConfiguredBatchSize(t *testing.T) {
	q := &fakeQueue{}
	s := NewScheduler(testConfig(), q, &fakeStats{}, logger.Nop())

	res, err := s.RunSendQueue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Processed)
	assert.EqualValues(t, 10, atomic.LoadInt32(&q.lastBatch))

	_, err = s.RunSendQueue(context.Background(), 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&q.lastBatch))
}

func TestRunSendQueue_SkipsOverlappingRuns(t *testing.T) {
	q := &fakeQueue{block: make(chan struct{}), started: make(chan struct{})}
	s := NewScheduler(testConfig(), q, &fakeStats{}, logger.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := s.RunSendQueue(context.Background(), 1)
		done <- err
	}()

	select {
	case <-q.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}

	_, err := s.RunSendQueue(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBusy)

	close(q.block)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, atomic.LoadInt32(&q.calls))

	_, err = s.RunSendQueue(context.Background(), 1)
	assert.NoError(t, err)
}

func TestRunSendQueue_PropagatesError(t *testing.T) {
	q := &fakeQueue{err: errors.New("db locked")}
	s := NewScheduler(testConfig(), q, &fakeStats{}, logger.Nop())

	_, err := s.RunSendQueue(context.Background(), 1)
	assert.EqualError(t, err, "db locked")
}

func TestRunStatsRebuild(t *testing.T) {
	stats := &fakeStats{}
	s := NewScheduler(testConfig(), &fakeQueue{}, stats, logger.Nop())
	require.NoError(t, s.RunStatsRebuild(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&stats.calls))

	stats.err = errors.New("boom")
	assert.Error(t, s.RunStatsRebuild(context.Background()))
}

func TestSetup_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SendQueueSchedule = "every minute"
	s := NewScheduler(cfg, &fakeQueue{}, &fakeStats{}, logger.Nop())
	assert.Error(t, s.Setup())

	s = NewScheduler(testConfig(), &fakeQueue{}, &fakeStats{}, logger.Nop())
	require.NoError(t, s.Setup())
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
