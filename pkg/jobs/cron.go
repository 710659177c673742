// Package jobs schedules the campaign dispatch loop and the nightly stats
// rebuild.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/leadflow/pkg/analytics"
	"github.com/jordanlanch/leadflow/pkg/campaign"
	"github.com/jordanlanch/leadflow/pkg/logger"
)

// ErrBusy is returned when a dispatch run is already in progress
var ErrBusy = errors.New("send queue is already being processed")

// Job timeouts
const (
	SendQueueTimeout    = 10 * time.Minute
	StatsRebuildTimeout = 30 * time.Minute
)

// SendQueue processes queued campaign sends
type SendQueue interface {
	ProcessSendQueue(ctx context.Context, batchSize int) (*campaign.ProcessResult, error)
}

// StatsRebuilder recomputes the lead stats from scratch
type StatsRebuilder interface {
	Rebuild(ctx context.Context) (*analytics.Snapshot, error)
}

// Config holds the cron specs and the dispatch batch size
type Config struct {
	SendQueueSchedule    string
	StatsRebuildSchedule string
	BatchSize            int
}

// Scheduler runs the periodic jobs. Dispatch runs never overlap, whether
// started by cron or triggered manually.
type Scheduler struct {
	cron    *cron.Cron
	config  Config
	sends   SendQueue
	stats   StatsRebuilder
	logger  logger.Logger
	running sync.Mutex
}

// NewScheduler creates a scheduler. Jobs are registered by Setup.
func NewScheduler(cfg Config, sends SendQueue, stats StatsRebuilder, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		config: cfg,
		sends:  sends,
		stats:  stats,
		logger: log,
	}
}

// Setup registers the jobs with their schedules
func (s *Scheduler) Setup() error {
	if _, err := s.cron.AddFunc(s.config.SendQueueSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), SendQueueTimeout)
		defer cancel()
		if _, err := s.RunSendQueue(ctx, 0); err != nil && !errors.Is(err, ErrBusy) {
			s.logger.Error("scheduled send queue run failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.config.StatsRebuildSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), StatsRebuildTimeout)
		defer cancel()
		if err := s.RunStatsRebuild(ctx); err != nil {
			s.logger.Error("scheduled stats rebuild failed", "error", err)
		}
	}); err != nil {
		return err
	}

	s.logger.Info("cron jobs configured",
		"send_queue", s.config.SendQueueSchedule,
		"stats_rebuild", s.config.StatsRebuildSchedule,
	)
	return nil
}

// RunSendQueue processes one batch unless another run is in progress.
// A batchSize of zero uses the configured size.
func (s *Scheduler) RunSendQueue(ctx context.Context, batchSize int) (*campaign.ProcessResult, error) {
	if !s.running.TryLock() {
		s.logger.Debug("send queue run skipped, previous run still active")
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	if batchSize <= 0 {
		batchSize = s.config.BatchSize
	}
	res, err := s.sends.ProcessSendQueue(ctx, batchSize)
	if err != nil {
		return res, err
	}
	if res.Processed > 0 {
		s.logger.Info("send queue processed", "processed", res.Processed)
	}
	return res, nil
}

// RunStatsRebuild recomputes the stats counters
func (s *Scheduler) RunStatsRebuild(ctx context.Context) error {
	snap, err := s.stats.Rebuild(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("stats rebuilt", "total", snap.Total)
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.logger.Info("starting cron scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping cron scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("cron jobs still running at shutdown")
	}
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
