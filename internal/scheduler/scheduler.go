// Package scheduler pumps the email delivery queue on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"time"

	"hrm/config"
	"hrm/internal/cache"
	"hrm/internal/notify"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const lockName = "email-queue-pump"

// QueueWorker is the part of notify.Queue the pump drives.
type QueueWorker interface {
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
	ProcessQueue(ctx context.Context, batchSize int) (notify.ProcessResult, error)
}

type QueuePump struct {
	cron   *cron.Cron
	queue  QueueWorker
	locker cache.Locker
	cfg    config.QueueConfig
	log    *zap.Logger
}

func NewQueuePump(queue QueueWorker, locker cache.Locker, cfg config.QueueConfig, log *zap.Logger) *QueuePump {
	return &QueuePump{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		queue:  queue,
		locker: locker,
		cfg:    cfg,
		log:    log,
	}
}

// Start registers the pump on cfg.Schedule and starts the cron runner.
func (p *QueuePump) Start() error {
	if _, err := p.cron.AddFunc(p.cfg.Schedule, func() { p.RunOnce(context.Background()) }); err != nil {
		return err
	}
	p.cron.Start()
	p.log.Info("email queue pump started", zap.String("schedule", p.cfg.Schedule), zap.Int("batch_size", p.cfg.BatchSize))
	return nil
}

// Stop stops scheduling and waits for a running pass, bounded by ctx.
func (p *QueuePump) Stop(ctx context.Context) {
	done := p.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		p.log.Warn("email queue pump did not stop in time")
	}
}

// RunOnce performs one pass: fail entries stuck in PROCESSING, then deliver a
// batch. With a shared lock only one replica runs a pass at a time.
func (p *QueuePump) RunOnce(ctx context.Context) {
	ttl := p.cfg.StaleTimeout
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	release, ok, err := p.locker.TryLock(ctx, lockName, ttl)
	if err != nil {
		p.log.Error("queue pump lock failed", zap.Error(err))
		return
	}
	if !ok {
		p.log.Debug("queue pump skipped, another instance holds the lock")
		return
	}
	defer release()

	if n, err := p.queue.ReleaseStale(ctx, p.cfg.StaleTimeout); err != nil {
		p.log.Error("release stale emails failed", zap.Error(err))
	} else if n > 0 {
		p.log.Warn("stale emails marked failed", zap.Int64("count", n))
	}

	res, err := p.queue.ProcessQueue(ctx, p.cfg.BatchSize)
	if err != nil {
		if errors.Is(err, notify.ErrMailerNotConfigured) {
			p.log.Debug("queue pump idle, no mail transport configured")
			return
		}
		p.log.Error("queue pass failed", zap.Error(err))
		return
	}
	if res.Processed > 0 {
		p.log.Info("queue pass finished",
			zap.Int("processed", res.Processed),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped))
	}
}
