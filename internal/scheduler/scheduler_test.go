package scheduler

import (
	"context"
	"testing"
	"time"

	"hrm/config"
	"hrm/internal/cache"
	"hrm/internal/logger"
	"hrm/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	released  int
	processed int
	batch     int
	err       error
}

func (f *fakeQueue) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.released++
	return 0, nil
}

func (f *fakeQueue) ProcessQueue(ctx context.Context, batchSize int) (notify.ProcessResult, error) {
	f.processed++
	f.batch = batchSize
	return notify.ProcessResult{Processed: 1, Sent: 1}, f.err
}

func testConfig() config.QueueConfig {
	return config.QueueConfig{Enabled: true, Schedule: "@every 1m", BatchSize: 25, StaleTimeout: time.Minute}
}

func TestRunOnce_ProcessesBatch(t *testing.T) {
	q := &fakeQueue{}
	p := NewQueuePump(q, cache.LocalLocker{}, testConfig(), logger.Nop())

	p.RunOnce(context.Background())
	assert.Equal(t, 1, q.released)
	assert.Equal(t, 1, q.processed)
	assert.Equal(t, 25, q.batch)
}

func TestRunOnce_MailerNotConfiguredIsQuiet(t *testing.T) {
	q := &fakeQueue{err: notify.ErrMailerNotConfigured}
	p := NewQueuePump(q, cache.LocalLocker{}, testConfig(), logger.Nop())
	p.RunOnce(context.Background())
	assert.Equal(t, 1, q.processed)
}

func TestRunOnce_SkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	locker := cache.NewRedisLocker(rdb)

	release, ok, err := locker.TryLock(context.Background(), lockName, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	q := &fakeQueue{}
	p := NewQueuePump(q, locker, testConfig(), logger.Nop())
	p.RunOnce(context.Background())
	assert.Equal(t, 0, q.processed)

	release()
	p.RunOnce(context.Background())
	assert.Equal(t, 1, q.processed)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = "not a schedule"
	p := NewQueuePump(&fakeQueue{}, cache.LocalLocker{}, cfg, logger.Nop())
	assert.Error(t, p.Start())
}
