package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hrm/internal/domain"
	"hrm/internal/logger"
	"hrm/internal/models"
	"hrm/internal/repository"
	"hrm/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeMailer struct {
	mu         sync.Mutex
	configured bool
	SendFunc   func(to string) error
	sent       []string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendFunc != nil {
		if err := m.SendFunc(to); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *fakeMailer) Configured() bool { return m.configured }
func (m *fakeMailer) Name() string     { return "fake" }

func seedTemplate(t *testing.T, db *gorm.DB, nt domain.NotificationType) *models.EmailTemplate {
	t.Helper()
	tpl := &models.EmailTemplate{
		Name:     string(nt) + " template",
		Type:     string(nt),
		Subject:  "Hello {{name}}",
		HTMLBody: "<p>{{name}}</p>",
		IsActive: true,
	}
	require.NoError(t, db.Create(tpl).Error)
	return tpl
}

func newTestQueue(t *testing.T, mailer Mailer) (*Queue, *repository.EmailLogRepository, *gorm.DB) {
	db := testutil.NewDB(t)
	store := repository.NewEmailLogRepository(db)
	q := NewQueue(store, repository.NewRuleRepository(db), mailer, time.Second, logger.Nop())
	return q, store, db
}

func TestQueue_EnqueueWithoutTemplateIsNoop(t *testing.T) {
	q, store, _ := newTestQueue(t, &fakeMailer{configured: true})
	ctx := context.Background()

	entry, err := q.Enqueue(ctx, domain.NotifyWelcome, "new@example.com", nil)
	require.NoError(t, err)
	assert.Nil(t, entry)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[domain.EmailStatusPending])
}

func TestQueue_EnqueueRendersImmediately(t *testing.T) {
	q, _, db := newTestQueue(t, &fakeMailer{configured: true})
	seedTemplate(t, db, domain.NotifyWelcome)

	entry, err := q.Enqueue(context.Background(), domain.NotifyWelcome, "new@example.com", map[string]interface{}{"name": "Kai"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.EmailStatusPending, entry.Status)
	assert.Equal(t, "Hello Kai", entry.Subject)
	assert.Equal(t, "<p>Kai</p>", entry.RenderedBody)
	assert.Zero(t, entry.Attempts)
}

func TestQueue_ProcessSendsOnce(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	q, store, db := newTestQueue(t, mailer)
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)

	for _, addr := range []string{"a@example.com", "b@example.com"} {
		_, err := q.Enqueue(ctx, domain.NotifyWelcome, addr, nil)
		require.NoError(t, err)
	}

	res, err := q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Processed: 2, Sent: 2}, res)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, mailer.sent)

	// a SENT entry is never picked up again
	res, err = q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{}, res)
	assert.Len(t, mailer.sent, 2)

	logs, _, err := store.List(ctx, repository.EmailLogFilter{}, 1, 10)
	require.NoError(t, err)
	for _, l := range logs {
		assert.Equal(t, domain.EmailStatusSent, l.Status)
		assert.Equal(t, 1, l.Attempts)
		assert.NotNil(t, l.SentAt)
	}
}

func TestQueue_ProcessRespectsBatchSize(t *testing.T) {
	q, store, db := newTestQueue(t, &fakeMailer{configured: true})
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, domain.NotifyWelcome, "x@example.com", nil)
		require.NoError(t, err)
	}

	res, err := q.ProcessQueue(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.EmailStatusPending])
	assert.Equal(t, int64(2), counts[domain.EmailStatusSent])
}

func TestQueue_FailureAndRetry(t *testing.T) {
	mailer := &fakeMailer{configured: true, SendFunc: func(string) error { return errors.New("connection refused") }}
	q, store, db := newTestQueue(t, mailer)
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)

	entry, err := q.Enqueue(ctx, domain.NotifyWelcome, "a@example.com", nil)
	require.NoError(t, err)

	// retry is rejected while PENDING
	assert.ErrorIs(t, q.Retry(ctx, entry.ID), ErrNotRetryable)

	res, err := q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Processed: 1, Failed: 1}, res)

	failed, err := store.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusFailed, failed.Status)
	assert.Equal(t, 1, failed.Attempts)
	assert.Equal(t, "connection refused", failed.LastError)

	// failed entries are not retried automatically
	res, err = q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)

	require.NoError(t, q.Retry(ctx, entry.ID))
	mailer.SendFunc = nil
	res, err = q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Processed: 1, Sent: 1}, res)

	sent, err := store.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusSent, sent.Status)
	assert.Equal(t, 2, sent.Attempts)

	// retry is rejected once SENT
	assert.ErrorIs(t, q.Retry(ctx, entry.ID), ErrNotRetryable)
	assert.ErrorIs(t, q.Retry(ctx, 9999), ErrEntryNotFound)
}

func TestQueue_RetryAllFailed(t *testing.T) {
	mailer := &fakeMailer{configured: true, SendFunc: func(to string) error {
		if to == "bad@example.com" {
			return errors.New("mailbox unavailable")
		}
		return nil
	}}
	q, store, db := newTestQueue(t, mailer)
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)
	for _, addr := range []string{"bad@example.com", "good@example.com", "bad@example.com"} {
		_, err := q.Enqueue(ctx, domain.NotifyWelcome, addr, nil)
		require.NoError(t, err)
	}
	_, err := q.ProcessQueue(ctx, 10)
	require.NoError(t, err)

	n, err := q.RetryAllFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.EmailStatusPending])
	assert.Equal(t, int64(1), counts[domain.EmailStatusSent])
}

// lostClaimStore simulates a concurrent pass winning every claim.
type lostClaimStore struct {
	*repository.EmailLogRepository
}

func (s lostClaimStore) Claim(ctx context.Context, id uint, now time.Time) (bool, error) {
	if _, err := s.EmailLogRepository.Claim(ctx, id, now); err != nil {
		return false, err
	}
	return false, nil
}

func TestQueue_LostClaimIsSkipped(t *testing.T) {
	db := testutil.NewDB(t)
	base := repository.NewEmailLogRepository(db)
	mailer := &fakeMailer{configured: true}
	q := NewQueue(lostClaimStore{base}, repository.NewRuleRepository(db), mailer, time.Second, logger.Nop())
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)

	_, err := q.Enqueue(ctx, domain.NotifyWelcome, "a@example.com", nil)
	require.NoError(t, err)

	res, err := q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Processed: 1, Skipped: 1}, res)
	assert.Empty(t, mailer.sent)
}

func TestQueue_ClaimIsExclusive(t *testing.T) {
	q, store, db := newTestQueue(t, &fakeMailer{configured: true})
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)
	entry, err := q.Enqueue(ctx, domain.NotifyWelcome, "a@example.com", nil)
	require.NoError(t, err)

	first, err := store.Claim(ctx, entry.ID, time.Now())
	require.NoError(t, err)
	second, err := store.Claim(ctx, entry.ID, time.Now())
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestQueue_ReleaseStale(t *testing.T) {
	q, store, db := newTestQueue(t, &fakeMailer{configured: true})
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)
	entry, err := q.Enqueue(ctx, domain.NotifyWelcome, "a@example.com", nil)
	require.NoError(t, err)

	ok, err := store.Claim(ctx, entry.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	n, err := q.ReleaseStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusFailed, got.Status)
	assert.Equal(t, domain.EmailOutcomeUnknown, got.LastError)

	assert.ErrorIs(t, q.Retry(ctx, entry.ID), ErrOutcomeUnknown)
	requeued, err := q.RetryAllFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, requeued)
}

// failingMarkSentStore fails the first failures MarkSent calls.
type failingMarkSentStore struct {
	*repository.EmailLogRepository
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *failingMarkSentStore) MarkSent(ctx context.Context, id uint, now time.Time) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return errors.New("database is locked")
	}
	return s.EmailLogRepository.MarkSent(ctx, id, now)
}

func newFailingMarkSentQueue(t *testing.T, failures int) (*Queue, *failingMarkSentStore, *fakeMailer, *gorm.DB) {
	db := testutil.NewDB(t)
	store := &failingMarkSentStore{EmailLogRepository: repository.NewEmailLogRepository(db), failures: failures}
	mailer := &fakeMailer{configured: true}
	q := NewQueue(store, repository.NewRuleRepository(db), mailer, time.Second, logger.Nop())
	q.outcomeBackoff = 0
	return q, store, mailer, db
}

func TestQueue_MarkSentIsRetried(t *testing.T) {
	q, store, mailer, db := newFailingMarkSentQueue(t, 1)
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)
	entry, err := q.Enqueue(ctx, domain.NotifyWelcome, "a@example.com", nil)
	require.NoError(t, err)

	res, err := q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Processed: 1, Sent: 1}, res)

	n, err := q.ReleaseStale(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, q.Retry(ctx, entry.ID), ErrNotRetryable)

	res, err = q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)

	got, err := store.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusSent, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, []string{"a@example.com"}, mailer.sent)
}

func TestQueue_UnrecordedSendIsNotRedelivered(t *testing.T) {
	q, store, mailer, db := newFailingMarkSentQueue(t, markSentAttempts)
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyWelcome)
	entry, err := q.Enqueue(ctx, domain.NotifyWelcome, "a@example.com", nil)
	require.NoError(t, err)

	_, err = q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	got, err := store.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusProcessing, got.Status)

	n, err := q.ReleaseStale(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.ErrorIs(t, q.Retry(ctx, entry.ID), ErrOutcomeUnknown)
	requeued, err := q.RetryAllFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, requeued)

	res, err := q.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Equal(t, []string{"a@example.com"}, mailer.sent)
}

func TestQueue_OutcomeSurvivesCancelledPass(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	q, store, db := newTestQueue(t, mailer)
	seedTemplate(t, db, domain.NotifyWelcome)
	entry, err := q.Enqueue(context.Background(), domain.NotifyWelcome, "a@example.com", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	mailer.SendFunc = func(string) error {
		cancel()
		return nil
	}
	_, err = q.ProcessQueue(ctx, 10)
	require.NoError(t, err)

	got, err := store.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusSent, got.Status)
}

func TestQueue_NotConfigured(t *testing.T) {
	q, _, _ := newTestQueue(t, nil)
	_, err := q.ProcessQueue(context.Background(), 10)
	assert.ErrorIs(t, err, ErrMailerNotConfigured)

	q2, _, _ := newTestQueue(t, &fakeMailer{configured: false})
	_, err = q2.ProcessQueue(context.Background(), 10)
	assert.ErrorIs(t, err, ErrMailerNotConfigured)
}

func TestQueue_StatusAndSendTest(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	q, _, db := newTestQueue(t, mailer)
	ctx := context.Background()
	seedTemplate(t, db, domain.NotifyTest)

	entry, err := q.SendTest(ctx, "ops@example.com", "Ops")
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusSent, entry.Status)
	assert.Equal(t, []string{"ops@example.com"}, mailer.sent)

	st, err := q.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.SMTPConfigured)
	assert.Equal(t, "fake", st.Transport)
	assert.Zero(t, st.PendingCount)
	assert.Equal(t, int64(1), st.Stats[domain.EmailStatusSent])
}
