package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hrm/internal/domain"
	"hrm/internal/metrics"
	"hrm/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueueStore persists queue entries. Implemented by repository.EmailLogRepository.
type QueueStore interface {
	Create(ctx context.Context, e *models.EmailLog) error
	GetByID(ctx context.Context, id uint) (*models.EmailLog, error)
	NextPending(ctx context.Context, limit int) ([]models.EmailLog, error)
	Claim(ctx context.Context, id uint, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id uint, now time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	Requeue(ctx context.Context, id uint) (bool, error)
	RequeueAllFailed(ctx context.Context) (int64, error)
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// TemplateSource returns the active template of a type.
type TemplateSource interface {
	ActiveTemplate(ctx context.Context, notificationType string) (*models.EmailTemplate, error)
}

// ProcessResult summarises one queue pass.
type ProcessResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// QueueStatus is what GET /notifications/queue reports.
type QueueStatus struct {
	SMTPConfigured bool             `json:"smtp_configured"`
	Transport      string           `json:"transport"`
	PendingCount   int64            `json:"pending_count"`
	Stats          map[string]int64 `json:"stats"`
}

type Queue struct {
	store       QueueStore
	templates   TemplateSource
	mailer      Mailer
	log         *zap.Logger
	sendTimeout time.Duration
	now         func() time.Time

	outcomeBackoff time.Duration
}

const markSentAttempts = 3

func NewQueue(store QueueStore, templates TemplateSource, mailer Mailer, sendTimeout time.Duration, log *zap.Logger) *Queue {
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &Queue{
		store:       store,
		templates:   templates,
		mailer:      mailer,
		log:         log,
		sendTimeout: sendTimeout,
		now:         time.Now,

		outcomeBackoff: 200 * time.Millisecond,
	}
}

func (q *Queue) Configured() bool {
	return q.mailer != nil && q.mailer.Configured()
}

// Enqueue renders the active template of t for vars and stores a PENDING
// entry for email. With no active template it logs and returns (nil, nil).
func (q *Queue) Enqueue(ctx context.Context, t domain.NotificationType, email string, vars map[string]interface{}) (*models.EmailLog, error) {
	tpl, err := q.templates.ActiveTemplate(ctx, string(t))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			q.log.Warn("no active email template, skipping", zap.String("type", string(t)), zap.String("email", email))
			return nil, nil
		}
		return nil, fmt.Errorf("load template: %w", err)
	}
	r := Render(tpl, vars)
	entry := &models.EmailLog{
		RecipientEmail: email,
		Type:           string(t),
		TemplateID:     &tpl.ID,
		Subject:        r.Subject,
		RenderedBody:   r.HTML,
		Status:         domain.EmailStatusPending,
	}
	if err := q.store.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("enqueue email: %w", err)
	}
	metrics.EmailsEnqueued.WithLabelValues(string(t)).Inc()
	return entry, nil
}

// ProcessQueue delivers up to batchSize PENDING entries. Each entry is claimed
// before delivery; entries claimed by a concurrent pass count as skipped.
func (q *Queue) ProcessQueue(ctx context.Context, batchSize int) (ProcessResult, error) {
	var res ProcessResult
	if !q.Configured() {
		return res, ErrMailerNotConfigured
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	start := q.now()
	defer func() { metrics.QueuePassDuration.Observe(time.Since(start).Seconds()) }()

	entries, err := q.store.NextPending(ctx, batchSize)
	if err != nil {
		return res, fmt.Errorf("load pending emails: %w", err)
	}
	for i := range entries {
		if ctx.Err() != nil {
			break
		}
		e := &entries[i]
		res.Processed++
		claimed, err := q.store.Claim(ctx, e.ID, q.now())
		if err != nil {
			return res, fmt.Errorf("claim email %d: %w", e.ID, err)
		}
		if !claimed {
			res.Skipped++
			metrics.ClaimsLost.Inc()
			continue
		}
		if q.deliver(ctx, e) {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	if res.Processed > 0 {
		q.log.Info("email queue pass",
			zap.Int("processed", res.Processed),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped))
	}
	return res, nil
}

// deliver sends one claimed entry and records the outcome. The outcome is
// written even when ctx is cancelled mid-pass.
func (q *Queue) deliver(ctx context.Context, e *models.EmailLog) bool {
	sendCtx, cancel := context.WithTimeout(ctx, q.sendTimeout)
	sendErr := q.mailer.Send(sendCtx, e.RecipientEmail, e.Subject, e.RenderedBody)
	cancel()

	outcomeCtx := context.WithoutCancel(ctx)
	if sendErr != nil {
		q.log.Warn("email delivery failed",
			zap.Uint("id", e.ID),
			zap.String("type", e.Type),
			zap.String("email", e.RecipientEmail),
			zap.Error(sendErr))
		if err := q.store.MarkFailed(outcomeCtx, e.ID, sendErr.Error()); err != nil {
			q.log.Error("mark email failed", zap.Uint("id", e.ID), zap.Error(err))
		}
		metrics.EmailsDelivered.WithLabelValues(e.Type, domain.EmailStatusFailed).Inc()
		return false
	}
	if err := q.markSent(outcomeCtx, e.ID); err != nil {
		// left PROCESSING; ReleaseStale will mark the outcome unknown
		q.log.Error("mark email sent", zap.Uint("id", e.ID), zap.Error(err))
	}
	metrics.EmailsDelivered.WithLabelValues(e.Type, domain.EmailStatusSent).Inc()
	return true
}

func (q *Queue) markSent(ctx context.Context, id uint) error {
	var err error
	for attempt := 0; attempt < markSentAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(q.outcomeBackoff * time.Duration(attempt))
		}
		if err = q.store.MarkSent(ctx, id, q.now()); err == nil {
			return nil
		}
	}
	return err
}

// Retry moves a FAILED entry back to PENDING.
func (q *Queue) Retry(ctx context.Context, id uint) error {
	ok, err := q.store.Requeue(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	e, err := q.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	if e.Status == domain.EmailStatusFailed && e.LastError == domain.EmailOutcomeUnknown {
		return ErrOutcomeUnknown
	}
	return ErrNotRetryable
}

func (q *Queue) RetryAllFailed(ctx context.Context) (int64, error) {
	return q.store.RequeueAllFailed(ctx)
}

// ReleaseStale fails entries left in PROCESSING longer than olderThan, e.g.
// after a crash between claim and outcome. Released entries cannot be retried.
func (q *Queue) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := q.store.ReleaseStale(ctx, q.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.log.Warn("released stale email claims", zap.Int64("count", n))
	}
	return n, nil
}

func (q *Queue) Status(ctx context.Context) (QueueStatus, error) {
	stats, err := q.store.CountByStatus(ctx)
	if err != nil {
		return QueueStatus{}, err
	}
	st := QueueStatus{
		SMTPConfigured: q.Configured(),
		PendingCount:   stats[domain.EmailStatusPending],
		Stats:          stats,
	}
	if q.mailer != nil {
		st.Transport = q.mailer.Name()
	}
	return st, nil
}

// SendTest enqueues a TEST_EMAIL for to and delivers it immediately.
func (q *Queue) SendTest(ctx context.Context, to, name string) (*models.EmailLog, error) {
	if !q.Configured() {
		return nil, ErrMailerNotConfigured
	}
	entry, err := q.Enqueue(ctx, domain.NotifyTest, to, map[string]interface{}{
		"name":   name,
		"sentAt": q.now(),
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrTemplateNotFound
	}
	claimed, err := q.store.Claim(ctx, entry.ID, q.now())
	if err != nil {
		return nil, err
	}
	if claimed {
		q.deliver(ctx, entry)
	}
	return q.store.GetByID(ctx, entry.ID)
}
