package repository

import (
	"context"
	"time"
	"unicode/utf8"

	"hrm/internal/domain"
	"hrm/internal/models"

	"gorm.io/gorm"
)

type EmailLogFilter struct {
	Status string
	Type   string
	Email  string
}

// EmailLogRepository is the persisted delivery queue. Every status change is a
// conditional update on the current status so concurrent pumps cannot both
// act on one entry.
type EmailLogRepository struct {
	db *gorm.DB
}

func NewEmailLogRepository(db *gorm.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

// maxSubjectBytes fits the subject column in bytes and characters alike.
const maxSubjectBytes = 255

func (r *EmailLogRepository) Create(ctx context.Context, e *models.EmailLog) error {
	e.Subject = truncate(e.Subject, maxSubjectBytes)
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *EmailLogRepository) GetByID(ctx context.Context, id uint) (*models.EmailLog, error) {
	var e models.EmailLog
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// NextPending returns up to limit PENDING entries, oldest first.
func (r *EmailLogRepository) NextPending(ctx context.Context, limit int) ([]models.EmailLog, error) {
	var list []models.EmailLog
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.EmailStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// Claim moves an entry PENDING -> PROCESSING. false means another worker won.
func (r *EmailLogRepository) Claim(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.EmailLog{}).
		Where("id = ? AND status = ?", id, domain.EmailStatusPending).
		Updates(map[string]interface{}{
			"status":     domain.EmailStatusProcessing,
			"claimed_at": now,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *EmailLogRepository) MarkSent(ctx context.Context, id uint, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.EmailLog{}).
		Where("id = ? AND status = ?", id, domain.EmailStatusProcessing).
		Updates(map[string]interface{}{
			"status":     domain.EmailStatusSent,
			"attempts":   gorm.Expr("attempts + 1"),
			"sent_at":    now,
			"last_error": "",
		}).Error
}

func (r *EmailLogRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&models.EmailLog{}).
		Where("id = ? AND status = ?", id, domain.EmailStatusProcessing).
		Updates(map[string]interface{}{
			"status":     domain.EmailStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": truncate(reason, 1024),
		}).Error
}

// Requeue moves a FAILED entry back to PENDING. false means it was not FAILED
// or its delivery outcome is unknown.
func (r *EmailLogRepository) Requeue(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.EmailLog{}).
		Where("id = ? AND status = ? AND last_error <> ?", id, domain.EmailStatusFailed, domain.EmailOutcomeUnknown).
		Updates(map[string]interface{}{
			"status":     domain.EmailStatusPending,
			"claimed_at": nil,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *EmailLogRepository) RequeueAllFailed(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.EmailLog{}).
		Where("status = ? AND last_error <> ?", domain.EmailStatusFailed, domain.EmailOutcomeUnknown).
		Updates(map[string]interface{}{
			"status":     domain.EmailStatusPending,
			"claimed_at": nil,
		})
	return res.RowsAffected, res.Error
}

// ReleaseStale fails PROCESSING entries claimed before cutoff. The send may
// have happened, so the entry is marked with EmailOutcomeUnknown.
func (r *EmailLogRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.EmailLog{}).
		Where("status = ? AND claimed_at < ?", domain.EmailStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     domain.EmailStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": domain.EmailOutcomeUnknown,
		})
	return res.RowsAffected, res.Error
}

func (r *EmailLogRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.EmailLog{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := map[string]int64{
		domain.EmailStatusPending:    0,
		domain.EmailStatusProcessing: 0,
		domain.EmailStatusSent:       0,
		domain.EmailStatusFailed:     0,
	}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *EmailLogRepository) List(ctx context.Context, f EmailLogFilter, page, limit int) ([]models.EmailLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.EmailLog{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Email != "" {
		q = q.Where("recipient_email LIKE ?", "%"+f.Email+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.EmailLog
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// truncate clips s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
