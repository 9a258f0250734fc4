package repository

import (
	"context"
	"time"

	"hrm/internal/models"

	"gorm.io/gorm"
)

type PasswordResetRepository struct {
	db *gorm.DB
}

func NewPasswordResetRepository(db *gorm.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) WithTx(tx *gorm.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: tx}
}

func (r *PasswordResetRepository) Create(ctx context.Context, t *models.PasswordResetToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// GetValid returns an unused, unexpired token by hash.
func (r *PasswordResetRepository) GetValid(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkAllUsed consumes every outstanding token of the user.
func (r *PasswordResetRepository) MarkAllUsed(ctx context.Context, userID uint, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Update("used_at", now).Error
}
