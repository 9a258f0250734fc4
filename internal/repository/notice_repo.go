package repository

import (
	"context"
	"time"

	"hrm/internal/models"

	"gorm.io/gorm"
)

// NoticeAudience describes the reader. Published notices are visible when
// they target everyone or the reader's branch/department.
type NoticeAudience struct {
	BranchID      *uint
	DepartmentID  *uint
	IncludeDrafts bool
}

type NoticeRepository struct {
	db *gorm.DB
}

func NewNoticeRepository(db *gorm.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

func (r *NoticeRepository) Create(ctx context.Context, n *models.Notice) error {
	return r.db.WithContext(ctx).Omit("Author").Create(n).Error
}

func (r *NoticeRepository) GetByID(ctx context.Context, id uint) (*models.Notice, error) {
	var n models.Notice
	if err := r.db.WithContext(ctx).Preload("Author").First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NoticeRepository) Update(ctx context.Context, n *models.Notice) error {
	return r.db.WithContext(ctx).Omit("Author").Save(n).Error
}

func (r *NoticeRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Notice{}, id).Error
}

func (r *NoticeRepository) ListVisible(ctx context.Context, a NoticeAudience, now time.Time, page, limit int) ([]models.Notice, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Notice{})
	if !a.IncludeDrafts {
		q = q.Where("is_published = ?", true).
			Where("expires_at IS NULL OR expires_at > ?", now)
		if a.BranchID != nil {
			q = q.Where("branch_id IS NULL OR branch_id = ?", *a.BranchID)
		} else {
			q = q.Where("branch_id IS NULL")
		}
		if a.DepartmentID != nil {
			q = q.Where("department_id IS NULL OR department_id = ?", *a.DepartmentID)
		} else {
			q = q.Where("department_id IS NULL")
		}
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Notice
	err := q.Preload("Author").Order("published_at DESC, created_at DESC").
		Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
