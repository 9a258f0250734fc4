package repository

import (
	"context"

	"hrm/internal/models"

	"gorm.io/gorm"
)

type AttendanceFilter struct {
	UserID uint
	From   string // YYYY-MM-DD inclusive
	To     string
	Status string
}

type AttendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) GetByUserDate(ctx context.Context, userID uint, date string) (*models.Attendance, error) {
	var a models.Attendance
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttendanceRepository) Create(ctx context.Context, a *models.Attendance) error {
	return r.db.WithContext(ctx).Omit("User").Create(a).Error
}

// CheckOut sets the check-out fields only if the record has none yet.
func (r *AttendanceRepository) CheckOut(ctx context.Context, a *models.Attendance) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("id = ? AND check_out IS NULL", a.ID).
		Updates(map[string]interface{}{
			"check_out":    a.CheckOut,
			"work_minutes": a.WorkMinutes,
			"note":         a.Note,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *AttendanceRepository) List(ctx context.Context, scope func(*gorm.DB) *gorm.DB, f AttendanceFilter, page, limit int) ([]models.Attendance, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Attendance{}).Scopes(scope)
	if f.UserID != 0 {
		q = q.Where("attendances.user_id = ?", f.UserID)
	}
	if f.From != "" {
		q = q.Where("attendances.date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("attendances.date <= ?", f.To)
	}
	if f.Status != "" {
		q = q.Where("attendances.status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Attendance
	err := q.Preload("User").Order("attendances.date DESC, attendances.user_id ASC").
		Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

func (r *AttendanceRepository) CountByDate(ctx context.Context, date string) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.Attendance{}).Where("date = ?", date).Count(&c).Error
	return c, err
}
