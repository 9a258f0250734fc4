package repository

import (
	"context"
	"time"

	"hrm/internal/domain"
	"hrm/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaveFilter struct {
	UserID      uint
	LeaveTypeID uint
	Status      string
	From        *time.Time
	To          *time.Time
}

type LeaveRepository struct {
	db *gorm.DB
}

func NewLeaveRepository(db *gorm.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

func (r *LeaveRepository) WithTx(tx *gorm.DB) *LeaveRepository {
	return &LeaveRepository{db: tx}
}

// Leave types

func (r *LeaveRepository) CreateType(ctx context.Context, lt *models.LeaveType) error {
	return r.db.WithContext(ctx).Create(lt).Error
}

func (r *LeaveRepository) GetType(ctx context.Context, id uint) (*models.LeaveType, error) {
	var lt models.LeaveType
	if err := r.db.WithContext(ctx).First(&lt, id).Error; err != nil {
		return nil, err
	}
	return &lt, nil
}

func (r *LeaveRepository) ListTypes(ctx context.Context, activeOnly bool) ([]models.LeaveType, error) {
	var list []models.LeaveType
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("name ASC").Find(&list).Error
	return list, err
}

func (r *LeaveRepository) UpdateType(ctx context.Context, lt *models.LeaveType) error {
	return r.db.WithContext(ctx).Save(lt).Error
}

func (r *LeaveRepository) DeleteType(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.LeaveType{}, id).Error
}

func (r *LeaveRepository) CountRequestsByType(ctx context.Context, typeID uint) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).Where("leave_type_id = ?", typeID).Count(&c).Error
	return c, err
}

func (r *LeaveRepository) TypeNameExists(ctx context.Context, name, code string, excludeID uint) (bool, error) {
	var c int64
	q := r.db.WithContext(ctx).Model(&models.LeaveType{}).Where("name = ? OR code = ?", name, code)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&c).Error
	return c > 0, err
}

// Allocations

func (r *LeaveRepository) GetAllocation(ctx context.Context, userID, typeID uint, year int) (*models.LeaveAllocation, error) {
	var a models.LeaveAllocation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND leave_type_id = ? AND year = ?", userID, typeID, year).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAllocationForUpdate locks the row on databases that support it. Must run inside a transaction.
func (r *LeaveRepository) GetAllocationForUpdate(ctx context.Context, userID, typeID uint, year int) (*models.LeaveAllocation, error) {
	var a models.LeaveAllocation
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("user_id = ? AND leave_type_id = ? AND year = ?", userID, typeID, year).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *LeaveRepository) GetAllocationByID(ctx context.Context, id uint) (*models.LeaveAllocation, error) {
	var a models.LeaveAllocation
	if err := r.db.WithContext(ctx).Preload("User").Preload("LeaveType").First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *LeaveRepository) ListAllocations(ctx context.Context, scope func(*gorm.DB) *gorm.DB, userID uint, year int) ([]models.LeaveAllocation, error) {
	var list []models.LeaveAllocation
	q := r.db.WithContext(ctx).Scopes(scope).Preload("User").Preload("LeaveType")
	if userID != 0 {
		q = q.Where("leave_allocations.user_id = ?", userID)
	}
	if year != 0 {
		q = q.Where("leave_allocations.year = ?", year)
	}
	err := q.Order("leave_allocations.user_id ASC, leave_allocations.leave_type_id ASC").Find(&list).Error
	return list, err
}

func (r *LeaveRepository) CreateAllocation(ctx context.Context, a *models.LeaveAllocation) error {
	return r.db.WithContext(ctx).Omit("User", "LeaveType").Create(a).Error
}

func (r *LeaveRepository) SaveAllocation(ctx context.Context, a *models.LeaveAllocation) error {
	return r.db.WithContext(ctx).Omit("User", "LeaveType").Save(a).Error
}

// Requests

func (r *LeaveRepository) CreateRequest(ctx context.Context, lr *models.LeaveRequest) error {
	return r.db.WithContext(ctx).Omit("User", "LeaveType", "ReviewedBy").Create(lr).Error
}

func (r *LeaveRepository) GetRequest(ctx context.Context, id uint) (*models.LeaveRequest, error) {
	var lr models.LeaveRequest
	err := r.db.WithContext(ctx).Preload("User").Preload("LeaveType").Preload("ReviewedBy").First(&lr, id).Error
	if err != nil {
		return nil, err
	}
	return &lr, nil
}

func (r *LeaveRepository) ListRequests(ctx context.Context, scope func(*gorm.DB) *gorm.DB, f LeaveFilter, page, limit int) ([]models.LeaveRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).Scopes(scope)
	if f.UserID != 0 {
		q = q.Where("leave_requests.user_id = ?", f.UserID)
	}
	if f.LeaveTypeID != 0 {
		q = q.Where("leave_requests.leave_type_id = ?", f.LeaveTypeID)
	}
	if f.Status != "" {
		q = q.Where("leave_requests.status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("leave_requests.end_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("leave_requests.start_date <= ?", *f.To)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.LeaveRequest
	err := q.Preload("User").Preload("LeaveType").
		Order("leave_requests.created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// HasOverlap reports whether userID has a pending or approved request intersecting [start, end].
func (r *LeaveRepository) HasOverlap(ctx context.Context, userID uint, start, end time.Time) (bool, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).
		Where("user_id = ? AND status IN ? AND start_date <= ? AND end_date >= ?",
			userID, []string{domain.RequestStatusPending, domain.RequestStatusApproved}, end, start).
		Count(&c).Error
	return c > 0, err
}

// TransitionRequest moves a request out of PENDING. It returns false when the
// request was no longer PENDING.
func (r *LeaveRepository) TransitionRequest(ctx context.Context, id uint, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).
		Where("id = ? AND status = ?", id, domain.RequestStatusPending).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

func (r *LeaveRepository) CountPending(ctx context.Context) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).Where("status = ?", domain.RequestStatusPending).Count(&c).Error
	return c, err
}

// OnLeave returns the ids of users with an approved leave covering day.
func (r *LeaveRepository) OnLeave(ctx context.Context, day time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).
		Where("status = ? AND start_date <= ? AND end_date >= ?", domain.RequestStatusApproved, day, day).
		Distinct().Pluck("user_id", &ids).Error
	return ids, err
}
