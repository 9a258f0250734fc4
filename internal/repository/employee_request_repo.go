package repository

import (
	"context"

	"hrm/internal/domain"
	"hrm/internal/models"

	"gorm.io/gorm"
)

type EmployeeRequestFilter struct {
	UserID uint
	Type   string
	Status string
}

type EmployeeRequestRepository struct {
	db *gorm.DB
}

func NewEmployeeRequestRepository(db *gorm.DB) *EmployeeRequestRepository {
	return &EmployeeRequestRepository{db: db}
}

func (r *EmployeeRequestRepository) Create(ctx context.Context, er *models.EmployeeRequest) error {
	return r.db.WithContext(ctx).Omit("User", "ReviewedBy").Create(er).Error
}

func (r *EmployeeRequestRepository) GetByID(ctx context.Context, id uint) (*models.EmployeeRequest, error) {
	var er models.EmployeeRequest
	if err := r.db.WithContext(ctx).Preload("User").Preload("ReviewedBy").First(&er, id).Error; err != nil {
		return nil, err
	}
	return &er, nil
}

func (r *EmployeeRequestRepository) List(ctx context.Context, scope func(*gorm.DB) *gorm.DB, f EmployeeRequestFilter, page, limit int) ([]models.EmployeeRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.EmployeeRequest{}).Scopes(scope)
	if f.UserID != 0 {
		q = q.Where("employee_requests.user_id = ?", f.UserID)
	}
	if f.Type != "" {
		q = q.Where("employee_requests.type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("employee_requests.status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.EmployeeRequest
	err := q.Preload("User").Order("employee_requests.created_at DESC").
		Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// Transition moves a request out of PENDING. It returns false when the request
// was no longer PENDING.
func (r *EmployeeRequestRepository) Transition(ctx context.Context, id uint, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.EmployeeRequest{}).
		Where("id = ? AND status = ?", id, domain.RequestStatusPending).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

func (r *EmployeeRequestRepository) CountPending(ctx context.Context) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.EmployeeRequest{}).Where("status = ?", domain.RequestStatusPending).Count(&c).Error
	return c, err
}
