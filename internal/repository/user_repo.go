package repository

import (
	"context"
	"strings"

	"hrm/internal/models"

	"gorm.io/gorm"
)

// UserFilter narrows ListUsers. Zero values are ignored.
type UserFilter struct {
	Search       string
	Role         string
	BranchID     uint
	DepartmentID uint
	TeamID       uint
	ActiveOnly   bool
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetWithRelations loads the user plus the people a notification may be routed to.
func (r *UserRepository) GetWithRelations(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Preload("Manager").
		Preload("Team.Lead").
		Preload("Department.Head").
		Preload("Branch").
		First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("google_id = ?", googleID).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ExistsByEmployeeCode(ctx context.Context, code string, excludeID uint) (bool, error) {
	var c int64
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("employee_code = ?", code)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&c).Error
	return c > 0, err
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error) {
	var c int64
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", strings.ToLower(email))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&c).Error
	return c > 0, err
}

func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Omit("Branch", "Department", "Team", "Manager").Save(u).Error
}

func (r *UserRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

// ListUsers returns users inside scope with search, filters and pagination.
func (r *UserRepository) ListUsers(ctx context.Context, scope func(*gorm.DB) *gorm.DB, f UserFilter, page, limit int) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Scopes(scope)
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR email LIKE ? OR employee_code LIKE ?", like, like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.BranchID != 0 {
		q = q.Where("branch_id = ?", f.BranchID)
	}
	if f.DepartmentID != 0 {
		q = q.Where("department_id = ?", f.DepartmentID)
	}
	if f.TeamID != 0 {
		q = q.Where("team_id = ?", f.TeamID)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Preload("Branch").Preload("Department").Preload("Team").
		Order("name ASC").Limit(limit).Offset((page - 1) * limit).Find(&users).Error
	return users, total, err
}

// ListActiveByRoles returns active users holding any of roles, optionally
// limited to a branch and/or department audience.
func (r *UserRepository) ListActiveByRoles(ctx context.Context, roles []string, branchID, departmentID *uint) ([]models.User, error) {
	var users []models.User
	if len(roles) == 0 {
		return users, nil
	}
	q := r.db.WithContext(ctx).Where("is_active = ? AND role IN ?", true, roles)
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	if departmentID != nil {
		q = q.Where("department_id = ?", *departmentID)
	}
	err := q.Order("id ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&c).Error
	return c, err
}

func (r *UserRepository) SetFCMToken(ctx context.Context, userID uint, token string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", token).Error
}

// FCMTokens returns the non-empty push tokens of the given users.
func (r *UserRepository) FCMTokens(ctx context.Context, userIDs []uint) ([]string, error) {
	var tokens []string
	if len(userIDs) == 0 {
		return tokens, nil
	}
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ? AND fcm_token <> ''", userIDs).
		Pluck("fcm_token", &tokens).Error
	return tokens, err
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}
