package repository

import (
	"context"

	"hrm/internal/models"

	"gorm.io/gorm"
)

type OrgRepository struct {
	db *gorm.DB
}

func NewOrgRepository(db *gorm.DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// Branches

func (r *OrgRepository) CreateBranch(ctx context.Context, b *models.Branch) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *OrgRepository) GetBranch(ctx context.Context, id uint) (*models.Branch, error) {
	var b models.Branch
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *OrgRepository) ListBranches(ctx context.Context) ([]models.Branch, error) {
	var list []models.Branch
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}

func (r *OrgRepository) UpdateBranch(ctx context.Context, b *models.Branch) error {
	return r.db.WithContext(ctx).Omit("Departments").Save(b).Error
}

func (r *OrgRepository) DeleteBranch(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Branch{}, id).Error
}

func (r *OrgRepository) BranchCounts(ctx context.Context, id uint) (models.OrgCounts, error) {
	var c models.OrgCounts
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Where("branch_id = ?", id).Count(&c.Users).Error; err != nil {
		return c, err
	}
	err := db.Model(&models.Department{}).Where("branch_id = ?", id).Count(&c.Departments).Error
	return c, err
}

// Departments

func (r *OrgRepository) CreateDepartment(ctx context.Context, d *models.Department) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *OrgRepository) GetDepartment(ctx context.Context, id uint) (*models.Department, error) {
	var d models.Department
	if err := r.db.WithContext(ctx).Preload("Branch").Preload("Head").First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *OrgRepository) ListDepartments(ctx context.Context, branchID uint) ([]models.Department, error) {
	var list []models.Department
	q := r.db.WithContext(ctx).Preload("Branch").Preload("Head")
	if branchID != 0 {
		q = q.Where("branch_id = ?", branchID)
	}
	err := q.Order("name ASC").Find(&list).Error
	return list, err
}

func (r *OrgRepository) UpdateDepartment(ctx context.Context, d *models.Department) error {
	return r.db.WithContext(ctx).Omit("Branch", "Head", "Teams").Save(d).Error
}

func (r *OrgRepository) DeleteDepartment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Department{}, id).Error
}

func (r *OrgRepository) DepartmentCounts(ctx context.Context, id uint) (models.OrgCounts, error) {
	var c models.OrgCounts
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Where("department_id = ?", id).Count(&c.Users).Error; err != nil {
		return c, err
	}
	err := db.Model(&models.Team{}).Where("department_id = ?", id).Count(&c.Teams).Error
	return c, err
}

// Teams

func (r *OrgRepository) CreateTeam(ctx context.Context, t *models.Team) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *OrgRepository) GetTeam(ctx context.Context, id uint) (*models.Team, error) {
	var t models.Team
	if err := r.db.WithContext(ctx).Preload("Department").Preload("Lead").First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *OrgRepository) ListTeams(ctx context.Context, departmentID uint) ([]models.Team, error) {
	var list []models.Team
	q := r.db.WithContext(ctx).Preload("Department").Preload("Lead")
	if departmentID != 0 {
		q = q.Where("department_id = ?", departmentID)
	}
	err := q.Order("name ASC").Find(&list).Error
	return list, err
}

func (r *OrgRepository) UpdateTeam(ctx context.Context, t *models.Team) error {
	return r.db.WithContext(ctx).Omit("Department", "Lead").Save(t).Error
}

func (r *OrgRepository) DeleteTeam(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Team{}, id).Error
}

func (r *OrgRepository) TeamCounts(ctx context.Context, id uint) (models.OrgCounts, error) {
	var c models.OrgCounts
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("team_id = ?", id).Count(&c.Users).Error
	return c, err
}

// Uniqueness

func (r *OrgRepository) BranchTaken(ctx context.Context, name, code string, excludeID uint) (bool, error) {
	return r.taken(ctx, &models.Branch{}, "name = ? OR code = ?", []interface{}{name, code}, excludeID)
}

func (r *OrgRepository) DepartmentCodeTaken(ctx context.Context, code string, excludeID uint) (bool, error) {
	return r.taken(ctx, &models.Department{}, "code = ?", []interface{}{code}, excludeID)
}

func (r *OrgRepository) TeamNameTaken(ctx context.Context, departmentID uint, name string, excludeID uint) (bool, error) {
	return r.taken(ctx, &models.Team{}, "department_id = ? AND name = ?", []interface{}{departmentID, name}, excludeID)
}

func (r *OrgRepository) taken(ctx context.Context, model interface{}, where string, args []interface{}, excludeID uint) (bool, error) {
	var c int64
	q := r.db.WithContext(ctx).Model(model).Where(where, args...)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&c).Error
	return c > 0, err
}
