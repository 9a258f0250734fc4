package service

import (
	"context"
	"strings"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/repository"
)

var (
	ErrBranchInUse     = domain.Invalid("id", "Cannot delete branch with departments or users. Reassign them first.")
	ErrDepartmentInUse = domain.Invalid("id", "Cannot delete department with users or teams. Reassign them first.")
	ErrTeamInUse       = domain.Invalid("id", "Cannot delete team with users. Reassign them first.")
	ErrBranchTaken     = domain.Invalid("name", "A branch with this name or code already exists")
	ErrDeptCodeTaken   = domain.Invalid("code", "A department with this code already exists")
	ErrTeamNameTaken   = domain.Invalid("name", "A team with this name already exists in the department")
)

type BranchInput struct {
	Name     string `json:"name" binding:"required,max=128"`
	Code     string `json:"code" binding:"required,max=32"`
	Address  string `json:"address" binding:"max=512"`
	IsActive *bool  `json:"is_active"`
}

type DepartmentInput struct {
	Name     string `json:"name" binding:"required,max=128"`
	Code     string `json:"code" binding:"required,max=32"`
	BranchID *uint  `json:"branch_id"`
	HeadID   *uint  `json:"head_id"`
}

type TeamInput struct {
	Name         string `json:"name" binding:"required,max=128"`
	DepartmentID uint   `json:"department_id" binding:"required"`
	LeadID       *uint  `json:"lead_id"`
}

// OrgService manages branches, departments and teams.
type OrgService struct {
	org   *repository.OrgRepository
	users *repository.UserRepository
}

func NewOrgService(org *repository.OrgRepository, users *repository.UserRepository) *OrgService {
	return &OrgService{org: org, users: users}
}

func (s *OrgService) ListBranches(ctx context.Context) ([]models.Branch, error) {
	return s.org.ListBranches(ctx)
}

func (s *OrgService) GetBranch(ctx context.Context, id uint) (*models.Branch, error) {
	b, err := s.org.GetBranch(ctx, id)
	return b, notFound(err, "Branch not found")
}

func (s *OrgService) CreateBranch(ctx context.Context, actor *models.User, in BranchInput) (*models.Branch, error) {
	if !actor.Can(domain.PermOrgManage) {
		return nil, domain.ErrForbidden
	}
	b := &models.Branch{IsActive: true}
	applyBranch(b, in)
	if err := s.checkBranch(ctx, b); err != nil {
		return nil, err
	}
	if err := s.org.CreateBranch(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *OrgService) UpdateBranch(ctx context.Context, actor *models.User, id uint, in BranchInput) (*models.Branch, error) {
	if !actor.Can(domain.PermOrgManage) {
		return nil, domain.ErrForbidden
	}
	b, err := s.org.GetBranch(ctx, id)
	if err != nil {
		return nil, notFound(err, "Branch not found")
	}
	applyBranch(b, in)
	if err := s.checkBranch(ctx, b); err != nil {
		return nil, err
	}
	if err := s.org.UpdateBranch(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func applyBranch(b *models.Branch, in BranchInput) {
	b.Name = strings.TrimSpace(in.Name)
	b.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	b.Address = in.Address
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
}

func (s *OrgService) checkBranch(ctx context.Context, b *models.Branch) error {
	taken, err := s.org.BranchTaken(ctx, b.Name, b.Code, b.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrBranchTaken
	}
	return nil
}

// DeleteBranch refuses while departments or users still reference the branch.
func (s *OrgService) DeleteBranch(ctx context.Context, actor *models.User, id uint) error {
	if !actor.Can(domain.PermOrgManage) {
		return domain.ErrForbidden
	}
	if _, err := s.org.GetBranch(ctx, id); err != nil {
		return notFound(err, "Branch not found")
	}
	counts, err := s.org.BranchCounts(ctx, id)
	if err != nil {
		return err
	}
	if counts.Users > 0 || counts.Departments > 0 {
		return ErrBranchInUse
	}
	return s.org.DeleteBranch(ctx, id)
}

func (s *OrgService) ListDepartments(ctx context.Context, branchID uint) ([]models.Department, error) {
	return s.org.ListDepartments(ctx, branchID)
}

func (s *OrgService) GetDepartment(ctx context.Context, id uint) (*models.Department, error) {
	d, err := s.org.GetDepartment(ctx, id)
	return d, notFound(err, "Department not found")
}

func (s *OrgService) CreateDepartment(ctx context.Context, actor *models.User, in DepartmentInput) (*models.Department, error) {
	if !actor.Can(domain.PermOrgManage) {
		return nil, domain.ErrForbidden
	}
	d := &models.Department{}
	applyDepartment(d, in)
	if err := s.checkDepartment(ctx, d); err != nil {
		return nil, err
	}
	if err := s.org.CreateDepartment(ctx, d); err != nil {
		return nil, err
	}
	return s.org.GetDepartment(ctx, d.ID)
}

func (s *OrgService) UpdateDepartment(ctx context.Context, actor *models.User, id uint, in DepartmentInput) (*models.Department, error) {
	if !actor.Can(domain.PermOrgManage) {
		return nil, domain.ErrForbidden
	}
	d, err := s.org.GetDepartment(ctx, id)
	if err != nil {
		return nil, notFound(err, "Department not found")
	}
	applyDepartment(d, in)
	d.Branch, d.Head = nil, nil
	if err := s.checkDepartment(ctx, d); err != nil {
		return nil, err
	}
	if err := s.org.UpdateDepartment(ctx, d); err != nil {
		return nil, err
	}
	return s.org.GetDepartment(ctx, d.ID)
}

func applyDepartment(d *models.Department, in DepartmentInput) {
	d.Name = strings.TrimSpace(in.Name)
	d.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	d.BranchID = in.BranchID
	d.HeadID = in.HeadID
}

func (s *OrgService) checkDepartment(ctx context.Context, d *models.Department) error {
	taken, err := s.org.DepartmentCodeTaken(ctx, d.Code, d.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrDeptCodeTaken
	}
	if d.BranchID != nil {
		if _, err := s.org.GetBranch(ctx, *d.BranchID); err != nil {
			return refError(err, "branch_id", "Branch not found")
		}
	}
	if d.HeadID != nil {
		if _, err := s.users.GetByID(ctx, *d.HeadID); err != nil {
			return refError(err, "head_id", "Department head not found")
		}
	}
	return nil
}

// DeleteDepartment refuses while users or teams still reference the department.
func (s *OrgService) DeleteDepartment(ctx context.Context, actor *models.User, id uint) error {
	if !actor.Can(domain.PermOrgManage) {
		return domain.ErrForbidden
	}
	if _, err := s.org.GetDepartment(ctx, id); err != nil {
		return notFound(err, "Department not found")
	}
	counts, err := s.org.DepartmentCounts(ctx, id)
	if err != nil {
		return err
	}
	if counts.Users > 0 || counts.Teams > 0 {
		return ErrDepartmentInUse
	}
	return s.org.DeleteDepartment(ctx, id)
}

func (s *OrgService) ListTeams(ctx context.Context, departmentID uint) ([]models.Team, error) {
	return s.org.ListTeams(ctx, departmentID)
}

func (s *OrgService) GetTeam(ctx context.Context, id uint) (*models.Team, error) {
	t, err := s.org.GetTeam(ctx, id)
	return t, notFound(err, "Team not found")
}

func (s *OrgService) CreateTeam(ctx context.Context, actor *models.User, in TeamInput) (*models.Team, error) {
	if !actor.Can(domain.PermOrgManage) {
		return nil, domain.ErrForbidden
	}
	t := &models.Team{Name: strings.TrimSpace(in.Name), DepartmentID: in.DepartmentID, LeadID: in.LeadID}
	if err := s.checkTeam(ctx, t); err != nil {
		return nil, err
	}
	if err := s.org.CreateTeam(ctx, t); err != nil {
		return nil, err
	}
	return s.org.GetTeam(ctx, t.ID)
}

func (s *OrgService) UpdateTeam(ctx context.Context, actor *models.User, id uint, in TeamInput) (*models.Team, error) {
	if !actor.Can(domain.PermOrgManage) {
		return nil, domain.ErrForbidden
	}
	t, err := s.org.GetTeam(ctx, id)
	if err != nil {
		return nil, notFound(err, "Team not found")
	}
	t.Name, t.DepartmentID, t.LeadID = strings.TrimSpace(in.Name), in.DepartmentID, in.LeadID
	t.Department, t.Lead = nil, nil
	if err := s.checkTeam(ctx, t); err != nil {
		return nil, err
	}
	if err := s.org.UpdateTeam(ctx, t); err != nil {
		return nil, err
	}
	return s.org.GetTeam(ctx, t.ID)
}

func (s *OrgService) checkTeam(ctx context.Context, t *models.Team) error {
	if _, err := s.org.GetDepartment(ctx, t.DepartmentID); err != nil {
		return refError(err, "department_id", "Department not found")
	}
	taken, err := s.org.TeamNameTaken(ctx, t.DepartmentID, t.Name, t.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrTeamNameTaken
	}
	if t.LeadID != nil {
		if _, err := s.users.GetByID(ctx, *t.LeadID); err != nil {
			return refError(err, "lead_id", "Team lead not found")
		}
	}
	return nil
}

// DeleteTeam refuses while users are still assigned to the team.
func (s *OrgService) DeleteTeam(ctx context.Context, actor *models.User, id uint) error {
	if !actor.Can(domain.PermOrgManage) {
		return domain.ErrForbidden
	}
	if _, err := s.org.GetTeam(ctx, id); err != nil {
		return notFound(err, "Team not found")
	}
	counts, err := s.org.TeamCounts(ctx, id)
	if err != nil {
		return err
	}
	if counts.Users > 0 {
		return ErrTeamInUse
	}
	return s.org.DeleteTeam(ctx, id)
}
