package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"hrm/config"
	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/notify"
	"hrm/internal/repository"
	"hrm/pkg/cloudinary"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = domain.NotFound("User not found")
	ErrEmailTaken         = domain.Invalid("email", "Email is already in use")
	ErrEmployeeCodeTaken  = domain.Invalid("employee_code", "Employee code is already in use")
	ErrAdminRoleOnly      = domain.Forbidden("Only administrators can manage ADMIN accounts")
	ErrSelfDeactivation   = domain.Invalid("id", "You cannot deactivate your own account")
	ErrUploadsNotSetUp    = errors.New("file uploads are not configured")
	ErrManagerIsSelf      = domain.Invalid("manager_id", "A user cannot be their own manager")
	ErrTeamNotInDept      = domain.Invalid("team_id", "Team does not belong to the selected department")
	ErrDeptNotInBranch    = domain.Invalid("department_id", "Department does not belong to the selected branch")
	ErrInvalidJoinDateFmt = domain.Invalid("join_date", "join_date must be YYYY-MM-DD")
)

// CreateUserInput is the body of POST /users.
type CreateUserInput struct {
	EmployeeCode string `json:"employee_code" binding:"required,max=32"`
	Name         string `json:"name" binding:"required,max=128"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	Role         string `json:"role" binding:"required,oneof=ADMIN HR MANAGER TEAM_LEAD EMPLOYEE"`
	BranchID     *uint  `json:"branch_id"`
	DepartmentID *uint  `json:"department_id"`
	TeamID       *uint  `json:"team_id"`
	ManagerID    *uint  `json:"manager_id"`
	Position     string `json:"position" binding:"max=128"`
	Phone        string `json:"phone" binding:"max=32"`
	JoinDate     string `json:"join_date"`
}

// UpdateUserInput is the body of PUT /users/:id. Nil fields are left unchanged;
// ClearX flags null out an optional relation.
type UpdateUserInput struct {
	EmployeeCode    *string `json:"employee_code" binding:"omitempty,max=32"`
	Name            *string `json:"name" binding:"omitempty,max=128"`
	Email           *string `json:"email" binding:"omitempty,email"`
	Role            *string `json:"role" binding:"omitempty,oneof=ADMIN HR MANAGER TEAM_LEAD EMPLOYEE"`
	BranchID        *uint   `json:"branch_id"`
	DepartmentID    *uint   `json:"department_id"`
	TeamID          *uint   `json:"team_id"`
	ManagerID       *uint   `json:"manager_id"`
	ClearBranch     bool    `json:"clear_branch"`
	ClearDepartment bool    `json:"clear_department"`
	ClearTeam       bool    `json:"clear_team"`
	ClearManager    bool    `json:"clear_manager"`
	Position        *string `json:"position" binding:"omitempty,max=128"`
	Phone           *string `json:"phone" binding:"omitempty,max=32"`
	JoinDate        *string `json:"join_date"`
	IsActive        *bool   `json:"is_active"`
}

type UserService struct {
	cfg      *config.Config
	users    *repository.UserRepository
	org      *repository.OrgRepository
	settings *SettingsService
	mail     notify.Enqueuer
	cloud    cloudinary.Client
	log      *zap.Logger
}

func NewUserService(cfg *config.Config, users *repository.UserRepository, org *repository.OrgRepository, settings *SettingsService,
	mail notify.Enqueuer, cloud cloudinary.Client, log *zap.Logger) *UserService {
	return &UserService{cfg: cfg, users: users, org: org, settings: settings, mail: mail, cloud: cloud, log: log}
}

func (s *UserService) List(ctx context.Context, actor *models.User, f repository.UserFilter, p Page) (*Paged[models.User], error) {
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	scope = scope.Require(actor, domain.PermUsersView)
	list, total, err := s.users.ListUsers(ctx, scope.Filter("users.id"), f, p.Page, p.Limit)
	if err != nil {
		return nil, err
	}
	return paged(list, total, p), nil
}

func (s *UserService) Get(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	u, err := s.users.GetWithRelations(ctx, id)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.Require(actor, domain.PermUsersView).Allows(u) {
		return nil, domain.ErrForbidden
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, actor *models.User, in CreateUserInput) (*models.User, error) {
	if !actor.Can(domain.PermUsersManage) {
		return nil, domain.ErrForbidden
	}
	if in.Role == domain.RoleAdmin && !actor.IsAdmin() {
		return nil, ErrAdminRoleOnly
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.checkUnique(ctx, email, in.EmployeeCode, 0); err != nil {
		return nil, err
	}
	u := &models.User{
		EmployeeCode: strings.TrimSpace(in.EmployeeCode),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Role:         in.Role,
		IsActive:     true,
		BranchID:     in.BranchID,
		DepartmentID: in.DepartmentID,
		TeamID:       in.TeamID,
		ManagerID:    in.ManagerID,
		Position:     in.Position,
		Phone:        in.Phone,
	}
	if in.JoinDate != "" {
		d, err := time.Parse(domain.DateLayout, in.JoinDate)
		if err != nil {
			return nil, ErrInvalidJoinDateFmt
		}
		u.JoinDate = &d
	}
	if err := s.checkRelations(ctx, u); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = string(hash)
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if _, err := s.mail.Enqueue(ctx, domain.NotifyWelcome, u.Email, map[string]interface{}{
		"name":         u.Name,
		"email":        u.Email,
		"employeeCode": u.EmployeeCode,
		"loginUrl":     strings.TrimRight(s.cfg.Mail.AppURL, "/") + "/login",
	}); err != nil {
		s.log.Error("welcome email enqueue failed", zap.Uint("user_id", u.ID), zap.Error(err))
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, actor *models.User, id uint, in UpdateUserInput) (*models.User, error) {
	if !actor.Can(domain.PermUsersManage) {
		return nil, domain.ErrForbidden
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	touchesAdmin := u.Role == domain.RoleAdmin || (in.Role != nil && *in.Role == domain.RoleAdmin)
	if touchesAdmin && !actor.IsAdmin() {
		return nil, ErrAdminRoleOnly
	}
	if in.IsActive != nil && !*in.IsActive && u.ID == actor.ID {
		return nil, ErrSelfDeactivation
	}

	email, code := u.Email, u.EmployeeCode
	if in.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.EmployeeCode != nil {
		code = strings.TrimSpace(*in.EmployeeCode)
	}
	if err := s.checkUnique(ctx, email, code, u.ID); err != nil {
		return nil, err
	}
	u.Email, u.EmployeeCode = email, code
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Position != nil {
		u.Position = *in.Position
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.JoinDate != nil {
		if *in.JoinDate == "" {
			u.JoinDate = nil
		} else {
			d, err := time.Parse(domain.DateLayout, *in.JoinDate)
			if err != nil {
				return nil, ErrInvalidJoinDateFmt
			}
			u.JoinDate = &d
		}
	}
	applyRef(&u.BranchID, in.BranchID, in.ClearBranch)
	applyRef(&u.DepartmentID, in.DepartmentID, in.ClearDepartment)
	applyRef(&u.TeamID, in.TeamID, in.ClearTeam)
	applyRef(&u.ManagerID, in.ManagerID, in.ClearManager)
	if err := s.checkRelations(ctx, u); err != nil {
		return nil, err
	}
	if in.IsActive != nil && u.IsActive != *in.IsActive {
		u.IsActive = *in.IsActive
		if !u.IsActive {
			u.TokenVersion++
		}
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return s.users.GetWithRelations(ctx, u.ID)
}

// Deactivate disables the account and ends its sessions. Records are kept.
func (s *UserService) Deactivate(ctx context.Context, actor *models.User, id uint) error {
	if !actor.Can(domain.PermUsersManage) {
		return domain.ErrForbidden
	}
	if id == actor.ID {
		return ErrSelfDeactivation
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "User not found")
	}
	if u.Role == domain.RoleAdmin && !actor.IsAdmin() {
		return ErrAdminRoleOnly
	}
	return s.users.UpdateFields(ctx, id, map[string]interface{}{
		"is_active":     false,
		"token_version": gorm.Expr("token_version + 1"),
	})
}

// UpdateAvatar uploads an image for the actor and stores its URL.
func (s *UserService) UpdateAvatar(ctx context.Context, actor *models.User, file io.Reader) (string, error) {
	if s.cloud == nil {
		return "", ErrUploadsNotSetUp
	}
	publicID := "avatar_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	url, err := s.cloud.UploadImage(ctx, file, fmt.Sprintf("hrm/avatars/%d", actor.ID), publicID)
	if err != nil {
		return "", fmt.Errorf("avatar upload: %w", err)
	}
	if err := s.users.UpdateFields(ctx, actor.ID, map[string]interface{}{"avatar_url": url}); err != nil {
		return "", err
	}
	return url, nil
}

func (s *UserService) SetFCMToken(ctx context.Context, actor *models.User, token string) error {
	return s.users.SetFCMToken(ctx, actor.ID, token)
}

func applyRef(dst **uint, v *uint, clear bool) {
	if clear {
		*dst = nil
		return
	}
	if v != nil {
		id := *v
		*dst = &id
	}
}

func (s *UserService) checkUnique(ctx context.Context, email, code string, excludeID uint) error {
	taken, err := s.users.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	taken, err = s.users.ExistsByEmployeeCode(ctx, code, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmployeeCodeTaken
	}
	return nil
}

// checkRelations verifies that referenced org entities exist and nest correctly.
func (s *UserService) checkRelations(ctx context.Context, u *models.User) error {
	if u.BranchID != nil {
		if _, err := s.org.GetBranch(ctx, *u.BranchID); err != nil {
			return refError(err, "branch_id", "Branch not found")
		}
	}
	var dept *models.Department
	if u.DepartmentID != nil {
		d, err := s.org.GetDepartment(ctx, *u.DepartmentID)
		if err != nil {
			return refError(err, "department_id", "Department not found")
		}
		if u.BranchID != nil && d.BranchID != nil && *d.BranchID != *u.BranchID {
			return ErrDeptNotInBranch
		}
		dept = d
	}
	if u.TeamID != nil {
		t, err := s.org.GetTeam(ctx, *u.TeamID)
		if err != nil {
			return refError(err, "team_id", "Team not found")
		}
		if dept != nil && t.DepartmentID != dept.ID {
			return ErrTeamNotInDept
		}
	}
	if u.ManagerID != nil {
		if u.ID != 0 && *u.ManagerID == u.ID {
			return ErrManagerIsSelf
		}
		if _, err := s.users.GetByID(ctx, *u.ManagerID); err != nil {
			return refError(err, "manager_id", "Manager not found")
		}
	}
	return nil
}

func refError(err error, field, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Invalid(field, msg)
	}
	return err
}
