package service

import (
	"bytes"
	"context"
	"testing"

	"hrm/internal/domain"
	"hrm/internal/logger"
	"hrm/internal/models"
	"hrm/internal/repository"
	"hrm/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserService(t *testing.T) (*UserService, *gorm.DB, *recordedMail) {
	db := testutil.NewDB(t)
	mail := &recordedMail{}
	svc := NewUserService(testConfig(), repository.NewUserRepository(db), repository.NewOrgRepository(db),
		NewSettingsService(repository.NewSettingRepository(db)), mail, nil, logger.Nop())
	return svc, db, mail
}

func TestCreateUserQueuesWelcome(t *testing.T) {
	svc, db, mail := newUserService(t)
	ctx := context.Background()
	hr := testutil.CreateUser(t, db, domain.RoleHR, "hr@example.com")

	u, err := svc.Create(ctx, hr, CreateUserInput{
		EmployeeCode: "E-100", Name: " Jane Doe ", Email: "Jane@Example.com", Password: "password1",
		Role: domain.RoleEmployee, JoinDate: "2030-01-15",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, "Jane Doe", u.Name)
	assert.NotEmpty(t, u.PasswordHash)
	require.NotNil(t, u.JoinDate)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, domain.NotifyWelcome, mail.sent[0].Type)
	assert.Equal(t, "jane@example.com", mail.sent[0].Email)
	assert.Equal(t, "https://hr.example.com/login", mail.sent[0].Vars["loginUrl"])

	_, err = svc.Create(ctx, hr, CreateUserInput{EmployeeCode: "E-101", Name: "Copy", Email: "jane@example.com", Password: "password1", Role: domain.RoleEmployee})
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = svc.Create(ctx, hr, CreateUserInput{EmployeeCode: "E-100", Name: "Copy", Email: "copy@example.com", Password: "password1", Role: domain.RoleEmployee})
	assert.ErrorIs(t, err, ErrEmployeeCodeTaken)
	_, err = svc.Create(ctx, hr, CreateUserInput{EmployeeCode: "E-102", Name: "Boss", Email: "boss@example.com", Password: "password1", Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, ErrAdminRoleOnly)
	assert.Len(t, mail.sent, 1)
}

func TestCreateUserChecksRelations(t *testing.T) {
	svc, db, _ := newUserService(t)
	ctx := context.Background()
	admin := testutil.Admin(t, db)

	eng := &models.Department{Name: "Engineering", Code: "ENG"}
	ops := &models.Department{Name: "Operations", Code: "OPS"}
	require.NoError(t, db.Create(eng).Error)
	require.NoError(t, db.Create(ops).Error)
	team := &models.Team{Name: "Platform", DepartmentID: eng.ID}
	require.NoError(t, db.Create(team).Error)

	missing := uint(9999)
	_, err := svc.Create(ctx, admin, CreateUserInput{EmployeeCode: "E-1", Name: "A", Email: "a@example.com", Password: "password1",
		Role: domain.RoleEmployee, ManagerID: &missing})
	assert.EqualError(t, err, "Manager not found")

	_, err = svc.Create(ctx, admin, CreateUserInput{EmployeeCode: "E-2", Name: "B", Email: "b@example.com", Password: "password1",
		Role: domain.RoleEmployee, DepartmentID: &ops.ID, TeamID: &team.ID})
	assert.ErrorIs(t, err, ErrTeamNotInDept)
}

func TestDeactivateAndUpdate(t *testing.T) {
	svc, db, _ := newUserService(t)
	ctx := context.Background()
	hr := testutil.CreateUser(t, db, domain.RoleHR, "hr@example.com")
	admin := testutil.Admin(t, db)
	emp := testutil.CreateUser(t, db, domain.RoleEmployee, "emp@example.com")

	assert.ErrorIs(t, svc.Deactivate(ctx, hr, hr.ID), ErrSelfDeactivation)
	assert.ErrorIs(t, svc.Deactivate(ctx, hr, admin.ID), ErrAdminRoleOnly)
	require.NoError(t, svc.Deactivate(ctx, hr, emp.ID))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, emp.ID).Error)
	assert.False(t, reloaded.IsActive)
	assert.Equal(t, emp.TokenVersion+1, reloaded.TokenVersion)

	name := "Renamed"
	self := emp.ID
	_, err := svc.Update(ctx, hr, emp.ID, UpdateUserInput{Name: &name, ManagerID: &self})
	assert.ErrorIs(t, err, ErrManagerIsSelf)

	got, err := svc.Update(ctx, hr, emp.ID, UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	_, err = svc.Update(ctx, emp, hr.ID, UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateAvatarWithoutUploads(t *testing.T) {
	svc, db, _ := newUserService(t)
	emp := testutil.CreateUser(t, db, domain.RoleEmployee, "emp@example.com")

	_, err := svc.UpdateAvatar(context.Background(), emp, bytes.NewReader([]byte("png")))
	assert.ErrorIs(t, err, ErrUploadsNotSetUp)
}

func TestUserVisibility(t *testing.T) {
	svc, db, _ := newUserService(t)
	ctx := context.Background()
	emp := testutil.CreateUser(t, db, domain.RoleEmployee, "emp@example.com")
	other := testutil.CreateUser(t, db, domain.RoleEmployee, "other@example.com")

	_, err := svc.Get(ctx, emp, other.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	page, err := svc.List(ctx, emp, repository.UserFilter{}, NewPage(1, 20))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, emp.ID, page.Items[0].ID)
}
