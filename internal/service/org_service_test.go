package service

import (
	"context"
	"testing"

	"hrm/internal/domain"
	"hrm/internal/repository"
	"hrm/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrgDeleteGuards(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewOrgService(repository.NewOrgRepository(db), repository.NewUserRepository(db))
	ctx := context.Background()
	hr := testutil.CreateUser(t, db, domain.RoleHR, "hr@example.com")

	branch, err := svc.CreateBranch(ctx, hr, BranchInput{Name: "Nairobi", Code: "nbo"})
	require.NoError(t, err)
	assert.Equal(t, "NBO", branch.Code)
	assert.True(t, branch.IsActive)

	_, err = svc.CreateBranch(ctx, hr, BranchInput{Name: "Nairobi", Code: "NBO2"})
	assert.ErrorIs(t, err, ErrBranchTaken)

	dept, err := svc.CreateDepartment(ctx, hr, DepartmentInput{Name: "Engineering", Code: "ENG", BranchID: &branch.ID})
	require.NoError(t, err)
	team, err := svc.CreateTeam(ctx, hr, TeamInput{Name: "Platform", DepartmentID: dept.ID})
	require.NoError(t, err)
	member := testutil.CreateUser(t, db, domain.RoleEmployee, "dev@example.com", testutil.WithTeam(team.ID))

	assert.ErrorIs(t, svc.DeleteBranch(ctx, hr, branch.ID), ErrBranchInUse)
	assert.ErrorIs(t, svc.DeleteDepartment(ctx, hr, dept.ID), ErrDepartmentInUse)
	assert.ErrorIs(t, svc.DeleteTeam(ctx, hr, team.ID), ErrTeamInUse)

	require.NoError(t, db.Model(member).Update("team_id", nil).Error)
	require.NoError(t, svc.DeleteTeam(ctx, hr, team.ID))
	require.NoError(t, svc.DeleteDepartment(ctx, hr, dept.ID))
	require.NoError(t, svc.DeleteBranch(ctx, hr, branch.ID))

	assert.ErrorIs(t, svc.DeleteBranch(ctx, hr, branch.ID), domain.ErrNotFound)
}

func TestOrgRequiresPermission(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewOrgService(repository.NewOrgRepository(db), repository.NewUserRepository(db))
	mgr := testutil.CreateUser(t, db, domain.RoleManager, "mgr@example.com")

	_, err := svc.CreateBranch(context.Background(), mgr, BranchInput{Name: "Mombasa", Code: "MBA"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
