package policy_test

import (
	"testing"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/policy"
	"hrm/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestScopeFor(t *testing.T) {
	defaults := models.DefaultOrgSettings()
	teamView := models.DefaultOrgSettings()
	teamView.Permissions.EmployeesCanViewTeam = true

	cases := []struct {
		name     string
		actor    models.User
		settings models.OrgSettings
		want     policy.Scope
	}{
		{"admin sees all", models.User{ID: 1, Role: domain.RoleAdmin}, defaults, policy.Scope{Level: policy.LevelAll, UserID: 1}},
		{"hr sees all", models.User{ID: 2, Role: domain.RoleHR}, defaults, policy.Scope{Level: policy.LevelAll, UserID: 2}},
		{"manager sees department", models.User{ID: 3, Role: domain.RoleManager, DepartmentID: uintPtr(7)}, defaults,
			policy.Scope{Level: policy.LevelDepartment, UserID: 3, DepartmentID: 7}},
		{"manager without department", models.User{ID: 3, Role: domain.RoleManager}, defaults, policy.Scope{Level: policy.LevelSelf, UserID: 3}},
		{"team lead sees team", models.User{ID: 4, Role: domain.RoleTeamLead, TeamID: uintPtr(9)}, defaults,
			policy.Scope{Level: policy.LevelTeam, UserID: 4, TeamID: 9}},
		{"employee sees self", models.User{ID: 5, Role: domain.RoleEmployee, TeamID: uintPtr(9)}, defaults, policy.Scope{Level: policy.LevelSelf, UserID: 5}},
		{"employee with team view", models.User{ID: 5, Role: domain.RoleEmployee, TeamID: uintPtr(9)}, teamView,
			policy.Scope{Level: policy.LevelTeam, UserID: 5, TeamID: 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.ScopeFor(&tc.actor, tc.settings))
		})
	}
}

func TestScopeAllows(t *testing.T) {
	dept := policy.Scope{Level: policy.LevelDepartment, UserID: 1, DepartmentID: 7}
	assert.True(t, dept.Allows(&models.User{ID: 1}))
	assert.True(t, dept.Allows(&models.User{ID: 2, DepartmentID: uintPtr(7)}))
	assert.False(t, dept.Allows(&models.User{ID: 3, DepartmentID: uintPtr(8)}))
	assert.False(t, dept.Allows(&models.User{ID: 4}))
	assert.False(t, dept.Allows(nil))

	self := policy.Scope{Level: policy.LevelSelf, UserID: 1}
	assert.False(t, self.Allows(&models.User{ID: 2}))
	assert.True(t, policy.Scope{Level: policy.LevelAll}.Allows(&models.User{ID: 99}))
}

func TestScopeFilter(t *testing.T) {
	db := testutil.NewDB(t)
	dept := &models.Department{Name: "Engineering", Code: "ENG"}
	require.NoError(t, db.Create(dept).Error)

	mgr := testutil.CreateUser(t, db, domain.RoleManager, "mgr@example.com", testutil.WithDepartment(dept.ID))
	dev := testutil.CreateUser(t, db, domain.RoleEmployee, "dev@example.com", testutil.WithDepartment(dept.ID))
	testutil.CreateUser(t, db, domain.RoleEmployee, "outsider@example.com")

	ids := func(s policy.Scope) []uint {
		var out []uint
		require.NoError(t, db.Model(&models.User{}).Scopes(s.Filter("users.id")).Order("id").Pluck("id", &out).Error)
		return out
	}

	assert.Equal(t, []uint{mgr.ID, dev.ID}, ids(policy.ScopeFor(mgr, models.DefaultOrgSettings())))
	assert.Equal(t, []uint{dev.ID}, ids(policy.ScopeFor(dev, models.DefaultOrgSettings())))
	assert.Len(t, ids(policy.Scope{Level: policy.LevelAll}), 3)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "department", policy.LevelDepartment.String())
	assert.Equal(t, "self", policy.Level(42).String())
}

func TestScopeRequire(t *testing.T) {
	teamView := models.DefaultOrgSettings()
	teamView.Permissions.EmployeesCanViewTeam = true

	manager := &models.User{ID: 3, Role: domain.RoleManager, DepartmentID: uintPtr(7), IsActive: true}
	scope := policy.ScopeFor(manager, models.DefaultOrgSettings())
	assert.Equal(t, policy.LevelDepartment, scope.Require(manager, domain.PermUsersView).Level)
	assert.Equal(t, policy.LevelDepartment, scope.Require(manager, domain.PermAttendanceViewAll).Level)
	assert.Equal(t, policy.Scope{Level: policy.LevelSelf, UserID: 3}, scope.Require(manager, domain.PermAuditView))

	manager.IsActive = false
	assert.Equal(t, policy.LevelSelf, scope.Require(manager, domain.PermUsersView).Level)

	emp := &models.User{ID: 5, Role: domain.RoleEmployee, TeamID: uintPtr(9), IsActive: true}
	empScope := policy.ScopeFor(emp, teamView)
	assert.Equal(t, policy.LevelTeam, empScope.Require(emp, domain.PermUsersView).Level)
}
