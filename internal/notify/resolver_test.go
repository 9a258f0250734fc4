package notify

import (
	"context"
	"testing"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/repository"
	"hrm/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestResolver(db *gorm.DB) (*Resolver, *repository.UserRepository, *repository.RuleRepository) {
	users := repository.NewUserRepository(db)
	rules := repository.NewRuleRepository(db)
	return NewResolver(users, rules), users, rules
}

func TestResolver_MissingManagerYieldsNothing(t *testing.T) {
	db := testutil.NewDB(t)
	r, users, _ := newTestResolver(db)
	ctx := context.Background()

	emp := testutil.CreateUser(t, db, domain.RoleEmployee, "solo@example.com")
	subject, err := users.GetWithRelations(ctx, emp.ID)
	require.NoError(t, err)

	got, err := r.Resolve(ctx, domain.NotifyLeaveSubmitted, subject,
		models.RecipientConfig{NotifyManager: true, NotifyTeamLead: true, NotifyDepartmentHead: true}, Audience{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolver_RelationsAndDedup(t *testing.T) {
	db := testutil.NewDB(t)
	r, users, _ := newTestResolver(db)
	ctx := context.Background()

	boss := testutil.CreateUser(t, db, domain.RoleManager, "Boss@Example.com")
	lead := testutil.CreateUser(t, db, domain.RoleTeamLead, "lead@example.com")
	hr := testutil.CreateUser(t, db, domain.RoleHR, "hr@example.com")
	testutil.CreateUser(t, db, domain.RoleHR, "hr-off@example.com", testutil.Inactive())

	dept := &models.Department{Name: "Eng", Code: "ENG", HeadID: &boss.ID}
	require.NoError(t, db.Create(dept).Error)
	team := &models.Team{Name: "Core", DepartmentID: dept.ID, LeadID: &lead.ID}
	require.NoError(t, db.Create(team).Error)
	emp := testutil.CreateUser(t, db, domain.RoleEmployee, "emp@example.com",
		testutil.WithManager(boss.ID), testutil.WithTeam(team.ID), testutil.WithDepartment(dept.ID))

	subject, err := users.GetWithRelations(ctx, emp.ID)
	require.NoError(t, err)

	cfg := models.RecipientConfig{
		NotifyRequester:      true,
		NotifyManager:        true,
		NotifyTeamLead:       true,
		NotifyDepartmentHead: true,
		NotifyHR:             true,
		CustomRecipients:     []string{"BOSS@example.com", "audit@example.com"},
	}
	got, err := r.Resolve(ctx, domain.NotifyLeaveSubmitted, subject, cfg, Audience{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"emp@example.com",
		"boss@example.com",
		"lead@example.com",
		hr.Email,
		"audit@example.com",
	}, got)
}

func TestResolver_PreferenceFilter(t *testing.T) {
	db := testutil.NewDB(t)
	r, _, rules := newTestResolver(db)
	ctx := context.Background()

	optedOut := testutil.CreateUser(t, db, domain.RoleHR, "quiet@example.com")
	testutil.CreateUser(t, db, domain.RoleHR, "loud@example.com")
	require.NoError(t, rules.UpsertPreference(ctx, &models.NotificationPreference{
		UserID: optedOut.ID, Type: string(domain.NotifyLeaveSubmitted), EmailEnabled: false,
	}))

	cfg := models.RecipientConfig{NotifyHR: true}

	got, err := r.Resolve(ctx, domain.NotifyLeaveSubmitted, nil, cfg, Audience{})
	require.NoError(t, err)
	assert.Equal(t, []string{"loud@example.com"}, got)

	// the opt-out is per type; other types default to enabled
	got, err = r.Resolve(ctx, domain.NotifyLeaveCancelled, nil, cfg, Audience{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"quiet@example.com", "loud@example.com"}, got)
}

func TestResolver_RoleRecipientsRespectAudience(t *testing.T) {
	db := testutil.NewDB(t)
	r, _, _ := newTestResolver(db)
	ctx := context.Background()

	testutil.CreateUser(t, db, domain.RoleEmployee, "a@example.com", testutil.WithBranch(1))
	testutil.CreateUser(t, db, domain.RoleEmployee, "b@example.com", testutil.WithBranch(2))
	testutil.CreateUser(t, db, domain.RoleManager, "m@example.com", testutil.WithBranch(1))

	cfg := models.RecipientConfig{RoleRecipients: []string{domain.RoleEmployee, "NOT_A_ROLE"}}
	branch := uint(1)

	got, err := r.Resolve(ctx, domain.NotifyNoticePublished, nil, cfg, Audience{BranchID: &branch})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, got)

	got, err = r.Resolve(ctx, domain.NotifyNoticePublished, nil, cfg, Audience{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got)
}
