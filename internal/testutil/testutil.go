// Package testutil opens throwaway databases and builds fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"hrm/internal/database"
	"hrm/internal/domain"
	"hrm/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// NewDB returns a migrated in-memory SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// UserOpt customises a fixture user.
type UserOpt func(*models.User)

func WithDepartment(id uint) UserOpt { return func(u *models.User) { u.DepartmentID = &id } }
func WithTeam(id uint) UserOpt       { return func(u *models.User) { u.TeamID = &id } }
func WithBranch(id uint) UserOpt     { return func(u *models.User) { u.BranchID = &id } }
func WithManager(id uint) UserOpt    { return func(u *models.User) { u.ManagerID = &id } }
func WithPasswordHash(h string) UserOpt {
	return func(u *models.User) { u.PasswordHash = h }
}
func Inactive() UserOpt { return func(u *models.User) { u.IsActive = false } }

// CreateUser inserts an active user with the given role and email.
func CreateUser(t *testing.T, db *gorm.DB, role, email string, opts ...UserOpt) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		EmployeeCode: fmt.Sprintf("EMP%04d", n),
		Name:         strings.Split(email, "@")[0],
		Email:        strings.ToLower(email),
		Role:         role,
		IsActive:     true,
	}
	for _, o := range opts {
		o(u)
	}
	require.NoError(t, db.Create(u).Error)
	if !u.IsActive {
		require.NoError(t, db.Model(u).Update("is_active", false).Error)
	}
	return u
}

// CreateLeaveType inserts an active leave type.
func CreateLeaveType(t *testing.T, db *gorm.DB, code string, paid bool) *models.LeaveType {
	t.Helper()
	lt := &models.LeaveType{Name: code + " leave", Code: code, DefaultDays: 10, IsPaid: paid, IsActive: true}
	require.NoError(t, db.Create(lt).Error)
	return lt
}

// Admin is a shortcut for an active ADMIN fixture.
func Admin(t *testing.T, db *gorm.DB) *models.User {
	return CreateUser(t, db, domain.RoleAdmin, fmt.Sprintf("admin%d@example.com", seq.Add(1)))
}
