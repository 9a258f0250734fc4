// Package policy maps the acting user onto the set of records they may see.
package policy

import (
	"hrm/internal/domain"
	"hrm/internal/models"

	"gorm.io/gorm"
)

type Level int

const (
	LevelSelf Level = iota
	LevelTeam
	LevelDepartment
	LevelAll
)

func (l Level) String() string {
	switch l {
	case LevelAll:
		return "all"
	case LevelDepartment:
		return "department"
	case LevelTeam:
		return "team"
	default:
		return "self"
	}
}

// Scope is the visibility window of one actor. DepartmentID/TeamID are set
// only for the matching level.
type Scope struct {
	Level        Level
	UserID       uint
	DepartmentID uint
	TeamID       uint
}

// ScopeFor derives the actor's scope. A manager without a department or a
// team lead without a team falls back to their own records.
func ScopeFor(actor *models.User, settings models.OrgSettings) Scope {
	self := Scope{Level: LevelSelf, UserID: actor.ID}
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleHR:
		return Scope{Level: LevelAll, UserID: actor.ID}
	case domain.RoleManager:
		if actor.DepartmentID != nil {
			return Scope{Level: LevelDepartment, UserID: actor.ID, DepartmentID: *actor.DepartmentID}
		}
	case domain.RoleTeamLead:
		if actor.TeamID != nil {
			return Scope{Level: LevelTeam, UserID: actor.ID, TeamID: *actor.TeamID}
		}
	case domain.RoleEmployee:
		if settings.Permissions.EmployeesCanViewTeam && actor.TeamID != nil {
			return Scope{Level: LevelTeam, UserID: actor.ID, TeamID: *actor.TeamID}
		}
	}
	return self
}

// Require narrows s to the actor's own records unless the actor holds perm.
// Team visibility an employee gets from OrgSettings is not role-derived and
// is kept.
func (s Scope) Require(actor *models.User, perm domain.Permission) Scope {
	if s.Level == LevelSelf || actor.Role == domain.RoleEmployee || actor.Can(perm) {
		return s
	}
	return Scope{Level: LevelSelf, UserID: actor.ID}
}

// Filter returns a GORM scope restricting userColumn (e.g. "leave_requests.user_id"
// or "users.id") to the users inside s.
func (s Scope) Filter(userColumn string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch s.Level {
		case LevelAll:
			return db
		case LevelDepartment:
			return db.Where(userColumn+" IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&models.User{}).Select("id").Where("department_id = ?", s.DepartmentID))
		case LevelTeam:
			return db.Where(userColumn+" IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&models.User{}).Select("id").Where("team_id = ?", s.TeamID))
		default:
			return db.Where(userColumn+" = ?", s.UserID)
		}
	}
}

// Allows reports whether a record owned by owner is visible inside s.
func (s Scope) Allows(owner *models.User) bool {
	if owner == nil {
		return false
	}
	if owner.ID == s.UserID {
		return true
	}
	switch s.Level {
	case LevelAll:
		return true
	case LevelDepartment:
		return owner.DepartmentID != nil && *owner.DepartmentID == s.DepartmentID
	case LevelTeam:
		return owner.TeamID != nil && *owner.TeamID == s.TeamID
	}
	return false
}
