package models

import (
	"time"

	"hrm/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EmployeeCode string         `gorm:"uniqueIndex;size:32;not null" json:"employee_code"`
	Name         string         `gorm:"size:128;not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:20;not null;index" json:"role"`
	IsActive     bool           `gorm:"not null;index" json:"is_active"`
	BranchID     *uint          `gorm:"index" json:"branch_id"`
	DepartmentID *uint          `gorm:"index" json:"department_id"`
	TeamID       *uint          `gorm:"index" json:"team_id"`
	ManagerID    *uint          `gorm:"index" json:"manager_id"`
	Position     string         `gorm:"size:128" json:"position"`
	Phone        string         `gorm:"size:32" json:"phone"`
	JoinDate     *time.Time     `json:"join_date"`
	AvatarURL    string         `gorm:"size:512" json:"avatar_url"`
	GoogleID     *string        `gorm:"uniqueIndex;size:255" json:"-"` // nil unless linked through Google sign-in
	FCMToken     string         `gorm:"size:512" json:"-"`
	TokenVersion int            `gorm:"not null;default:0" json:"-"` // bumped to invalidate issued sessions
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Branch     *Branch     `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Team       *Team       `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Manager    *User       `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
}

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
func (u *User) IsHR() bool    { return u.Role == domain.RoleHR }

// Can checks the central capability table for this user's role.
func (u *User) Can(perm domain.Permission) bool {
	return u != nil && u.IsActive && domain.Can(u.Role, perm)
}
