package models

import "time"

type Branch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Code      string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Address   string    `gorm:"size:512" json:"address"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Departments []Department `gorm:"foreignKey:BranchID" json:"departments,omitempty"`
}

func (Branch) TableName() string { return "branches" }

type Department struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Code      string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	BranchID  *uint     `gorm:"index" json:"branch_id"`
	HeadID    *uint     `gorm:"index" json:"head_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Branch *Branch `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Head   *User   `gorm:"foreignKey:HeadID" json:"head,omitempty"`
	Teams  []Team  `gorm:"foreignKey:DepartmentID" json:"teams,omitempty"`
}

func (Department) TableName() string { return "departments" }

type Team struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	DepartmentID uint      `gorm:"not null;index" json:"department_id"`
	LeadID       *uint     `gorm:"index" json:"lead_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Lead       *User       `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
}

func (Team) TableName() string { return "teams" }

// OrgCounts carries dependent-record counts checked before an org entity is deleted.
type OrgCounts struct {
	Users       int64 `json:"users"`
	Departments int64 `json:"departments"`
	Teams       int64 `json:"teams"`
}
