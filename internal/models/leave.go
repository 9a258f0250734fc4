package models

import "time"

type LeaveType struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Code        string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	DefaultDays float64   `gorm:"not null;default:0" json:"default_days"`
	IsPaid      bool      `gorm:"not null" json:"is_paid"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (LeaveType) TableName() string { return "leave_types" }

type LeaveAllocation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_allocation_user_type_year" json:"user_id"`
	LeaveTypeID uint      `gorm:"not null;uniqueIndex:idx_allocation_user_type_year" json:"leave_type_id"`
	Year        int       `gorm:"not null;uniqueIndex:idx_allocation_user_type_year" json:"year"`
	TotalDays   float64   `gorm:"not null;default:0" json:"total_days"`
	UsedDays    float64   `gorm:"not null;default:0" json:"used_days"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LeaveType *LeaveType `gorm:"foreignKey:LeaveTypeID" json:"leave_type,omitempty"`
}

func (LeaveAllocation) TableName() string { return "leave_allocations" }

func (a *LeaveAllocation) Remaining() float64 { return a.TotalDays - a.UsedDays }

type LeaveRequest struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	LeaveTypeID  uint       `gorm:"not null;index" json:"leave_type_id"`
	StartDate    time.Time  `gorm:"not null;index" json:"start_date"`
	EndDate      time.Time  `gorm:"not null" json:"end_date"`
	Days         float64    `gorm:"not null" json:"days"`
	Reason       string     `gorm:"type:text" json:"reason"`
	Status       string     `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	ReviewedByID *uint      `json:"reviewed_by_id"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
	ReviewNote   string     `gorm:"size:512" json:"review_note"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LeaveType  *LeaveType `gorm:"foreignKey:LeaveTypeID" json:"leave_type,omitempty"`
	ReviewedBy *User      `gorm:"foreignKey:ReviewedByID" json:"reviewed_by,omitempty"`
}

func (LeaveRequest) TableName() string { return "leave_requests" }
