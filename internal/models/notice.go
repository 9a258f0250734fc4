package models

import "time"

// Notice is an announcement. A nil BranchID/DepartmentID targets everyone.
type Notice struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	Priority      string     `gorm:"size:20;not null;default:'NORMAL'" json:"priority"`
	AuthorID      uint       `gorm:"not null;index" json:"author_id"`
	BranchID      *uint      `gorm:"index" json:"branch_id"`
	DepartmentID  *uint      `gorm:"index" json:"department_id"`
	IsPublished   bool       `gorm:"not null;default:false;index" json:"is_published"`
	PublishedAt   *time.Time `json:"published_at"`
	ExpiresAt     *time.Time `json:"expires_at"`
	AttachmentURL string     `gorm:"size:512" json:"attachment_url"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (Notice) TableName() string { return "notices" }

type EmployeeRequest struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	Type         string     `gorm:"size:32;not null;index" json:"type"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Status       string     `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	ReviewedByID *uint      `json:"reviewed_by_id"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
	ReviewNote   string     `gorm:"size:512" json:"review_note"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	User       *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ReviewedBy *User `gorm:"foreignKey:ReviewedByID" json:"reviewed_by,omitempty"`
}

func (EmployeeRequest) TableName() string { return "employee_requests" }
