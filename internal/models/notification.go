package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is an in-app inbox item shown in the bell menu and pushed over websocket.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Type      string         `gorm:"size:50;not null;index" json:"type"`
	Title     string         `gorm:"size:255" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	Data      datatypes.JSON `json:"data"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}

// RecipientConfig selects who receives the email for a rule.
type RecipientConfig struct {
	NotifyRequester      bool     `json:"notify_requester"`
	NotifyManager        bool     `json:"notify_manager"`
	NotifyTeamLead       bool     `json:"notify_team_lead"`
	NotifyDepartmentHead bool     `json:"notify_department_head"`
	NotifyHR             bool     `json:"notify_hr"`
	NotifyAdmin          bool     `json:"notify_admin"`
	CustomRecipients     []string `json:"custom_recipients"`
	RoleRecipients       []string `json:"role_recipients"`
}

// RuleConditions narrows when a rule fires. Zero values mean "no restriction".
type RuleConditions struct {
	MinLeaveDays     float64  `json:"min_leave_days,omitempty"`
	LeaveTypeCodes   []string `json:"leave_type_codes,omitempty"`
	RequestTypes     []string `json:"request_types,omitempty"`
	NoticePriorities []string `json:"notice_priorities,omitempty"`
}

type NotificationRule struct {
	ID              uint                                `gorm:"primaryKey" json:"id"`
	Type            string                              `gorm:"uniqueIndex;size:50;not null" json:"type"`
	Name            string                              `gorm:"size:128;not null" json:"name"`
	Description     string                              `gorm:"size:512" json:"description"`
	IsActive        bool                                `gorm:"not null" json:"is_active"`
	RecipientConfig datatypes.JSONType[RecipientConfig] `json:"recipient_config"`
	Conditions      datatypes.JSONType[RuleConditions]  `json:"conditions"`
	CreatedAt       time.Time                           `json:"created_at"`
	UpdatedAt       time.Time                           `json:"updated_at"`
}

func (NotificationRule) TableName() string { return "notification_rules" }

type EmailTemplate struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Type      string            `gorm:"size:50;not null;index" json:"type"`
	Subject   string            `gorm:"size:255;not null" json:"subject"`
	HTMLBody  string            `gorm:"type:text;not null" json:"html_body"`
	Variables datatypes.JSONMap `json:"variables"` // variable name -> description
	IsActive  bool              `gorm:"not null" json:"is_active"`
	IsSystem  bool              `gorm:"not null;default:false" json:"is_system"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (EmailTemplate) TableName() string { return "email_templates" }

// EmailLog is one outbound email and doubles as the delivery queue entry.
type EmailLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	RecipientEmail string     `gorm:"size:255;not null;index" json:"recipient_email"`
	Type           string     `gorm:"size:50;not null;index" json:"type"`
	TemplateID     *uint      `json:"template_id"`
	Subject        string     `gorm:"size:255;not null" json:"subject"`
	RenderedBody   string     `gorm:"type:text;not null" json:"rendered_body"`
	Status         string     `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	LastError      string     `gorm:"size:1024" json:"last_error"`
	ClaimedAt      *time.Time `json:"claimed_at"`
	SentAt         *time.Time `json:"sent_at"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (EmailLog) TableName() string { return "email_logs" }

// NotificationPreference is keyed by (user, type). A missing row means enabled.
type NotificationPreference struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_pref_user_type" json:"user_id"`
	Type         string    `gorm:"size:50;not null;uniqueIndex:idx_pref_user_type" json:"type"`
	EmailEnabled bool      `gorm:"not null" json:"email_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (NotificationPreference) TableName() string { return "notification_preferences" }
