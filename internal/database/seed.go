package database

import (
	"errors"
	"fmt"
	"strings"

	"hrm/config"
	"hrm/internal/domain"
	"hrm/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type templateSeed struct {
	Type      domain.NotificationType
	Name      string
	Subject   string
	Body      string
	Variables map[string]interface{}
}

var systemTemplates = []templateSeed{
	{
		Type:    domain.NotifyLeaveSubmitted,
		Name:    "Leave request submitted",
		Subject: "Leave request from {{employeeName}}",
		Body: `<p>{{employeeName}} requested {{days}} day(s) of {{leaveType}} from {{startDate}} to {{endDate}}.</p>
<p>Reason: {{reason}}</p>
<p><a href="{{link}}">Review the request</a></p>`,
		Variables: map[string]interface{}{
			"employeeName": "Requesting employee", "leaveType": "Leave type name", "days": "Working days requested",
			"startDate": "First day", "endDate": "Last day", "reason": "Reason given", "link": "Link to the request",
		},
	},
	{
		Type:    domain.NotifyLeaveApproved,
		Name:    "Leave request approved",
		Subject: "Your {{leaveType}} request was approved",
		Body: `<p>Hi {{employeeName}},</p>
<p>Your request for {{startDate}} to {{endDate}} was approved by {{reviewerName}}.</p>
<p>{{reviewNote}}</p>`,
		Variables: map[string]interface{}{
			"employeeName": "Requesting employee", "leaveType": "Leave type name", "startDate": "First day",
			"endDate": "Last day", "reviewerName": "Reviewer", "reviewNote": "Reviewer note",
		},
	},
	{
		Type:    domain.NotifyLeaveRejected,
		Name:    "Leave request rejected",
		Subject: "Your {{leaveType}} request was rejected",
		Body: `<p>Hi {{employeeName}},</p>
<p>Your request for {{startDate}} to {{endDate}} was rejected by {{reviewerName}}.</p>
<p>{{reviewNote}}</p>`,
		Variables: map[string]interface{}{
			"employeeName": "Requesting employee", "leaveType": "Leave type name", "startDate": "First day",
			"endDate": "Last day", "reviewerName": "Reviewer", "reviewNote": "Reviewer note",
		},
	},
	{
		Type:    domain.NotifyLeaveCancelled,
		Name:    "Leave request cancelled",
		Subject: "{{employeeName}} cancelled a leave request",
		Body:    `<p>{{employeeName}} cancelled the {{leaveType}} request for {{startDate}} to {{endDate}}.</p>`,
		Variables: map[string]interface{}{
			"employeeName": "Requesting employee", "leaveType": "Leave type name",
			"startDate": "First day", "endDate": "Last day",
		},
	},
	{
		Type:    domain.NotifyEmployeeRequestSubmitted,
		Name:    "Employee request submitted",
		Subject: "New {{requestType}} request from {{employeeName}}",
		Body: `<p>{{employeeName}} submitted "{{title}}".</p>
<p>{{description}}</p>
<p><a href="{{link}}">Review the request</a></p>`,
		Variables: map[string]interface{}{
			"employeeName": "Requesting employee", "requestType": "Request type", "title": "Request title",
			"description": "Request description", "link": "Link to the request",
		},
	},
	{
		Type:    domain.NotifyEmployeeRequestApproved,
		Name:    "Employee request approved",
		Subject: "Your request \"{{title}}\" was approved",
		Body:    `<p>Hi {{employeeName}},</p><p>{{reviewerName}} approved your request.</p><p>{{reviewNote}}</p>`,
		Variables: map[string]interface{}{
			"employeeName": "Requesting employee", "title": "Request title",
			"reviewerName": "Reviewer", "reviewNote": "Reviewer note",
		},
	},
	{
		Type:    domain.NotifyEmployeeRequestRejected,
		Name:    "Employee request rejected",
		Subject: "Your request \"{{title}}\" was rejected",
		Body:    `<p>Hi {{employeeName}},</p><p>{{reviewerName}} rejected your request.</p><p>{{reviewNote}}</p>`,
		Variables: map[string]interface{}{
			"employeeName": "Requesting employee", "title": "Request title",
			"reviewerName": "Reviewer", "reviewNote": "Reviewer note",
		},
	},
	{
		Type:    domain.NotifyNoticePublished,
		Name:    "Notice published",
		Subject: "[{{priority}}] {{title}}",
		Body:    `<h2>{{title}}</h2><p>{{content}}</p><p>Posted by {{authorName}}. <a href="{{link}}">Open</a></p>`,
		Variables: map[string]interface{}{
			"title": "Notice title", "content": "Notice text", "priority": "Priority",
			"authorName": "Author", "link": "Link to the notice",
		},
	},
	{
		Type:    domain.NotifyPasswordReset,
		Name:    "Password reset",
		Subject: "Reset your password",
		Body: `<p>Hi {{name}},</p>
<p>Use the link below to choose a new password. It expires in {{expiresInMinutes}} minutes.</p>
<p><a href="{{resetUrl}}">Reset password</a></p>`,
		Variables: map[string]interface{}{
			"name": "Account holder", "resetUrl": "One-time reset link", "expiresInMinutes": "Link lifetime",
		},
	},
	{
		Type:    domain.NotifyWelcome,
		Name:    "Welcome email",
		Subject: "Welcome to the team, {{name}}",
		Body: `<p>Hi {{name}},</p>
<p>Your account {{email}} is ready. Employee code: {{employeeCode}}.</p>
<p><a href="{{loginUrl}}">Sign in</a></p>`,
		Variables: map[string]interface{}{
			"name": "New employee", "email": "Login email", "employeeCode": "Employee code", "loginUrl": "Sign-in link",
		},
	},
	{
		Type:      domain.NotifyTest,
		Name:      "Test email",
		Subject:   "HRM test email",
		Body:      `<p>Hi {{name}}, this is a test message sent at {{sentAt}}.</p>`,
		Variables: map[string]interface{}{"name": "Recipient", "sentAt": "Send time"},
	},
}

type ruleSeed struct {
	Type       domain.NotificationType
	Name       string
	Recipients models.RecipientConfig
}

var defaultRules = []ruleSeed{
	{domain.NotifyLeaveSubmitted, "Leave submitted", models.RecipientConfig{NotifyManager: true, NotifyTeamLead: true, NotifyHR: true}},
	{domain.NotifyLeaveApproved, "Leave approved", models.RecipientConfig{NotifyRequester: true}},
	{domain.NotifyLeaveRejected, "Leave rejected", models.RecipientConfig{NotifyRequester: true}},
	{domain.NotifyLeaveCancelled, "Leave cancelled", models.RecipientConfig{NotifyManager: true, NotifyHR: true}},
	{domain.NotifyEmployeeRequestSubmitted, "Employee request submitted", models.RecipientConfig{NotifyManager: true, NotifyHR: true}},
	{domain.NotifyEmployeeRequestApproved, "Employee request approved", models.RecipientConfig{NotifyRequester: true}},
	{domain.NotifyEmployeeRequestRejected, "Employee request rejected", models.RecipientConfig{NotifyRequester: true}},
	{domain.NotifyNoticePublished, "Notice published", models.RecipientConfig{RoleRecipients: domain.Roles}},
	{domain.NotifyPasswordReset, "Password reset", models.RecipientConfig{NotifyRequester: true}},
	{domain.NotifyWelcome, "Welcome email", models.RecipientConfig{NotifyRequester: true}},
	{domain.NotifyTest, "Test email", models.RecipientConfig{}},
}

var defaultLeaveTypes = []models.LeaveType{
	{Name: "Annual Leave", Code: "ANNUAL", DefaultDays: 20, IsPaid: true, IsActive: true},
	{Name: "Sick Leave", Code: "SICK", DefaultDays: 10, IsPaid: true, IsActive: true},
	{Name: "Unpaid Leave", Code: "UNPAID", DefaultDays: 0, IsPaid: false, IsActive: true},
}

// Seed creates the bootstrap administrator, system templates, default rules,
// default leave types and the settings row. Existing rows are left untouched.
func Seed(db *gorm.DB, cfg *config.BootstrapConfig, log *zap.Logger) error {
	if err := seedAdmin(db, cfg, log); err != nil {
		return err
	}
	for _, t := range systemTemplates {
		tpl := models.EmailTemplate{
			Name:      t.Name,
			Type:      string(t.Type),
			Subject:   t.Subject,
			HTMLBody:  t.Body,
			Variables: datatypes.JSONMap(t.Variables),
			IsActive:  true,
			IsSystem:  true,
		}
		if err := db.Where("name = ?", tpl.Name).FirstOrCreate(&tpl).Error; err != nil {
			return fmt.Errorf("seed template %s: %w", t.Name, err)
		}
	}
	for _, r := range defaultRules {
		rule := models.NotificationRule{
			Type:            string(r.Type),
			Name:            r.Name,
			IsActive:        true,
			RecipientConfig: datatypes.NewJSONType(r.Recipients),
			Conditions:      datatypes.NewJSONType(models.RuleConditions{}),
		}
		if err := db.Where("type = ?", rule.Type).FirstOrCreate(&rule).Error; err != nil {
			return fmt.Errorf("seed rule %s: %w", r.Type, err)
		}
	}
	for _, lt := range defaultLeaveTypes {
		lt := lt
		if err := db.Where("code = ?", lt.Code).FirstOrCreate(&lt).Error; err != nil {
			return fmt.Errorf("seed leave type %s: %w", lt.Code, err)
		}
	}
	settings := models.OrgSetting{ID: models.OrgSettingsID, Settings: datatypes.NewJSONType(models.DefaultOrgSettings())}
	if err := db.Where("id = ?", models.OrgSettingsID).FirstOrCreate(&settings).Error; err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

func seedAdmin(db *gorm.DB, cfg *config.BootstrapConfig, log *zap.Logger) error {
	var existing models.User
	err := db.Where("role = ?", domain.RoleAdmin).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Warn("no administrator exists and bootstrap credentials are empty")
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		EmployeeCode: "ADMIN001",
		Name:         cfg.AdminName,
		Email:        strings.ToLower(cfg.AdminEmail),
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Info("bootstrap administrator created", zap.String("email", admin.Email))
	return nil
}
