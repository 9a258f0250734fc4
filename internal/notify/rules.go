package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// conditionKinds lists which conditions each notification type accepts.
var conditionKinds = map[domain.NotificationType][]string{
	domain.NotifyLeaveSubmitted:           {"min_leave_days", "leave_type_codes"},
	domain.NotifyLeaveApproved:            {"min_leave_days", "leave_type_codes"},
	domain.NotifyLeaveRejected:            {"min_leave_days", "leave_type_codes"},
	domain.NotifyLeaveCancelled:           {"min_leave_days", "leave_type_codes"},
	domain.NotifyEmployeeRequestSubmitted: {"request_types"},
	domain.NotifyEmployeeRequestApproved:  {"request_types"},
	domain.NotifyEmployeeRequestRejected:  {"request_types"},
	domain.NotifyNoticePublished:          {"notice_priorities"},
}

// ValidateRule checks a rule's recipients and conditions against its type.
func ValidateRule(t domain.NotificationType, rc models.RecipientConfig, c models.RuleConditions) error {
	if !t.Valid() {
		return domain.Invalid("type", "type must be a known notification type")
	}
	for _, addr := range rc.CustomRecipients {
		if _, err := mail.ParseAddress(addr); err != nil {
			return domain.Invalid("custom_recipients", fmt.Sprintf("%q is not a valid email address", addr))
		}
	}
	for _, role := range rc.RoleRecipients {
		if !domain.IsValidRole(role) {
			return domain.Invalid("role_recipients", fmt.Sprintf("%q is not a valid role", role))
		}
	}
	allowed := map[string]bool{}
	for _, k := range conditionKinds[t] {
		allowed[k] = true
	}
	check := func(key string, set bool) error {
		if set && !allowed[key] {
			return domain.Invalid("conditions", fmt.Sprintf("condition %s does not apply to %s", key, t))
		}
		return nil
	}
	if c.MinLeaveDays < 0 {
		return domain.Invalid("conditions", "min_leave_days cannot be negative")
	}
	if err := check("min_leave_days", c.MinLeaveDays > 0); err != nil {
		return err
	}
	if err := check("leave_type_codes", len(c.LeaveTypeCodes) > 0); err != nil {
		return err
	}
	if err := check("request_types", len(c.RequestTypes) > 0); err != nil {
		return err
	}
	if err := check("notice_priorities", len(c.NoticePriorities) > 0); err != nil {
		return err
	}
	return nil
}

// RuleInput is the editable part of a rule.
type RuleInput struct {
	Type            string                 `json:"type"`
	Name            string                 `json:"name" binding:"required,max=128"`
	Description     string                 `json:"description"`
	IsActive        *bool                  `json:"is_active"`
	RecipientConfig models.RecipientConfig `json:"recipient_config"`
	Conditions      models.RuleConditions  `json:"conditions"`
}

// TemplateInput is the editable part of a template.
type TemplateInput struct {
	Name      string                 `json:"name" binding:"required,max=128"`
	Type      string                 `json:"type" binding:"required"`
	Subject   string                 `json:"subject" binding:"required,max=255"`
	HTMLBody  string                 `json:"html_body" binding:"required"`
	Variables map[string]interface{} `json:"variables"`
	IsActive  *bool                  `json:"is_active"`
}

// PreferenceView is one row of GET /notifications/preferences.
type PreferenceView struct {
	Type         string `json:"type"`
	EmailEnabled bool   `json:"email_enabled"`
}

// Store manages rules, templates and preferences.
type Store struct {
	repo *repository.RuleRepository
}

func NewStore(repo *repository.RuleRepository) *Store {
	return &Store{repo: repo}
}

func (s *Store) ListRules(ctx context.Context) ([]models.NotificationRule, error) {
	return s.repo.ListRules(ctx)
}

func (s *Store) GetRule(ctx context.Context, id uint) (*models.NotificationRule, error) {
	r, err := s.repo.GetRule(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRuleNotFound
	}
	return r, err
}

func (s *Store) CreateRule(ctx context.Context, in RuleInput) (*models.NotificationRule, error) {
	t := domain.NotificationType(in.Type)
	if err := ValidateRule(t, in.RecipientConfig, in.Conditions); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetRuleByType(ctx, in.Type); err == nil {
		return nil, ErrRuleExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	rule := &models.NotificationRule{
		Type:            in.Type,
		Name:            in.Name,
		Description:     in.Description,
		IsActive:        in.IsActive == nil || *in.IsActive,
		RecipientConfig: datatypes.NewJSONType(normalizeRecipients(in.RecipientConfig)),
		Conditions:      datatypes.NewJSONType(in.Conditions),
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// UpdateRule replaces the editable fields. The type of a rule never changes.
func (s *Store) UpdateRule(ctx context.Context, id uint, in RuleInput) (*models.NotificationRule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Type != "" && in.Type != rule.Type {
		return nil, domain.Invalid("type", "type cannot be changed")
	}
	if err := ValidateRule(domain.NotificationType(rule.Type), in.RecipientConfig, in.Conditions); err != nil {
		return nil, err
	}
	rule.Name = in.Name
	rule.Description = in.Description
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
	rule.RecipientConfig = datatypes.NewJSONType(normalizeRecipients(in.RecipientConfig))
	rule.Conditions = datatypes.NewJSONType(in.Conditions)
	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Store) DeleteRule(ctx context.Context, id uint) error {
	if _, err := s.GetRule(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteRule(ctx, id)
}

func normalizeRecipients(rc models.RecipientConfig) models.RecipientConfig {
	custom := make([]string, 0, len(rc.CustomRecipients))
	for _, a := range rc.CustomRecipients {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			custom = append(custom, a)
		}
	}
	rc.CustomRecipients = custom
	if rc.RoleRecipients == nil {
		rc.RoleRecipients = []string{}
	}
	return rc
}

func (s *Store) ListTemplates(ctx context.Context, notificationType string) ([]models.EmailTemplate, error) {
	return s.repo.ListTemplates(ctx, notificationType)
}

func (s *Store) GetTemplate(ctx context.Context, id uint) (*models.EmailTemplate, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	return t, err
}

func (s *Store) CreateTemplate(ctx context.Context, in TemplateInput) (*models.EmailTemplate, error) {
	if !domain.NotificationType(in.Type).Valid() {
		return nil, domain.Invalid("type", "type must be a known notification type")
	}
	taken, err := s.repo.TemplateNameExists(ctx, in.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrTemplateNameTaken
	}
	t := &models.EmailTemplate{
		Name:      in.Name,
		Type:      in.Type,
		Subject:   in.Subject,
		HTMLBody:  in.HTMLBody,
		Variables: datatypes.JSONMap(in.Variables),
		IsActive:  in.IsActive == nil || *in.IsActive,
	}
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTemplate edits a template. System templates keep their type.
func (s *Store) UpdateTemplate(ctx context.Context, id uint, in TemplateInput) (*models.EmailTemplate, error) {
	t, err := s.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.NotificationType(in.Type).Valid() {
		return nil, domain.Invalid("type", "type must be a known notification type")
	}
	if t.IsSystem && in.Type != t.Type {
		return nil, domain.Invalid("type", "the type of a system template cannot be changed")
	}
	taken, err := s.repo.TemplateNameExists(ctx, in.Name, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrTemplateNameTaken
	}
	t.Name = in.Name
	t.Type = in.Type
	t.Subject = in.Subject
	t.HTMLBody = in.HTMLBody
	if in.Variables != nil {
		t.Variables = datatypes.JSONMap(in.Variables)
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id uint) error {
	t, err := s.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if t.IsSystem {
		return ErrSystemTemplate
	}
	return s.repo.DeleteTemplate(ctx, id)
}

// Preview renders a stored template with sample variables. Variables without
// a sample value fall back to their description in brackets.
func (s *Store) Preview(ctx context.Context, id uint, sample map[string]interface{}) (Rendered, error) {
	t, err := s.GetTemplate(ctx, id)
	if err != nil {
		return Rendered{}, err
	}
	vars := make(map[string]interface{}, len(t.Variables)+len(sample))
	for name, desc := range t.Variables {
		vars[name] = fmt.Sprintf("[%v]", desc)
	}
	for k, v := range sample {
		vars[k] = v
	}
	return Render(t, vars), nil
}

// Preferences lists every notification type for userID; types without a row
// are enabled.
func (s *Store) Preferences(ctx context.Context, userID uint) ([]PreferenceView, error) {
	rows, err := s.repo.PreferencesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byType := make(map[string]bool, len(rows))
	for _, p := range rows {
		byType[p.Type] = p.EmailEnabled
	}
	out := make([]PreferenceView, 0, len(domain.NotificationTypes))
	for _, t := range domain.NotificationTypes {
		enabled, ok := byType[string(t)]
		if !ok {
			enabled = true
		}
		out = append(out, PreferenceView{Type: string(t), EmailEnabled: enabled})
	}
	return out, nil
}

func (s *Store) SetPreferences(ctx context.Context, userID uint, prefs []PreferenceView) ([]PreferenceView, error) {
	for _, p := range prefs {
		if !domain.NotificationType(p.Type).Valid() {
			return nil, domain.Invalid("type", fmt.Sprintf("%q is not a known notification type", p.Type))
		}
	}
	for _, p := range prefs {
		row := &models.NotificationPreference{UserID: userID, Type: p.Type, EmailEnabled: p.EmailEnabled}
		if err := s.repo.UpsertPreference(ctx, row); err != nil {
			return nil, err
		}
	}
	return s.Preferences(ctx, userID)
}
