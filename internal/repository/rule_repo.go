package repository

import (
	"context"

	"hrm/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RuleRepository stores notification rules, email templates and per-user preferences.
type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Rules

func (r *RuleRepository) ListRules(ctx context.Context) ([]models.NotificationRule, error) {
	var list []models.NotificationRule
	err := r.db.WithContext(ctx).Order("type ASC").Find(&list).Error
	return list, err
}

func (r *RuleRepository) GetRule(ctx context.Context, id uint) (*models.NotificationRule, error) {
	var rule models.NotificationRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *RuleRepository) GetRuleByType(ctx context.Context, notificationType string) (*models.NotificationRule, error) {
	var rule models.NotificationRule
	if err := r.db.WithContext(ctx).Where("type = ?", notificationType).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *RuleRepository) CreateRule(ctx context.Context, rule *models.NotificationRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *RuleRepository) UpdateRule(ctx context.Context, rule *models.NotificationRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *RuleRepository) DeleteRule(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.NotificationRule{}, id).Error
}

// Templates

func (r *RuleRepository) ListTemplates(ctx context.Context, notificationType string) ([]models.EmailTemplate, error) {
	var list []models.EmailTemplate
	q := r.db.WithContext(ctx)
	if notificationType != "" {
		q = q.Where("type = ?", notificationType)
	}
	err := q.Order("type ASC, name ASC").Find(&list).Error
	return list, err
}

func (r *RuleRepository) GetTemplate(ctx context.Context, id uint) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ActiveTemplate returns the active template for a type, preferring custom
// templates over system ones and newer over older.
func (r *RuleRepository) ActiveTemplate(ctx context.Context, notificationType string) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	err := r.db.WithContext(ctx).
		Where("type = ? AND is_active = ?", notificationType, true).
		Order("is_system ASC, updated_at DESC, id DESC").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RuleRepository) TemplateNameExists(ctx context.Context, name string, excludeID uint) (bool, error) {
	var c int64
	q := r.db.WithContext(ctx).Model(&models.EmailTemplate{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&c).Error
	return c > 0, err
}

func (r *RuleRepository) CreateTemplate(ctx context.Context, t *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *RuleRepository) UpdateTemplate(ctx context.Context, t *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *RuleRepository) DeleteTemplate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.EmailTemplate{}, id).Error
}

// Preferences

func (r *RuleRepository) PreferencesForUser(ctx context.Context, userID uint) ([]models.NotificationPreference, error) {
	var list []models.NotificationPreference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&list).Error
	return list, err
}

func (r *RuleRepository) UpsertPreference(ctx context.Context, p *models.NotificationPreference) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"email_enabled", "updated_at"}),
	}).Create(p).Error
}

// OptedOutEmails returns, lower-cased, the addresses among emails whose owner
// disabled email for notificationType.
func (r *RuleRepository) OptedOutEmails(ctx context.Context, notificationType string, emails []string) ([]string, error) {
	var out []string
	if len(emails) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).
		Table("notification_preferences").
		Joins("JOIN users ON users.id = notification_preferences.user_id").
		Where("notification_preferences.type = ? AND notification_preferences.email_enabled = ?", notificationType, false).
		Where("LOWER(users.email) IN ?", emails).
		Pluck("LOWER(users.email)", &out).Error
	return out, err
}
