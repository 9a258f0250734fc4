package service

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/policy"
	"hrm/internal/repository"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type SettingsService struct {
	repo *repository.SettingRepository
}

func NewSettingsService(repo *repository.SettingRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

func (s *SettingsService) Get(ctx context.Context) (models.OrgSettings, error) {
	return s.repo.Get(ctx)
}

func (s *SettingsService) Update(ctx context.Context, actor *models.User, in models.OrgSettings) (models.OrgSettings, error) {
	if !actor.Can(domain.PermSettingsManage) {
		return models.OrgSettings{}, domain.ErrForbidden
	}
	if err := ValidateSettings(in); err != nil {
		return models.OrgSettings{}, err
	}
	if err := s.repo.Set(ctx, in, actor.ID); err != nil {
		return models.OrgSettings{}, err
	}
	return in, nil
}

func ValidateSettings(in models.OrgSettings) error {
	if _, err := time.Parse("15:04", in.Attendance.WorkStartTime); err != nil {
		return domain.Invalid("attendance.work_start_time", "work_start_time must be HH:MM")
	}
	if in.Attendance.LateGraceMinutes < 0 || in.Attendance.LateGraceMinutes > 240 {
		return domain.Invalid("attendance.late_grace_minutes", "late_grace_minutes must be between 0 and 240")
	}
	if in.Theme.PrimaryColor != "" && !hexColor.MatchString(in.Theme.PrimaryColor) {
		return domain.Invalid("theme.primary_color", "primary_color must be a hex color like #2563eb")
	}
	if in.Theme.LogoURL != "" {
		u, err := url.Parse(in.Theme.LogoURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.Invalid("theme.logo_url", "logo_url must be an http(s) URL")
		}
	}
	return nil
}

// ScopeFor resolves the actor's visibility window under the current settings.
func (s *SettingsService) ScopeFor(ctx context.Context, actor *models.User) (policy.Scope, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return policy.Scope{}, err
	}
	return policy.ScopeFor(actor, settings), nil
}
