package service

import (
	"context"
	"time"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/repository"
)

type DashboardService struct {
	repo     *repository.DashboardRepository
	settings *SettingsService
	now      func() time.Time
}

func NewDashboardService(repo *repository.DashboardRepository, settings *SettingsService) *DashboardService {
	return &DashboardService{repo: repo, settings: settings, now: time.Now}
}

// Stats summarises today's figures inside the actor's scope. Queue figures
// are included for queue operators only.
func (s *DashboardService) Stats(ctx context.Context, actor *models.User) (*repository.DashboardStats, error) {
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx, scope.Filter, s.now())
	if err != nil {
		return nil, err
	}
	if actor.Can(domain.PermNotificationQueue) {
		if err := s.repo.QueueCounts(ctx, stats); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
