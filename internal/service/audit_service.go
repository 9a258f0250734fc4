package service

import (
	"context"
	"encoding/json"

	"hrm/internal/models"
	"hrm/internal/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	UserID    *uint
	Action    string
	Entity    string
	EntityID  string
	Details   interface{}
	IPAddress string
	UserAgent string
}

type AuditService struct {
	repo *repository.AuditLogRepository
	log  *zap.Logger
}

func NewAuditService(repo *repository.AuditLogRepository, log *zap.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

// Record appends e. Failures are logged and never reach the caller.
func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	var details datatypes.JSON
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err == nil {
			details = datatypes.JSON(b)
		}
	}
	err := s.repo.Create(ctx, &models.AuditLog{
		UserID:    e.UserID,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Details:   details,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	})
	if err != nil {
		s.log.Error("audit write failed", zap.String("action", e.Action), zap.String("entity", e.Entity), zap.Error(err))
	}
}

func (s *AuditService) List(ctx context.Context, f repository.AuditFilter, p Page) (*Paged[models.AuditLog], error) {
	list, total, err := s.repo.List(ctx, f, p.Page, p.Limit)
	if err != nil {
		return nil, err
	}
	return paged(list, total, p), nil
}
