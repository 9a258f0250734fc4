package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"hrm/config"
	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/notify"
	"hrm/internal/repository"
	"hrm/internal/ws"
	"hrm/pkg/cloudinary"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoticeNotFound   = domain.NotFound("Notice not found")
	ErrAlreadyPublished = domain.Invalid("id", "Notice is already published")
)

type NoticeInput struct {
	Title        string     `json:"title" binding:"required,max=255"`
	Content      string     `json:"content" binding:"required"`
	Priority     string     `json:"priority" binding:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	BranchID     *uint      `json:"branch_id"`
	DepartmentID *uint      `json:"department_id"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Publish      bool       `json:"publish"`
}

// NoticeFrame is the websocket message sent when a notice goes live.
type NoticeFrame struct {
	Type   string         `json:"type"`
	Notice *models.Notice `json:"notice"`
}

type NoticeService struct {
	cfg    *config.Config
	repo   *repository.NoticeRepository
	users  *repository.UserRepository
	events EventNotifier
	hub    *ws.Hub
	push   Pusher
	cloud  cloudinary.Client
	log    *zap.Logger
	now    func() time.Time
}

func NewNoticeService(cfg *config.Config, repo *repository.NoticeRepository, users *repository.UserRepository, events EventNotifier,
	hub *ws.Hub, push Pusher, cloud cloudinary.Client, log *zap.Logger) *NoticeService {
	return &NoticeService{cfg: cfg, repo: repo, users: users, events: events, hub: hub, push: push, cloud: cloud, log: log, now: time.Now}
}

func (s *NoticeService) List(ctx context.Context, actor *models.User, p Page) (*Paged[models.Notice], error) {
	aud := repository.NoticeAudience{
		BranchID:      actor.BranchID,
		DepartmentID:  actor.DepartmentID,
		IncludeDrafts: actor.Can(domain.PermNoticesManage),
	}
	list, total, err := s.repo.ListVisible(ctx, aud, s.now(), p.Page, p.Limit)
	if err != nil {
		return nil, err
	}
	return paged(list, total, p), nil
}

func (s *NoticeService) Get(ctx context.Context, actor *models.User, id uint) (*models.Notice, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Notice not found")
	}
	if !actor.Can(domain.PermNoticesManage) && !visibleTo(n, actor, s.now()) {
		return nil, ErrNoticeNotFound
	}
	return n, nil
}

// visibleTo applies the reader audience rules to a single notice.
func visibleTo(n *models.Notice, u *models.User, now time.Time) bool {
	if !n.IsPublished {
		return false
	}
	if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
		return false
	}
	if n.BranchID != nil && (u.BranchID == nil || *u.BranchID != *n.BranchID) {
		return false
	}
	if n.DepartmentID != nil && (u.DepartmentID == nil || *u.DepartmentID != *n.DepartmentID) {
		return false
	}
	return true
}

func (s *NoticeService) Create(ctx context.Context, actor *models.User, in NoticeInput) (*models.Notice, error) {
	if !actor.Can(domain.PermNoticesManage) {
		return nil, domain.ErrForbidden
	}
	n := &models.Notice{AuthorID: actor.ID}
	applyNotice(n, in)
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	if in.Publish {
		return s.Publish(ctx, actor, n.ID)
	}
	return s.repo.GetByID(ctx, n.ID)
}

func (s *NoticeService) Update(ctx context.Context, actor *models.User, id uint, in NoticeInput) (*models.Notice, error) {
	if !actor.Can(domain.PermNoticesManage) {
		return nil, domain.ErrForbidden
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Notice not found")
	}
	applyNotice(n, in)
	n.Author = nil
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	if in.Publish && !n.IsPublished {
		return s.Publish(ctx, actor, n.ID)
	}
	return s.repo.GetByID(ctx, n.ID)
}

func applyNotice(n *models.Notice, in NoticeInput) {
	n.Title = strings.TrimSpace(in.Title)
	n.Content = in.Content
	n.Priority = in.Priority
	if n.Priority == "" {
		n.Priority = domain.NoticePriorityNormal
	}
	n.BranchID = in.BranchID
	n.DepartmentID = in.DepartmentID
	n.ExpiresAt = in.ExpiresAt
}

func (s *NoticeService) Delete(ctx context.Context, actor *models.User, id uint) error {
	if !actor.Can(domain.PermNoticesManage) {
		return domain.ErrForbidden
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return notFound(err, "Notice not found")
	}
	return s.repo.Delete(ctx, id)
}

// Publish makes a draft visible, emails the audience through the
// NOTICE_PUBLISHED rule and pushes it to connected and mobile clients.
func (s *NoticeService) Publish(ctx context.Context, actor *models.User, id uint) (*models.Notice, error) {
	if !actor.Can(domain.PermNoticesManage) {
		return nil, domain.ErrForbidden
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Notice not found")
	}
	if n.IsPublished {
		return nil, ErrAlreadyPublished
	}
	now := s.now()
	n.IsPublished = true
	n.PublishedAt = &now
	author := n.Author
	n.Author = nil
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	n.Author = author

	authorName := actor.Name
	if author != nil {
		authorName = author.Name
	}
	s.events.Notify(ctx, notify.Event{
		Type:          domain.NotifyNoticePublished,
		ActorID:       actor.ID,
		SubjectUserID: n.AuthorID,
		Variables: map[string]interface{}{
			"title":      n.Title,
			"content":    n.Content,
			"priority":   n.Priority,
			"authorName": authorName,
			"link":       fmt.Sprintf("%s/notices/%d", strings.TrimRight(s.cfg.Mail.AppURL, "/"), n.ID),
		},
		Attributes: notify.Attributes{NoticePriority: n.Priority},
		Audience:   notify.Audience{BranchID: n.BranchID, DepartmentID: n.DepartmentID},
	})
	s.fanOut(ctx, n)
	return n, nil
}

func (s *NoticeService) fanOut(ctx context.Context, n *models.Notice) {
	if s.hub != nil {
		s.hub.Broadcast(func(c *ws.Client) bool {
			if n.BranchID != nil && (c.BranchID == nil || *c.BranchID != *n.BranchID) {
				return false
			}
			return n.DepartmentID == nil || (c.DepartmentID != nil && *c.DepartmentID == *n.DepartmentID)
		}, NoticeFrame{Type: "notice_published", Notice: n})
	}
	if s.push == nil {
		return
	}
	audience, err := s.users.ListActiveByRoles(ctx, domain.Roles, n.BranchID, n.DepartmentID)
	if err != nil {
		s.log.Error("notice audience lookup failed", zap.Uint("notice_id", n.ID), zap.Error(err))
		return
	}
	ids := make([]uint, 0, len(audience))
	for _, u := range audience {
		ids = append(ids, u.ID)
	}
	tokens, err := s.users.FCMTokens(ctx, ids)
	if err != nil {
		s.log.Error("notice push tokens failed", zap.Uint("notice_id", n.ID), zap.Error(err))
		return
	}
	data := map[string]interface{}{"type": string(domain.NotifyNoticePublished), "notice_id": n.ID}
	if err := s.push.Push(ctx, tokens, n.Title, n.Priority+" notice", data); err != nil {
		s.log.Warn("notice push failed", zap.Uint("notice_id", n.ID), zap.Error(err))
	}
}

// UploadAttachment stores a file for the notice and records its URL.
func (s *NoticeService) UploadAttachment(ctx context.Context, actor *models.User, id uint, file io.Reader) (*models.Notice, error) {
	if !actor.Can(domain.PermNoticesManage) {
		return nil, domain.ErrForbidden
	}
	if s.cloud == nil {
		return nil, ErrUploadsNotSetUp
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Notice not found")
	}
	publicID := "notice_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	url, err := s.cloud.UploadFile(ctx, file, fmt.Sprintf("hrm/notices/%d", n.ID), publicID)
	if err != nil {
		return nil, fmt.Errorf("attachment upload: %w", err)
	}
	n.AttachmentURL = url
	n.Author = nil
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, n.ID)
}
