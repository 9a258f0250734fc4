package service

import (
	"context"
	"encoding/json"
	"errors"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/repository"
	"hrm/internal/ws"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pusher delivers mobile push notifications. *FCMService implements it.
type Pusher interface {
	Push(ctx context.Context, tokens []string, title, body string, data map[string]interface{}) error
}

// InboxMessage is the websocket frame for a new in-app notification.
type InboxMessage struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
}

// NotificationService stores in-app notifications, streams them over the
// websocket hub and mirrors them as mobile push.
type NotificationService struct {
	repo  *repository.NotificationRepository
	users *repository.UserRepository
	hub   *ws.Hub
	push  Pusher
	log   *zap.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, users *repository.UserRepository, hub *ws.Hub, push Pusher, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, users: users, hub: hub, push: push, log: log}
}

// Notify writes an inbox item for each user and fans it out. Errors are logged only.
func (s *NotificationService) Notify(ctx context.Context, userIDs []uint, notifType, title, body string, data map[string]interface{}) {
	if len(userIDs) == 0 {
		return
	}
	var raw datatypes.JSON
	if data != nil {
		b, _ := json.Marshal(data)
		raw = datatypes.JSON(b)
	}
	list := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		list = append(list, models.Notification{UserID: id, Type: notifType, Title: title, Body: body, Data: raw})
	}
	if err := s.repo.CreateBatch(ctx, list); err != nil {
		s.log.Error("inbox write failed", zap.String("type", notifType), zap.Error(err))
		return
	}
	if s.hub != nil {
		for i := range list {
			s.hub.SendToUser(list[i].UserID, InboxMessage{Type: "notification", Notification: &list[i]})
		}
	}
	s.sendPush(ctx, userIDs, notifType, title, body, data)
}

func (s *NotificationService) sendPush(ctx context.Context, userIDs []uint, notifType, title, body string, data map[string]interface{}) {
	if s.push == nil {
		return
	}
	tokens, err := s.users.FCMTokens(ctx, userIDs)
	if err != nil {
		s.log.Error("fcm token lookup failed", zap.Error(err))
		return
	}
	payload := map[string]interface{}{"type": notifType}
	for k, v := range data {
		payload[k] = v
	}
	if err := s.push.Push(ctx, tokens, title, body, payload); err != nil {
		s.log.Warn("push failed", zap.String("type", notifType), zap.Error(err))
	}
}

type InboxView struct {
	Items       []models.Notification `json:"items"`
	UnreadCount int64                 `json:"unread_count"`
}

func (s *NotificationService) Inbox(ctx context.Context, userID uint, unreadOnly bool, p Page) (*InboxView, error) {
	list, err := s.repo.ListByUserID(ctx, userID, unreadOnly, p.Limit, (p.Page-1)*p.Limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Notification{}
	}
	return &InboxView{Items: list, UnreadCount: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	err := s.repo.MarkRead(ctx, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound("Notification not found")
	}
	return err
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllRead(ctx, userID)
}
