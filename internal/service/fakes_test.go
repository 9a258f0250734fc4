package service

import (
	"context"
	"sync"
	"time"

	"hrm/config"
	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/notify"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordedEvents) Notify(ctx context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) types() []domain.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.NotificationType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type inboxCall struct {
	UserIDs []uint
	Type    string
	Title   string
}

type recordedInbox struct {
	mu    sync.Mutex
	calls []inboxCall
}

func (r *recordedInbox) Notify(ctx context.Context, userIDs []uint, notifType, title, body string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inboxCall{UserIDs: userIDs, Type: notifType, Title: title})
}

type enqueued struct {
	Type  domain.NotificationType
	Email string
	Vars  map[string]interface{}
}

type recordedMail struct {
	mu   sync.Mutex
	sent []enqueued
}

func (r *recordedMail) Enqueue(ctx context.Context, t domain.NotificationType, email string, vars map[string]interface{}) (*models.EmailLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, enqueued{Type: t, Email: email, Vars: vars})
	return &models.EmailLog{Type: string(t), RecipientEmail: email}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:  config.JWTConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "hrm-test", CookieName: "auth-token"},
		Mail: config.MailConfig{AppURL: "https://hr.example.com"},
	}
}
