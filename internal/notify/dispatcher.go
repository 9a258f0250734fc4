package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hrm/internal/domain"
	"hrm/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RuleSource interface {
	GetRuleByType(ctx context.Context, notificationType string) (*models.NotificationRule, error)
}

// SubjectLoader loads a user with Manager, Team.Lead and Department.Head.
type SubjectLoader interface {
	GetWithRelations(ctx context.Context, id uint) (*models.User, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, t domain.NotificationType, email string, vars map[string]interface{}) (*models.EmailLog, error)
}

// Attributes are the event facts rule conditions are evaluated against.
type Attributes struct {
	LeaveDays      float64
	LeaveTypeCode  string
	RequestType    string
	NoticePriority string
}

// Event is one domain occurrence that may produce emails.
type Event struct {
	Type          domain.NotificationType
	ActorID       uint
	SubjectUserID uint // the user the event is about, usually the requester
	Variables     map[string]interface{}
	Attributes    Attributes
	Audience      Audience
}

type Dispatcher struct {
	rules    RuleSource
	users    SubjectLoader
	resolver *Resolver
	queue    Enqueuer
	log      *zap.Logger
}

func NewDispatcher(rules RuleSource, users SubjectLoader, resolver *Resolver, queue Enqueuer, log *zap.Logger) *Dispatcher {
	return &Dispatcher{rules: rules, users: users, resolver: resolver, queue: queue, log: log}
}

// Dispatch resolves the recipients of ev through its rule and enqueues one
// email per recipient. It returns the number of entries queued. A missing or
// inactive rule, or unmet conditions, queue nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (int, error) {
	rule, err := d.rules.GetRuleByType(ctx, string(ev.Type))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("load rule: %w", err)
	}
	if !rule.IsActive || !Matches(rule.Conditions.Data(), ev.Attributes) {
		return 0, nil
	}

	var subject *models.User
	if ev.SubjectUserID != 0 {
		subject, err = d.users.GetWithRelations(ctx, ev.SubjectUserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("load subject user: %w", err)
		}
	}

	recipients, err := d.resolver.Resolve(ctx, ev.Type, subject, rule.RecipientConfig.Data(), ev.Audience)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, addr := range recipients {
		entry, err := d.queue.Enqueue(ctx, ev.Type, addr, ev.Variables)
		if err != nil {
			return queued, err
		}
		if entry == nil {
			// no active template; every further call would be skipped too
			break
		}
		queued++
	}
	return queued, nil
}

// Notify is Dispatch for callers that must not fail on notification errors.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	n, err := d.Dispatch(ctx, ev)
	if err != nil {
		d.log.Error("notification dispatch failed",
			zap.String("type", string(ev.Type)),
			zap.Uint("subject_user_id", ev.SubjectUserID),
			zap.Error(err))
		return
	}
	if n > 0 {
		d.log.Debug("notifications queued", zap.String("type", string(ev.Type)), zap.Int("count", n))
	}
}

// Matches reports whether attrs satisfy every condition set in c.
func Matches(c models.RuleConditions, attrs Attributes) bool {
	if c.MinLeaveDays > 0 && attrs.LeaveDays < c.MinLeaveDays {
		return false
	}
	if len(c.LeaveTypeCodes) > 0 && !containsFold(c.LeaveTypeCodes, attrs.LeaveTypeCode) {
		return false
	}
	if len(c.RequestTypes) > 0 && !containsFold(c.RequestTypes, attrs.RequestType) {
		return false
	}
	if len(c.NoticePriorities) > 0 && !containsFold(c.NoticePriorities, attrs.NoticePriority) {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
