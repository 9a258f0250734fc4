package handler

import (
	"errors"
	"net/http"
	"strings"

	"hrm/config"
	"hrm/internal/middleware"
	"hrm/internal/notify"
	"hrm/internal/repository"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationHandler serves the email rule engine, the delivery queue and
// the in-app inbox.
type NotificationHandler struct {
	cfg   *config.Config
	store *notify.Store
	queue *notify.Queue
	logs  *repository.EmailLogRepository
	inbox *service.NotificationService
	audit auditor
	log   *zap.Logger
}

func NewNotificationHandler(cfg *config.Config, store *notify.Store, queue *notify.Queue, logs *repository.EmailLogRepository,
	inbox *service.NotificationService, audit *service.AuditService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{cfg: cfg, store: store, queue: queue, logs: logs, inbox: inbox, audit: auditor{audit}, log: log}
}

// Rules

func (h *NotificationHandler) ListRules(c *gin.Context) {
	list, err := h.store.ListRules(c.Request.Context())
	if err != nil {
		fail(c, h.log, "notifications.rules.list", err)
		return
	}
	ok(c, list)
}

func (h *NotificationHandler) GetRule(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	r, err := h.store.GetRule(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "notifications.rules.get", err)
		return
	}
	ok(c, r)
}

func (h *NotificationHandler) CreateRule(c *gin.Context) {
	var in notify.RuleInput
	if !bind(c, &in) {
		return
	}
	r, err := h.store.CreateRule(c.Request.Context(), in)
	if err != nil {
		fail(c, h.log, "notifications.rules.create", err)
		return
	}
	h.audit.record(c, "CREATE", "NotificationRule", r.ID, in)
	created(c, r)
}

func (h *NotificationHandler) UpdateRule(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in notify.RuleInput
	if !bind(c, &in) {
		return
	}
	r, err := h.store.UpdateRule(c.Request.Context(), id, in)
	if err != nil {
		fail(c, h.log, "notifications.rules.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "NotificationRule", r.ID, in)
	ok(c, r)
}

func (h *NotificationHandler) DeleteRule(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.store.DeleteRule(c.Request.Context(), id); err != nil {
		fail(c, h.log, "notifications.rules.delete", err)
		return
	}
	h.audit.record(c, "DELETE", "NotificationRule", id, nil)
	message(c, "Rule deleted")
}

// Templates

func (h *NotificationHandler) ListTemplates(c *gin.Context) {
	list, err := h.store.ListTemplates(c.Request.Context(), c.Query("type"))
	if err != nil {
		fail(c, h.log, "notifications.templates.list", err)
		return
	}
	ok(c, list)
}

func (h *NotificationHandler) GetTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	t, err := h.store.GetTemplate(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "notifications.templates.get", err)
		return
	}
	ok(c, t)
}

func (h *NotificationHandler) CreateTemplate(c *gin.Context) {
	var in notify.TemplateInput
	if !bind(c, &in) {
		return
	}
	t, err := h.store.CreateTemplate(c.Request.Context(), in)
	if err != nil {
		fail(c, h.log, "notifications.templates.create", err)
		return
	}
	h.audit.record(c, "CREATE", "EmailTemplate", t.ID, gin.H{"name": t.Name, "type": t.Type})
	created(c, t)
}

func (h *NotificationHandler) UpdateTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in notify.TemplateInput
	if !bind(c, &in) {
		return
	}
	t, err := h.store.UpdateTemplate(c.Request.Context(), id, in)
	if err != nil {
		fail(c, h.log, "notifications.templates.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "EmailTemplate", t.ID, gin.H{"name": t.Name, "type": t.Type})
	ok(c, t)
}

func (h *NotificationHandler) DeleteTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.store.DeleteTemplate(c.Request.Context(), id); err != nil {
		fail(c, h.log, "notifications.templates.delete", err)
		return
	}
	h.audit.record(c, "DELETE", "EmailTemplate", id, nil)
	message(c, "Template deleted")
}

type PreviewRequest struct {
	Variables map[string]interface{} `json:"variables"`
}

// PreviewTemplate renders a template with sample variables without sending.
func (h *NotificationHandler) PreviewTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req PreviewRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	out, err := h.store.Preview(c.Request.Context(), id, req.Variables)
	if err != nil {
		fail(c, h.log, "notifications.templates.preview", err)
		return
	}
	ok(c, out)
}

// Preferences

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.store.Preferences(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		fail(c, h.log, "notifications.preferences.get", err)
		return
	}
	ok(c, prefs)
}

type PreferencesRequest struct {
	Preferences []notify.PreferenceView `json:"preferences" binding:"required"`
}

func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req PreferencesRequest
	if !bind(c, &req) {
		return
	}
	prefs, err := h.store.SetPreferences(c.Request.Context(), middleware.CurrentUser(c).ID, req.Preferences)
	if err != nil {
		fail(c, h.log, "notifications.preferences.update", err)
		return
	}
	ok(c, prefs)
}

// Queue

func (h *NotificationHandler) QueueStatus(c *gin.Context) {
	st, err := h.queue.Status(c.Request.Context())
	if err != nil {
		fail(c, h.log, "notifications.queue.status", err)
		return
	}
	ok(c, st)
}

type TestEmailRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
}

// QueueAction runs ?action=process (one pump pass) or ?action=test (send a
// test email to the given address or the caller).
func (h *NotificationHandler) QueueAction(c *gin.Context) {
	ctx := c.Request.Context()
	switch c.Query("action") {
	case "process":
		res, err := h.queue.ProcessQueue(ctx, h.cfg.Queue.BatchSize)
		if err != nil {
			fail(c, h.log, "notifications.queue.process", err)
			return
		}
		h.audit.record(c, "PROCESS_QUEUE", "EmailLog", 0, res)
		ok(c, res)
	case "test":
		var req TestEmailRequest
		if c.Request.ContentLength > 0 && !bind(c, &req) {
			return
		}
		actor := middleware.CurrentUser(c)
		to := strings.TrimSpace(req.Email)
		if to == "" {
			to = actor.Email
		}
		entry, err := h.queue.SendTest(ctx, to, actor.Name)
		if err != nil {
			fail(c, h.log, "notifications.queue.test", err)
			return
		}
		h.audit.record(c, "TEST_EMAIL", "EmailLog", entry.ID, gin.H{"to": to})
		ok(c, entry)
	default:
		abort(c, http.StatusBadRequest, "action must be one of: process, test")
	}
}

// Logs

func (h *NotificationHandler) ListLogs(c *gin.Context) {
	p := pageParams(c)
	f := repository.EmailLogFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Email:  c.Query("email"),
	}
	list, total, err := h.logs.List(c.Request.Context(), f, p.Page, p.Limit)
	if err != nil {
		fail(c, h.log, "notifications.logs.list", err)
		return
	}
	ok(c, gin.H{"items": list, "total": total, "page": p.Page, "limit": p.Limit})
}

func (h *NotificationHandler) GetLog(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	e, err := h.logs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = notify.ErrEntryNotFound
		}
		fail(c, h.log, "notifications.logs.get", err)
		return
	}
	ok(c, e)
}

type RetryRequest struct {
	IDs []uint `json:"ids"`
}

// RetryLogs requeues the given FAILED entries, or every FAILED entry when no
// ids are sent.
func (h *NotificationHandler) RetryLogs(c *gin.Context) {
	var req RetryRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if len(req.IDs) == 0 {
		n, err := h.queue.RetryAllFailed(ctx)
		if err != nil {
			fail(c, h.log, "notifications.logs.retry_all", err)
			return
		}
		h.audit.record(c, "RETRY", "EmailLog", 0, gin.H{"count": n})
		ok(c, gin.H{"requeued": n})
		return
	}
	var requeued int64
	for _, id := range req.IDs {
		if err := h.queue.Retry(ctx, id); err != nil {
			if errors.Is(err, notify.ErrNotRetryable) || errors.Is(err, notify.ErrOutcomeUnknown) || errors.Is(err, notify.ErrEntryNotFound) {
				continue
			}
			fail(c, h.log, "notifications.logs.retry", err)
			return
		}
		requeued++
	}
	h.audit.record(c, "RETRY", "EmailLog", 0, gin.H{"ids": req.IDs, "count": requeued})
	ok(c, gin.H{"requeued": requeued})
}

func (h *NotificationHandler) RetryLog(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.queue.Retry(c.Request.Context(), id); err != nil {
		fail(c, h.log, "notifications.logs.retry", err)
		return
	}
	h.audit.record(c, "RETRY", "EmailLog", id, nil)
	message(c, "Email requeued")
}

// Inbox

func (h *NotificationHandler) Inbox(c *gin.Context) {
	view, err := h.inbox.Inbox(c.Request.Context(), middleware.CurrentUser(c).ID, c.Query("unread") == "true", pageParams(c))
	if err != nil {
		fail(c, h.log, "notifications.inbox", err)
		return
	}
	ok(c, view)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
		fail(c, h.log, "notifications.inbox.read", err)
		return
	}
	message(c, "Marked as read")
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.inbox.MarkAllRead(c.Request.Context(), middleware.CurrentUser(c).ID); err != nil {
		fail(c, h.log, "notifications.inbox.read_all", err)
		return
	}
	message(c, "All notifications marked as read")
}
