package handler

import (
	"hrm/internal/middleware"
	"hrm/internal/models"
	"hrm/internal/repository"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves organization settings, the audit trail and the dashboard.
type AdminHandler struct {
	settings  *service.SettingsService
	auditSvc  *service.AuditService
	dashboard *service.DashboardService
	audit     auditor
	log       *zap.Logger
}

func NewAdminHandler(settings *service.SettingsService, audit *service.AuditService, dashboard *service.DashboardService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{settings: settings, auditSvc: audit, dashboard: dashboard, audit: auditor{audit}, log: log}
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context())
	if err != nil {
		fail(c, h.log, "settings.get", err)
		return
	}
	ok(c, s)
}

func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var in models.OrgSettings
	if !bind(c, &in) {
		return
	}
	s, err := h.settings.Update(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "settings.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "Settings", 0, s)
	ok(c, s)
}

func (h *AdminHandler) AuditLogs(c *gin.Context) {
	f := repository.AuditFilter{
		UserID: queryUint(c, "user_id"),
		Action: c.Query("action"),
		Entity: c.Query("entity"),
		From:   queryDate(c, "from"),
		To:     queryDate(c, "to"),
	}
	res, err := h.auditSvc.List(c.Request.Context(), f, pageParams(c))
	if err != nil {
		fail(c, h.log, "audit_logs.list", err)
		return
	}
	ok(c, res)
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		fail(c, h.log, "dashboard.stats", err)
		return
	}
	ok(c, stats)
}
