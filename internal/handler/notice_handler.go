package handler

import (
	"hrm/internal/middleware"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NoticeHandler struct {
	svc   *service.NoticeService
	audit auditor
	log   *zap.Logger
}

func NewNoticeHandler(svc *service.NoticeService, audit *service.AuditService, log *zap.Logger) *NoticeHandler {
	return &NoticeHandler{svc: svc, audit: auditor{audit}, log: log}
}

func (h *NoticeHandler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), pageParams(c))
	if err != nil {
		fail(c, h.log, "notices.list", err)
		return
	}
	ok(c, res)
}

func (h *NoticeHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	n, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, h.log, "notices.get", err)
		return
	}
	ok(c, n)
}

func (h *NoticeHandler) Create(c *gin.Context) {
	var in service.NoticeInput
	if !bind(c, &in) {
		return
	}
	n, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "notices.create", err)
		return
	}
	h.audit.record(c, "CREATE", "Notice", n.ID, gin.H{"title": n.Title, "published": n.IsPublished})
	created(c, n)
}

func (h *NoticeHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.NoticeInput
	if !bind(c, &in) {
		return
	}
	n, err := h.svc.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		fail(c, h.log, "notices.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "Notice", n.ID, gin.H{"title": n.Title})
	ok(c, n)
}

func (h *NoticeHandler) Delete(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, h.log, "notices.delete", err)
		return
	}
	h.audit.record(c, "DELETE", "Notice", id, nil)
	message(c, "Notice deleted")
}

func (h *NoticeHandler) Publish(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	n, err := h.svc.Publish(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, h.log, "notices.publish", err)
		return
	}
	h.audit.record(c, "PUBLISH", "Notice", n.ID, nil)
	ok(c, n)
}

func (h *NoticeHandler) UploadAttachment(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		abortBadRequest(c, "file is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		abortBadRequest(c, "Could not read file")
		return
	}
	defer f.Close()

	n, err := h.svc.UploadAttachment(c.Request.Context(), middleware.CurrentUser(c), id, f)
	if err != nil {
		fail(c, h.log, "notices.attachment", err)
		return
	}
	h.audit.record(c, "UPLOAD", "Notice", n.ID, gin.H{"filename": file.Filename})
	ok(c, n)
}
