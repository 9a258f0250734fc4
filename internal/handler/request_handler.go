package handler

import (
	"hrm/internal/middleware"
	"hrm/internal/repository"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestHandler serves employee requests (documents, equipment, ...).
type RequestHandler struct {
	svc   *service.EmployeeRequestService
	audit auditor
	log   *zap.Logger
}

func NewRequestHandler(svc *service.EmployeeRequestService, audit *service.AuditService, log *zap.Logger) *RequestHandler {
	return &RequestHandler{svc: svc, audit: auditor{audit}, log: log}
}

func (h *RequestHandler) List(c *gin.Context) {
	f := repository.EmployeeRequestFilter{
		UserID: queryUint(c, "user_id"),
		Type:   c.Query("type"),
		Status: c.Query("status"),
	}
	res, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), f, pageParams(c))
	if err != nil {
		fail(c, h.log, "requests.list", err)
		return
	}
	ok(c, res)
}

func (h *RequestHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	er, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, h.log, "requests.get", err)
		return
	}
	ok(c, er)
}

func (h *RequestHandler) Create(c *gin.Context) {
	var in service.EmployeeRequestInput
	if !bind(c, &in) {
		return
	}
	er, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "requests.create", err)
		return
	}
	h.audit.record(c, "CREATE", "EmployeeRequest", er.ID, gin.H{"type": er.Type, "title": er.Title})
	created(c, er)
}

func (h *RequestHandler) Approve(c *gin.Context) { h.review(c, true) }

func (h *RequestHandler) Reject(c *gin.Context) { h.review(c, false) }

func (h *RequestHandler) review(c *gin.Context, approve bool) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.ReviewInput
	if c.Request.ContentLength > 0 && !bind(c, &in) {
		return
	}
	ctx, actor := c.Request.Context(), middleware.CurrentUser(c)
	action := "APPROVE"
	fn := h.svc.Approve
	if !approve {
		action = "REJECT"
		fn = h.svc.Reject
	}
	er, err := fn(ctx, actor, id, in)
	if err != nil {
		fail(c, h.log, "requests.review", err)
		return
	}
	h.audit.record(c, action, "EmployeeRequest", id, in)
	ok(c, er)
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	er, err := h.svc.Cancel(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, h.log, "requests.cancel", err)
		return
	}
	h.audit.record(c, "CANCEL", "EmployeeRequest", id, nil)
	ok(c, er)
}
