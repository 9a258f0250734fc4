package handler

import (
	"context"
	"strconv"
	"time"

	"hrm/internal/domain"
	"hrm/internal/middleware"
	"hrm/internal/models"
	"hrm/internal/repository"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LeaveHandler struct {
	svc   *service.LeaveService
	audit auditor
	log   *zap.Logger
}

func NewLeaveHandler(svc *service.LeaveService, audit *service.AuditService, log *zap.Logger) *LeaveHandler {
	return &LeaveHandler{svc: svc, audit: auditor{audit}, log: log}
}

func queryDate(c *gin.Context, name string) *time.Time {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		return nil
	}
	return &t
}

// Leave types

func (h *LeaveHandler) ListTypes(c *gin.Context) {
	list, err := h.svc.ListTypes(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		fail(c, h.log, "leave_types.list", err)
		return
	}
	ok(c, list)
}

func (h *LeaveHandler) CreateType(c *gin.Context) {
	var in service.LeaveTypeInput
	if !bind(c, &in) {
		return
	}
	lt, err := h.svc.CreateType(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "leave_types.create", err)
		return
	}
	h.audit.record(c, "CREATE", "LeaveType", lt.ID, in)
	created(c, lt)
}

func (h *LeaveHandler) UpdateType(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.LeaveTypeInput
	if !bind(c, &in) {
		return
	}
	lt, err := h.svc.UpdateType(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		fail(c, h.log, "leave_types.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "LeaveType", lt.ID, in)
	ok(c, lt)
}

func (h *LeaveHandler) DeleteType(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.DeleteType(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, h.log, "leave_types.delete", err)
		return
	}
	h.audit.record(c, "DELETE", "LeaveType", id, nil)
	message(c, "Leave type deleted")
}

// Allocations

func (h *LeaveHandler) ListAllocations(c *gin.Context) {
	year, _ := strconv.Atoi(c.Query("year"))
	list, err := h.svc.ListAllocations(c.Request.Context(), middleware.CurrentUser(c), queryUint(c, "user_id"), year)
	if err != nil {
		fail(c, h.log, "leave_allocations.list", err)
		return
	}
	ok(c, list)
}

func (h *LeaveHandler) CreateAllocation(c *gin.Context) {
	var in service.AllocationInput
	if !bind(c, &in) {
		return
	}
	a, err := h.svc.CreateAllocation(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "leave_allocations.create", err)
		return
	}
	h.audit.record(c, "CREATE", "LeaveAllocation", a.ID, in)
	created(c, a)
}

func (h *LeaveHandler) AdjustAllocation(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.AllocationAdjustment
	if !bind(c, &in) {
		return
	}
	a, err := h.svc.AdjustAllocation(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		fail(c, h.log, "leave_allocations.adjust", err)
		return
	}
	h.audit.record(c, "UPDATE", "LeaveAllocation", a.ID, in)
	ok(c, a)
}

// Requests

func (h *LeaveHandler) ListRequests(c *gin.Context) {
	f := repository.LeaveFilter{
		UserID:      queryUint(c, "user_id"),
		LeaveTypeID: queryUint(c, "leave_type_id"),
		Status:      c.Query("status"),
		From:        queryDate(c, "from"),
		To:          queryDate(c, "to"),
	}
	res, err := h.svc.ListRequests(c.Request.Context(), middleware.CurrentUser(c), f, pageParams(c))
	if err != nil {
		fail(c, h.log, "leave_requests.list", err)
		return
	}
	ok(c, res)
}

func (h *LeaveHandler) GetRequest(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	lr, err := h.svc.GetRequest(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, h.log, "leave_requests.get", err)
		return
	}
	ok(c, lr)
}

func (h *LeaveHandler) CreateRequest(c *gin.Context) {
	var in service.LeaveRequestInput
	if !bind(c, &in) {
		return
	}
	lr, err := h.svc.CreateRequest(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "leave_requests.create", err)
		return
	}
	h.audit.record(c, "CREATE", "LeaveRequest", lr.ID, in)
	created(c, lr)
}

func (h *LeaveHandler) Approve(c *gin.Context) {
	h.review(c, "APPROVE", h.svc.Approve)
}

func (h *LeaveHandler) Reject(c *gin.Context) {
	h.review(c, "REJECT", h.svc.Reject)
}

func (h *LeaveHandler) review(c *gin.Context, action string,
	fn func(ctx context.Context, actor *models.User, id uint, in service.ReviewInput) (*models.LeaveRequest, error)) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.ReviewInput
	if c.Request.ContentLength > 0 && !bind(c, &in) {
		return
	}
	lr, err := fn(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		fail(c, h.log, "leave_requests.review", err)
		return
	}
	h.audit.record(c, action, "LeaveRequest", id, in)
	ok(c, lr)
}

func (h *LeaveHandler) Cancel(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	lr, err := h.svc.Cancel(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, h.log, "leave_requests.cancel", err)
		return
	}
	h.audit.record(c, "CANCEL", "LeaveRequest", id, nil)
	ok(c, lr)
}
