package handler

import (
	"hrm/internal/middleware"
	"hrm/internal/repository"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AttendanceHandler struct {
	svc   *service.AttendanceService
	audit auditor
	log   *zap.Logger
}

func NewAttendanceHandler(svc *service.AttendanceService, audit *service.AuditService, log *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, audit: auditor{audit}, log: log}
}

func (h *AttendanceHandler) bindNote(c *gin.Context) (service.AttendanceInput, bool) {
	var in service.AttendanceInput
	if c.Request.ContentLength > 0 && !bind(c, &in) {
		return in, false
	}
	return in, true
}

func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	in, valid := h.bindNote(c)
	if !valid {
		return
	}
	a, err := h.svc.CheckIn(c.Request.Context(), middleware.CurrentUser(c), in, c.ClientIP())
	if err != nil {
		fail(c, h.log, "attendance.checkin", err)
		return
	}
	h.audit.record(c, "CHECK_IN", "Attendance", a.ID, gin.H{"status": a.Status})
	created(c, a)
}

func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	in, valid := h.bindNote(c)
	if !valid {
		return
	}
	a, err := h.svc.CheckOut(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "attendance.checkout", err)
		return
	}
	h.audit.record(c, "CHECK_OUT", "Attendance", a.ID, gin.H{"work_minutes": a.WorkMinutes})
	ok(c, a)
}

// Today returns the caller's record for today, or null before check-in.
func (h *AttendanceHandler) Today(c *gin.Context) {
	a, err := h.svc.Today(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		fail(c, h.log, "attendance.today", err)
		return
	}
	ok(c, a)
}

func (h *AttendanceHandler) List(c *gin.Context) {
	f := repository.AttendanceFilter{
		UserID: queryUint(c, "user_id"),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Status: c.Query("status"),
	}
	res, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), f, pageParams(c))
	if err != nil {
		fail(c, h.log, "attendance.list", err)
		return
	}
	ok(c, res)
}
