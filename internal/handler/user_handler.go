package handler

import (
	"hrm/internal/middleware"
	"hrm/internal/repository"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	svc   *service.UserService
	audit auditor
	log   *zap.Logger
}

func NewUserHandler(svc *service.UserService, audit *service.AuditService, log *zap.Logger) *UserHandler {
	return &UserHandler{svc: svc, audit: auditor{audit}, log: log}
}

func (h *UserHandler) List(c *gin.Context) {
	f := repository.UserFilter{
		Search:       c.Query("search"),
		Role:         c.Query("role"),
		BranchID:     queryUint(c, "branch_id"),
		DepartmentID: queryUint(c, "department_id"),
		TeamID:       queryUint(c, "team_id"),
		ActiveOnly:   c.Query("active") == "true",
	}
	res, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), f, pageParams(c))
	if err != nil {
		fail(c, h.log, "users.list", err)
		return
	}
	ok(c, res)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, h.log, "users.get", err)
		return
	}
	ok(c, u)
}

func (h *UserHandler) Create(c *gin.Context) {
	var in service.CreateUserInput
	if !bind(c, &in) {
		return
	}
	u, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "users.create", err)
		return
	}
	h.audit.record(c, "CREATE", "User", u.ID, gin.H{"email": u.Email, "role": u.Role})
	created(c, u)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.UpdateUserInput
	if !bind(c, &in) {
		return
	}
	u, err := h.svc.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		fail(c, h.log, "users.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "User", u.ID, in)
	ok(c, u)
}

func (h *UserHandler) Deactivate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, h.log, "users.deactivate", err)
		return
	}
	h.audit.record(c, "DEACTIVATE", "User", id, nil)
	message(c, "User deactivated")
}

// UploadAvatar accepts a multipart "file" and stores it through Cloudinary.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
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

	url, err := h.svc.UpdateAvatar(c.Request.Context(), middleware.CurrentUser(c), f)
	if err != nil {
		fail(c, h.log, "users.avatar", err)
		return
	}
	ok(c, gin.H{"avatar_url": url})
}

type FCMTokenRequest struct {
	Token string `json:"token" binding:"max=512"`
}

// SetFCMToken registers (or clears, when empty) the device token for push.
func (h *UserHandler) SetFCMToken(c *gin.Context) {
	var req FCMTokenRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.SetFCMToken(c.Request.Context(), middleware.CurrentUser(c), req.Token); err != nil {
		fail(c, h.log, "users.fcm_token", err)
		return
	}
	message(c, "Device token saved")
}
