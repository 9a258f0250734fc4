package handler

import (
	"hrm/internal/middleware"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrgHandler struct {
	svc   *service.OrgService
	audit auditor
	log   *zap.Logger
}

func NewOrgHandler(svc *service.OrgService, audit *service.AuditService, log *zap.Logger) *OrgHandler {
	return &OrgHandler{svc: svc, audit: auditor{audit}, log: log}
}

// Branches

func (h *OrgHandler) ListBranches(c *gin.Context) {
	list, err := h.svc.ListBranches(c.Request.Context())
	if err != nil {
		fail(c, h.log, "branches.list", err)
		return
	}
	ok(c, list)
}

func (h *OrgHandler) GetBranch(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	b, err := h.svc.GetBranch(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "branches.get", err)
		return
	}
	ok(c, b)
}

func (h *OrgHandler) CreateBranch(c *gin.Context) {
	var in service.BranchInput
	if !bind(c, &in) {
		return
	}
	b, err := h.svc.CreateBranch(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "branches.create", err)
		return
	}
	h.audit.record(c, "CREATE", "Branch", b.ID, in)
	created(c, b)
}

func (h *OrgHandler) UpdateBranch(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.BranchInput
	if !bind(c, &in) {
		return
	}
	b, err := h.svc.UpdateBranch(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		fail(c, h.log, "branches.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "Branch", b.ID, in)
	ok(c, b)
}

func (h *OrgHandler) DeleteBranch(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.DeleteBranch(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, h.log, "branches.delete", err)
		return
	}
	h.audit.record(c, "DELETE", "Branch", id, nil)
	message(c, "Branch deleted")
}

// Departments

func (h *OrgHandler) ListDepartments(c *gin.Context) {
	list, err := h.svc.ListDepartments(c.Request.Context(), queryUint(c, "branch_id"))
	if err != nil {
		fail(c, h.log, "departments.list", err)
		return
	}
	ok(c, list)
}

func (h *OrgHandler) GetDepartment(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	d, err := h.svc.GetDepartment(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "departments.get", err)
		return
	}
	ok(c, d)
}

func (h *OrgHandler) CreateDepartment(c *gin.Context) {
	var in service.DepartmentInput
	if !bind(c, &in) {
		return
	}
	d, err := h.svc.CreateDepartment(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "departments.create", err)
		return
	}
	h.audit.record(c, "CREATE", "Department", d.ID, in)
	created(c, d)
}

func (h *OrgHandler) UpdateDepartment(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.DepartmentInput
	if !bind(c, &in) {
		return
	}
	d, err := h.svc.UpdateDepartment(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		fail(c, h.log, "departments.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "Department", d.ID, in)
	ok(c, d)
}

func (h *OrgHandler) DeleteDepartment(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.DeleteDepartment(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, h.log, "departments.delete", err)
		return
	}
	h.audit.record(c, "DELETE", "Department", id, nil)
	message(c, "Department deleted")
}

// Teams

func (h *OrgHandler) ListTeams(c *gin.Context) {
	list, err := h.svc.ListTeams(c.Request.Context(), queryUint(c, "department_id"))
	if err != nil {
		fail(c, h.log, "teams.list", err)
		return
	}
	ok(c, list)
}

func (h *OrgHandler) GetTeam(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	t, err := h.svc.GetTeam(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "teams.get", err)
		return
	}
	ok(c, t)
}

func (h *OrgHandler) CreateTeam(c *gin.Context) {
	var in service.TeamInput
	if !bind(c, &in) {
		return
	}
	t, err := h.svc.CreateTeam(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		fail(c, h.log, "teams.create", err)
		return
	}
	h.audit.record(c, "CREATE", "Team", t.ID, in)
	created(c, t)
}

func (h *OrgHandler) UpdateTeam(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in service.TeamInput
	if !bind(c, &in) {
		return
	}
	t, err := h.svc.UpdateTeam(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		fail(c, h.log, "teams.update", err)
		return
	}
	h.audit.record(c, "UPDATE", "Team", t.ID, in)
	ok(c, t)
}

func (h *OrgHandler) DeleteTeam(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.DeleteTeam(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, h.log, "teams.delete", err)
		return
	}
	h.audit.record(c, "DELETE", "Team", id, nil)
	message(c, "Team deleted")
}
