package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hrm/config"
	"hrm/internal/auth"
	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/router"
	"hrm/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type testServer struct {
	t   *testing.T
	cfg *config.Config
	db  *gorm.DB
	srv *router.Server
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWT:  config.JWTConfig{Secret: "router-test-secret", Expiry: time.Hour, Issuer: "hrm-test", CookieName: "auth-token"},
		Mail: config.MailConfig{AppURL: "https://hr.example.com", SendTimeout: time.Second},
	}
	db := testutil.NewDB(t)
	return &testServer{t: t, cfg: cfg, db: db, srv: router.Setup(cfg, db, router.Deps{})}
}

func (s *testServer) token(u *models.User) string {
	tok, err := auth.GenerateSessionToken(&s.cfg.JWT, u.ID, u.Role, u.TokenVersion)
	require.NoError(s.t, err)
	return tok.Token
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.srv.Engine.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"up"`)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	testutil.CreateUser(t, s.db, domain.RoleEmployee, "jane@example.com", testutil.WithPasswordHash(string(hash)))

	w, env := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "jane@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", env.Error)

	w, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "jane@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password is required", env.Error)

	w, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "jane@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth-token" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.NotEmpty(t, session.Value)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(session)
	me := httptest.NewRecorder()
	s.srv.Engine.ServeHTTP(me, req)
	assert.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"email":"jane@example.com"`)
}

func TestUnauthenticatedRequests(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestAuditLogsRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	emp := testutil.CreateUser(t, s.db, domain.RoleEmployee, "emp@example.com")
	hr := testutil.CreateUser(t, s.db, domain.RoleHR, "hr@example.com")
	admin := testutil.Admin(t, s.db)

	w, env := s.do(http.MethodGet, "/api/audit-logs", s.token(emp), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", env.Error)

	w, _ = s.do(http.MethodGet, "/api/audit-logs", s.token(hr), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(http.MethodGet, "/api/audit-logs", s.token(admin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestCheckInTwice(t *testing.T) {
	s := newTestServer(t)
	emp := testutil.CreateUser(t, s.db, domain.RoleEmployee, "emp@example.com")
	tok := s.token(emp)

	w, env := s.do(http.MethodPost, "/api/attendance/checkin", tok, gin.H{})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	w, env = s.do(http.MethodPost, "/api/attendance/checkin", tok, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Already checked in", env.Error)
}

func TestDeleteBranchInUse(t *testing.T) {
	s := newTestServer(t)
	hr := testutil.CreateUser(t, s.db, domain.RoleHR, "hr@example.com")
	tok := s.token(hr)

	w, env := s.do(http.MethodPost, "/api/branches", tok, gin.H{"name": "Nairobi", "code": "NBO"})
	require.Equal(t, http.StatusCreated, w.Code)
	var branch models.Branch
	require.NoError(t, json.Unmarshal(env.Data, &branch))

	testutil.CreateUser(t, s.db, domain.RoleEmployee, "emp@example.com", testutil.WithBranch(branch.ID))

	w, env = s.do(http.MethodDelete, fmt.Sprintf("/api/branches/%d", branch.ID), tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot delete branch with departments or users. Reassign them first.", env.Error)

	var audits int64
	require.NoError(t, s.db.Model(&models.AuditLog{}).Where("entity = ? AND action = ?", "Branch", "CREATE").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)

	w, env = s.do(http.MethodDelete, "/api/branches/abc", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid id", env.Error)
}

func TestLeaveRequestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	hr := testutil.CreateUser(t, s.db, domain.RoleHR, "hr@example.com")
	emp := testutil.CreateUser(t, s.db, domain.RoleEmployee, "emp@example.com")
	lt := testutil.CreateLeaveType(t, s.db, "UNPAID", false)

	w, env := s.do(http.MethodPost, "/api/leave-requests", s.token(emp),
		gin.H{"leave_type_id": lt.ID, "start_date": "2030-03-04", "end_date": "2030-03-05"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var lr models.LeaveRequest
	require.NoError(t, json.Unmarshal(env.Data, &lr))

	w, _ = s.do(http.MethodPost, fmt.Sprintf("/api/leave-requests/%d/approve", lr.ID), s.token(emp), gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(http.MethodPost, fmt.Sprintf("/api/leave-requests/%d/approve", lr.ID), s.token(hr), gin.H{"note": "ok"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &lr))
	assert.Equal(t, domain.RequestStatusApproved, lr.Status)

	w, env = s.do(http.MethodPost, fmt.Sprintf("/api/leave-requests/%d/cancel", lr.ID), s.token(emp), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, env.Error)
}

func TestCorsWithoutOriginsDropsCredentials(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	w := httptest.NewRecorder()
	s.srv.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestNotificationTemplatesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.Admin(t, s.db)
	emp := testutil.CreateUser(t, s.db, domain.RoleEmployee, "emp@example.com")
	system := &models.EmailTemplate{Name: "Welcome (system)", Type: string(domain.NotifyWelcome), Subject: "Hi", HTMLBody: "<p>Hi</p>", IsActive: true, IsSystem: true}
	custom := &models.EmailTemplate{Name: "Welcome (custom)", Type: string(domain.NotifyWelcome), Subject: "Hey", HTMLBody: "<p>Hey</p>"}
	require.NoError(t, s.db.Create(system).Error)
	require.NoError(t, s.db.Create(custom).Error)

	w, env := s.do(http.MethodDelete, fmt.Sprintf("/api/notifications/templates/%d", custom.ID), s.token(emp), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)

	w, env = s.do(http.MethodDelete, fmt.Sprintf("/api/notifications/templates/%d", system.ID), s.token(admin), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "System templates cannot be deleted", env.Error)

	w, env = s.do(http.MethodDelete, fmt.Sprintf("/api/notifications/templates/%d", custom.ID), s.token(admin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Template deleted", env.Message)

	w, env = s.do(http.MethodGet, fmt.Sprintf("/api/notifications/templates/%d", custom.ID), s.token(admin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestNotificationLogRetryOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.Admin(t, s.db)
	logs := map[string]*models.EmailLog{
		"sent":    {RecipientEmail: "a@example.com", Type: string(domain.NotifyWelcome), Subject: "s", RenderedBody: "b", Status: domain.EmailStatusSent},
		"failed":  {RecipientEmail: "b@example.com", Type: string(domain.NotifyWelcome), Subject: "s", RenderedBody: "b", Status: domain.EmailStatusFailed, LastError: "smtp: 421"},
		"unknown": {RecipientEmail: "c@example.com", Type: string(domain.NotifyWelcome), Subject: "s", RenderedBody: "b", Status: domain.EmailStatusFailed, LastError: domain.EmailOutcomeUnknown},
	}
	for _, e := range logs {
		require.NoError(t, s.db.Create(e).Error)
	}
	path := func(name string) string { return fmt.Sprintf("/api/notifications/logs/%d", logs[name].ID) }

	w, env := s.do(http.MethodPost, path("sent"), s.token(admin), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Only FAILED emails can be retried", env.Error)

	w, env = s.do(http.MethodPost, path("unknown"), s.token(admin), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "outcome is unknown")

	w, env = s.do(http.MethodPost, path("failed"), s.token(admin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Email requeued", env.Message)

	w, _ = s.do(http.MethodPost, "/api/notifications/logs/9999", s.token(admin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var got models.EmailLog
	require.NoError(t, s.db.First(&got, logs["failed"].ID).Error)
	assert.Equal(t, domain.EmailStatusPending, got.Status)
	require.NoError(t, s.db.First(&got, logs["unknown"].ID).Error)
	assert.Equal(t, domain.EmailStatusFailed, got.Status)
}

func TestNotificationQueueWithoutTransport(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.Admin(t, s.db)

	w, env := s.do(http.MethodPost, "/api/notifications/queue?action=process", s.token(admin), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Mail transport is not configured", env.Error)

	w, env = s.do(http.MethodPost, "/api/notifications/queue?action=purge", s.token(admin), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, env = s.do(http.MethodGet, "/api/notifications/queue", s.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var st struct {
		SMTPConfigured bool             `json:"smtp_configured"`
		PendingCount   int64            `json:"pending_count"`
		Stats          map[string]int64 `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.False(t, st.SMTPConfigured)
	assert.Zero(t, st.PendingCount)
	assert.Contains(t, st.Stats, domain.EmailStatusFailed)
}

func TestNotificationPreferencesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	emp := testutil.CreateUser(t, s.db, domain.RoleEmployee, "emp@example.com")

	type pref struct {
		Type         string `json:"type"`
		EmailEnabled bool   `json:"email_enabled"`
	}
	read := func(env envelope) map[string]bool {
		var prefs []pref
		require.NoError(t, json.Unmarshal(env.Data, &prefs))
		out := make(map[string]bool, len(prefs))
		for _, p := range prefs {
			out[p.Type] = p.EmailEnabled
		}
		return out
	}

	w, env := s.do(http.MethodGet, "/api/notifications/preferences", s.token(emp), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	prefs := read(env)
	assert.Len(t, prefs, len(domain.NotificationTypes))
	for typ, enabled := range prefs {
		assert.True(t, enabled, typ)
	}

	w, env = s.do(http.MethodPut, "/api/notifications/preferences", s.token(emp),
		gin.H{"preferences": []pref{{Type: string(domain.NotifyNoticePublished), EmailEnabled: false}}})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	prefs = read(env)
	assert.False(t, prefs[string(domain.NotifyNoticePublished)])
	assert.True(t, prefs[string(domain.NotifyWelcome)])

	w, env = s.do(http.MethodPut, "/api/notifications/preferences", s.token(emp),
		gin.H{"preferences": []pref{{Type: "NOT_A_TYPE", EmailEnabled: false}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "NOT_A_TYPE")
}

func TestEmployeeRequestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	hr := testutil.CreateUser(t, s.db, domain.RoleHR, "hr@example.com")
	manager := testutil.CreateUser(t, s.db, domain.RoleManager, "manager@example.com")
	emp := testutil.CreateUser(t, s.db, domain.RoleEmployee, "emp@example.com")

	w, env := s.do(http.MethodPost, "/api/requests", s.token(emp),
		gin.H{"type": domain.EmployeeRequestEquipment, "title": "Laptop"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var er models.EmployeeRequest
	require.NoError(t, json.Unmarshal(env.Data, &er))
	assert.Equal(t, domain.RequestStatusPending, er.Status)

	w, env = s.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/approve", er.ID), s.token(manager), gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)

	w, env = s.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/cancel", er.ID), s.token(hr), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/reject", er.ID), s.token(hr), gin.H{"note": "no budget"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &er))
	assert.Equal(t, domain.RequestStatusRejected, er.Status)

	w, env = s.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/approve", er.ID), s.token(hr), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only pending requests can be changed", env.Error)
	w, _ = s.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/cancel", er.ID), s.token(emp), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
