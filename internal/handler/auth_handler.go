package handler

import (
	"net/http"
	"net/url"
	"time"

	"hrm/config"
	"hrm/internal/auth"
	"hrm/internal/domain"
	"hrm/internal/middleware"
	"hrm/internal/models"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const oauthStateCookie = "oauth-state"

type AuthHandler struct {
	cfg   *config.Config
	svc   *service.AuthService
	audit auditor
	log   *zap.Logger
}

func NewAuthHandler(cfg *config.Config, svc *service.AuthService, audit *service.AuditService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, svc: svc, audit: auditor{audit}, log: log}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// sessionView is returned by login and /auth/me.
type sessionView struct {
	User        *models.User        `json:"user"`
	Permissions []domain.Permission `json:"permissions"`
	Token       string              `json:"token,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
}

func newSessionView(u *models.User, tok *auth.IssuedToken) sessionView {
	v := sessionView{User: u, Permissions: domain.PermissionsFor(u.Role)}
	if tok != nil {
		v.Token = tok.Token
		exp := tok.ExpiresAt
		v.ExpiresAt = &exp
	}
	return v
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, tok *auth.IssuedToken) {
	maxAge := int(time.Until(tok.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.JWT.CookieName, tok.Token, maxAge, "/", "", h.cfg.JWT.CookieSecure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.JWT.CookieName, "", -1, "/", "", h.cfg.JWT.CookieSecure, true)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}
	u, tok, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.log, "auth.login", err)
		return
	}
	h.setSessionCookie(c, tok)
	h.audit.recordFor(c, u.ID, "LOGIN", "User", u.ID, nil)
	ok(c, newSessionView(u, tok))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.CurrentClaims(c)); err != nil {
		h.log.Warn("session revocation failed", zap.Error(err))
	}
	h.audit.record(c, "LOGOUT", "User", middleware.CurrentUser(c).ID, nil)
	h.clearSessionCookie(c)
	message(c, "Logged out")
}

func (h *AuthHandler) Me(c *gin.Context) {
	ok(c, newSessionView(middleware.CurrentUser(c), nil))
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	u := middleware.CurrentUser(c)
	tok, err := h.svc.ChangePassword(c.Request.Context(), u, req.CurrentPassword, req.NewPassword)
	if err != nil {
		fail(c, h.log, "auth.change_password", err)
		return
	}
	h.setSessionCookie(c, tok)
	h.audit.record(c, "CHANGE_PASSWORD", "User", u.ID, nil)
	message(c, "Password updated")
}

// ForgotPassword answers identically whether or not the address is known.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bind(c, &req) {
		return
	}
	h.svc.ForgotPassword(c.Request.Context(), req.Email)
	message(c, "If an account exists for that email, a reset link has been sent")
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		fail(c, h.log, "auth.reset_password", err)
		return
	}
	h.audit.record(c, "RESET_PASSWORD", "User", 0, nil)
	message(c, "Password has been reset")
}

// GoogleRedirect sends the browser to Google's consent screen.
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	state := uuid.NewString()
	target, err := h.svc.GoogleAuthURL(state)
	if err != nil {
		fail(c, h.log, "auth.google", err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", h.cfg.JWT.CookieSecure, true)
	c.Redirect(http.StatusFound, target)
}

// GoogleCallback finishes sign-in and redirects back to the web app.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state, _ := c.Cookie(oauthStateCookie)
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.cfg.JWT.CookieSecure, true)
	if state == "" || state != c.Query("state") {
		h.loginRedirect(c, "Invalid sign-in state")
		return
	}
	code := c.Query("code")
	if code == "" {
		h.loginRedirect(c, "Google sign-in was cancelled")
		return
	}
	u, tok, err := h.svc.GoogleCallback(c.Request.Context(), code)
	if err != nil {
		if _, isUser := userFacing(err); !isUser {
			h.log.Error("google sign-in failed", zap.Error(err))
			h.loginRedirect(c, "Google sign-in failed")
			return
		}
		h.loginRedirect(c, err.Error())
		return
	}
	h.setSessionCookie(c, tok)
	h.audit.recordFor(c, u.ID, "LOGIN_GOOGLE", "User", u.ID, nil)
	c.Redirect(http.StatusFound, h.cfg.Mail.AppURL+"/dashboard")
}

func (h *AuthHandler) loginRedirect(c *gin.Context, msg string) {
	c.Redirect(http.StatusFound, h.cfg.Mail.AppURL+"/login?error="+url.QueryEscape(msg))
}
