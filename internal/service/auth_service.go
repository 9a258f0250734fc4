package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hrm/config"
	"hrm/internal/auth"
	"hrm/internal/cache"
	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/notify"
	"hrm/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const (
	resetTokenTTL     = time.Hour
	minPasswordLength = 8
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var (
	ErrInvalidCreds       = domain.Unauthenticated("Invalid email or password")
	ErrSessionExpired     = domain.Unauthenticated("Session expired, please sign in again")
	ErrWrongPassword      = domain.Invalid("current_password", "Current password is incorrect")
	ErrInvalidResetToken  = domain.Invalid("token", "Invalid or expired reset token")
	ErrGoogleNotSetUp     = errors.New("google sign-in is not configured")
	ErrNoEmployeeAccount  = domain.Forbidden("No active employee account is linked to this Google address")
	ErrGoogleLinkConflict = domain.Forbidden("This account is linked to a different Google identity")
)

type AuthService struct {
	cfg         *config.Config
	db          *gorm.DB
	users       *repository.UserRepository
	resets      *repository.PasswordResetRepository
	revocations cache.Revocations
	mail        notify.Enqueuer
	log         *zap.Logger
	now         func() time.Time
}

func NewAuthService(cfg *config.Config, db *gorm.DB, users *repository.UserRepository, resets *repository.PasswordResetRepository,
	revocations cache.Revocations, mail notify.Enqueuer, log *zap.Logger) *AuthService {
	return &AuthService{
		cfg:         cfg,
		db:          db,
		users:       users,
		resets:      resets,
		revocations: revocations,
		mail:        mail,
		log:         log,
		now:         time.Now,
	}
}

func (s *AuthService) issue(u *models.User) (*auth.IssuedToken, error) {
	return auth.GenerateSessionToken(&s.cfg.JWT, u.ID, u.Role, u.TokenVersion)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *auth.IssuedToken, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCreds
		}
		return nil, nil, err
	}
	if !u.IsActive || u.PasswordHash == "" {
		return nil, nil, ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCreds
	}
	tok, err := s.issue(u)
	if err != nil {
		return nil, nil, err
	}
	return u, tok, nil
}

// Authenticate validates a session token and returns its active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	claims, err := auth.ParseSessionToken(&s.cfg.JWT, token)
	if err != nil {
		return nil, nil, domain.ErrUnauthenticated
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, nil, ErrSessionExpired
	}
	u, err := s.users.GetWithRelations(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrUnauthenticated
		}
		return nil, nil, err
	}
	if !u.IsActive || u.TokenVersion != claims.TokenVersion {
		return nil, nil, ErrSessionExpired
	}
	return u, claims, nil
}

// Logout revokes the session until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

// ChangePassword sets a new password and invalidates every other session.
// The returned token replaces the caller's current one.
func (s *AuthService) ChangePassword(ctx context.Context, u *models.User, current, next string) (*auth.IssuedToken, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return nil, ErrWrongPassword
	}
	if err := validatePassword("new_password", next); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = string(hash)
	u.TokenVersion++
	if err := s.users.UpdateFields(ctx, u.ID, map[string]interface{}{
		"password_hash": u.PasswordHash,
		"token_version": u.TokenVersion,
	}); err != nil {
		return nil, err
	}
	return s.issue(u)
}

// ForgotPassword queues a reset email when an active account exists. It
// never reports whether the address is known.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error("forgot password lookup failed", zap.Error(err))
		}
		return
	}
	if !u.IsActive {
		return
	}
	raw, err := newResetToken()
	if err != nil {
		s.log.Error("reset token generation failed", zap.Error(err))
		return
	}
	rec := &models.PasswordResetToken{
		UserID:    u.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(resetTokenTTL),
	}
	if err := s.resets.Create(ctx, rec); err != nil {
		s.log.Error("reset token store failed", zap.Uint("user_id", u.ID), zap.Error(err))
		return
	}
	resetURL := strings.TrimRight(s.cfg.Mail.AppURL, "/") + "/reset-password?token=" + raw
	if _, err := s.mail.Enqueue(ctx, domain.NotifyPasswordReset, u.Email, map[string]interface{}{
		"name":             u.Name,
		"resetUrl":         resetURL,
		"expiresInMinutes": int(resetTokenTTL.Minutes()),
	}); err != nil {
		s.log.Error("reset email enqueue failed", zap.Uint("user_id", u.ID), zap.Error(err))
	}
}

// ResetPassword consumes a reset token. The password change, session
// invalidation and token consumption commit together.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if err := validatePassword("password", password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resets := s.resets.WithTx(tx)
		rec, err := resets.GetValid(ctx, hashToken(token), now)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidResetToken
			}
			return err
		}
		if err := s.users.WithTx(tx).UpdateFields(ctx, rec.UserID, map[string]interface{}{
			"password_hash": string(hash),
			"token_version": gorm.Expr("token_version + 1"),
		}); err != nil {
			return err
		}
		return resets.MarkAllUsed(ctx, rec.UserID, now)
	})
}

func validatePassword(field, p string) error {
	if len(p) < minPasswordLength {
		return domain.Invalid(field, fmt.Sprintf("%s must be at least %d characters", field, minPasswordLength))
	}
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Google sign-in

func (s *AuthService) GoogleConfigured() bool {
	return s.cfg.OAuth.GoogleClientID != ""
}

func (s *AuthService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.OAuth.GoogleClientID,
		ClientSecret: s.cfg.OAuth.GoogleClientSecret,
		RedirectURL:  s.cfg.OAuth.GoogleRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if !s.GoogleConfigured() {
		return "", ErrGoogleNotSetUp
	}
	return s.oauthConfig().AuthCodeURL(state), nil
}

// GoogleProfile is the subset of Google's userinfo response used for sign-in.
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleCallback exchanges the authorization code and signs the matching employee in.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*models.User, *auth.IssuedToken, error) {
	if !s.GoogleConfigured() {
		return nil, nil, ErrGoogleNotSetUp
	}
	conf := s.oauthConfig()
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, nil, domain.Unauthenticated("Google sign-in failed")
	}
	resp, err := conf.Client(ctx, tok).Get(googleUserInfoURL)
	if err != nil {
		return nil, nil, fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("google userinfo: status %d", resp.StatusCode)
	}
	var p GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, nil, fmt.Errorf("google userinfo: %w", err)
	}
	return s.LoginWithGoogle(ctx, p)
}

// LoginWithGoogle signs in an existing active account by Google id, linking
// it on first use by verified email. Accounts are never created here.
func (s *AuthService) LoginWithGoogle(ctx context.Context, p GoogleProfile) (*models.User, *auth.IssuedToken, error) {
	u, err := s.users.GetByGoogleID(ctx, p.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	if u == nil {
		if !p.VerifiedEmail || p.Email == "" {
			return nil, nil, ErrNoEmployeeAccount
		}
		u, err = s.users.GetByEmail(ctx, p.Email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrNoEmployeeAccount
			}
			return nil, nil, err
		}
		if u.GoogleID != nil && *u.GoogleID != p.ID {
			return nil, nil, ErrGoogleLinkConflict
		}
		fields := map[string]interface{}{"google_id": p.ID}
		if u.AvatarURL == "" && p.Picture != "" {
			fields["avatar_url"] = p.Picture
			u.AvatarURL = p.Picture
		}
		if err := s.users.UpdateFields(ctx, u.ID, fields); err != nil {
			return nil, nil, err
		}
		gid := p.ID
		u.GoogleID = &gid
	}
	if !u.IsActive {
		return nil, nil, ErrNoEmployeeAccount
	}
	tok, err := s.issue(u)
	if err != nil {
		return nil, nil, err
	}
	return u, tok, nil
}
