package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"hrm/internal/domain"
	"hrm/internal/middleware"
	"hrm/internal/notify"
	"hrm/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	}
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

var badRequest = []error{
	domain.ErrInvalidTransition,
	notify.ErrNotRetryable,
	notify.ErrOutcomeUnknown,
	notify.ErrSystemTemplate,
	notify.ErrRuleExists,
	notify.ErrTemplateNameTaken,
	notify.ErrUnknownType,
	notify.ErrMailerNotConfigured,
	service.ErrUploadsNotSetUp,
}

var notFoundErrs = []error{
	notify.ErrEntryNotFound,
	notify.ErrTemplateNotFound,
	notify.ErrRuleNotFound,
}

// fail maps a service error onto the response envelope. Anything it does not
// recognise is logged and reported as a 500 without detail.
func fail(c *gin.Context, log *zap.Logger, endpoint string, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		abort(c, http.StatusBadRequest, ve.Message)
		return
	case errors.Is(err, domain.ErrUnauthenticated):
		abort(c, http.StatusUnauthorized, kindMessage(err, domain.ErrUnauthenticated, "Unauthorized"))
		return
	case errors.Is(err, domain.ErrForbidden):
		abort(c, http.StatusForbidden, kindMessage(err, domain.ErrForbidden, "Forbidden"))
		return
	case errors.Is(err, domain.ErrNotFound):
		abort(c, http.StatusNotFound, kindMessage(err, domain.ErrNotFound, "Not found"))
		return
	case errors.Is(err, service.ErrGoogleNotSetUp):
		abort(c, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}
	for _, e := range badRequest {
		if errors.Is(err, e) {
			abort(c, http.StatusBadRequest, sentence(err.Error()))
			return
		}
	}
	for _, e := range notFoundErrs {
		if errors.Is(err, e) {
			abort(c, http.StatusNotFound, sentence(err.Error()))
			return
		}
	}
	fields := []zap.Field{zap.String("endpoint", endpoint), zap.Error(err)}
	if u := middleware.CurrentUser(c); u != nil {
		fields = append(fields, zap.Uint("user_id", u.ID))
	}
	log.Error("request failed", fields...)
	abort(c, http.StatusInternalServerError, "Internal server error")
}

// kindMessage prefers the wrapped message over the bare sentinel text.
func kindMessage(err, sentinel error, fallback string) string {
	if err == sentinel {
		return fallback
	}
	return err.Error()
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// bind decodes the JSON body and reports the first invalid field.
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abort(c, http.StatusBadRequest, bindingMessage(err))
		return false
	}
	return true
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			return field + " is required"
		case "email":
			return field + " must be a valid email"
		case "min":
			if fe.Kind() == reflect.String {
				return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
			}
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			if fe.Kind() == reflect.String {
				return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
			}
			return fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "gte":
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "gt":
			return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "lte":
			return fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
		default:
			return field + " is invalid"
		}
	}
	return "Invalid request body"
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		abort(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

func pageParams(c *gin.Context) service.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return service.NewPage(page, limit)
}

// auditor records mutating actions with the caller's address and agent.
type auditor struct {
	svc *service.AuditService
}

func (a auditor) record(c *gin.Context, action, entity string, entityID uint, details interface{}) {
	var userID uint
	if u := middleware.CurrentUser(c); u != nil {
		userID = u.ID
	}
	a.recordFor(c, userID, action, entity, entityID, details)
}

// recordFor is record for requests that are not yet authenticated, such as login.
func (a auditor) recordFor(c *gin.Context, userID uint, action, entity string, entityID uint, details interface{}) {
	if a.svc == nil {
		return
	}
	e := service.AuditEntry{
		Action:    action,
		Entity:    entity,
		EntityID:  entityIDString(entityID),
		Details:   details,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if userID != 0 {
		e.UserID = &userID
	}
	a.svc.Record(c.Request.Context(), e)
}

func entityIDString(id uint) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}

// userFacing reports whether err carries a message meant for end users.
func userFacing(err error) (int, bool) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, true
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	}
	return 0, false
}

func abortBadRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, msg)
}
