package router

import (
	"context"
	"net/http"
	"time"

	"hrm/config"
	"hrm/internal/cache"
	"hrm/internal/domain"
	"hrm/internal/handler"
	"hrm/internal/middleware"
	"hrm/internal/models"
	"hrm/internal/notify"
	"hrm/internal/repository"
	"hrm/internal/service"
	"hrm/internal/ws"
	"hrm/pkg/cloudinary"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the optional external clients. Nil members disable the feature.
type Deps struct {
	Log         *zap.Logger
	Cloud       cloudinary.Client
	Mailer      notify.Mailer
	Push        service.Pusher
	Revocations cache.Revocations
}

// Server is the wired application: the HTTP engine plus the pieces the
// process owner starts and stops.
type Server struct {
	Engine  *gin.Engine
	Queue   *notify.Queue
	Hub     *ws.Hub
	Limiter *middleware.IPRateLimiter
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Revocations == nil {
		deps.Revocations = cache.NewMemoryRevocations()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrgRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	requestRepo := repository.NewEmployeeRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	emailLogRepo := repository.NewEmailLogRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	hub := ws.NewHub()

	// Notification engine
	queue := notify.NewQueue(emailLogRepo, ruleRepo, deps.Mailer, cfg.Mail.SendTimeout, log.Named("queue"))
	resolver := notify.NewResolver(userRepo, ruleRepo)
	dispatcher := notify.NewDispatcher(ruleRepo, userRepo, resolver, queue, log.Named("dispatch"))
	ruleStore := notify.NewStore(ruleRepo)

	// Services
	settingsSvc := service.NewSettingsService(settingRepo)
	auditSvc := service.NewAuditService(auditRepo, log)
	authSvc := service.NewAuthService(cfg, db, userRepo, resetRepo, deps.Revocations, queue, log)
	inboxSvc := service.NewNotificationService(notificationRepo, userRepo, hub, deps.Push, log)
	userSvc := service.NewUserService(cfg, userRepo, orgRepo, settingsSvc, queue, deps.Cloud, log)
	orgSvc := service.NewOrgService(orgRepo, userRepo)
	leaveSvc := service.NewLeaveService(cfg, db, leaveRepo, userRepo, settingsSvc, dispatcher, inboxSvc)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, settingsSvc)
	noticeSvc := service.NewNoticeService(cfg, noticeRepo, userRepo, dispatcher, hub, deps.Push, deps.Cloud, log)
	requestSvc := service.NewEmployeeRequestService(cfg, requestRepo, settingsSvc, dispatcher, inboxSvc)
	dashboardSvc := service.NewDashboardService(dashboardRepo, settingsSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(cfg, authSvc, auditSvc, log)
	userHandler := handler.NewUserHandler(userSvc, auditSvc, log)
	orgHandler := handler.NewOrgHandler(orgSvc, auditSvc, log)
	leaveHandler := handler.NewLeaveHandler(leaveSvc, auditSvc, log)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, auditSvc, log)
	noticeHandler := handler.NewNoticeHandler(noticeSvc, auditSvc, log)
	requestHandler := handler.NewRequestHandler(requestSvc, auditSvc, log)
	notificationHandler := handler.NewNotificationHandler(cfg, ruleStore, queue, emailLogRepo, inboxSvc, auditSvc, log)
	adminHandler := handler.NewAdminHandler(settingsSvc, auditSvc, dashboardSvc, log)

	authMw := middleware.AuthRequired(authSvc, cfg.JWT.CookieName, log)
	perm := middleware.RequirePermission

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "up", "mail": queue.Configured()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wsAuth := func(ctx context.Context, token string) (*models.User, error) {
		u, _, err := authSvc.Authenticate(ctx, token)
		return u, err
	}
	r.GET("/ws/notifications", ws.NotificationsHandler(hub, wsAuth, cfg.JWT.CookieName, cfg.Server.AllowedOrigins, log.Named("ws")))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(limiter))
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authMw, authHandler.Logout)
			authGroup.GET("/me", authMw, authHandler.Me)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
			authGroup.POST("/forgot-password", authHandler.ForgotPassword)
			authGroup.POST("/reset-password", authHandler.ResetPassword)
			authGroup.GET("/google", authHandler.GoogleRedirect)
			authGroup.GET("/google/callback", authHandler.GoogleCallback)
		}

		authed := api.Group("")
		authed.Use(authMw)

		authed.GET("/dashboard", adminHandler.Dashboard)

		users := authed.Group("/users")
		{
			users.GET("", userHandler.List)
			users.POST("", perm(domain.PermUsersManage), userHandler.Create)
			users.POST("/me/avatar", userHandler.UploadAvatar)
			users.PUT("/me/fcm-token", userHandler.SetFCMToken)
			users.GET("/:id", userHandler.Get)
			users.PUT("/:id", perm(domain.PermUsersManage), userHandler.Update)
			users.DELETE("/:id", perm(domain.PermUsersManage), userHandler.Deactivate)
		}

		branches := authed.Group("/branches")
		{
			branches.GET("", orgHandler.ListBranches)
			branches.GET("/:id", orgHandler.GetBranch)
			branches.POST("", perm(domain.PermOrgManage), orgHandler.CreateBranch)
			branches.PUT("/:id", perm(domain.PermOrgManage), orgHandler.UpdateBranch)
			branches.DELETE("/:id", perm(domain.PermOrgManage), orgHandler.DeleteBranch)
		}
		departments := authed.Group("/departments")
		{
			departments.GET("", orgHandler.ListDepartments)
			departments.GET("/:id", orgHandler.GetDepartment)
			departments.POST("", perm(domain.PermOrgManage), orgHandler.CreateDepartment)
			departments.PUT("/:id", perm(domain.PermOrgManage), orgHandler.UpdateDepartment)
			departments.DELETE("/:id", perm(domain.PermOrgManage), orgHandler.DeleteDepartment)
		}
		teams := authed.Group("/teams")
		{
			teams.GET("", orgHandler.ListTeams)
			teams.GET("/:id", orgHandler.GetTeam)
			teams.POST("", perm(domain.PermOrgManage), orgHandler.CreateTeam)
			teams.PUT("/:id", perm(domain.PermOrgManage), orgHandler.UpdateTeam)
			teams.DELETE("/:id", perm(domain.PermOrgManage), orgHandler.DeleteTeam)
		}

		leaveTypes := authed.Group("/leave-types")
		{
			leaveTypes.GET("", leaveHandler.ListTypes)
			leaveTypes.POST("", perm(domain.PermLeaveConfigure), leaveHandler.CreateType)
			leaveTypes.PUT("/:id", perm(domain.PermLeaveConfigure), leaveHandler.UpdateType)
			leaveTypes.DELETE("/:id", perm(domain.PermLeaveConfigure), leaveHandler.DeleteType)
		}
		allocations := authed.Group("/leave-allocations")
		{
			allocations.GET("", leaveHandler.ListAllocations)
			allocations.POST("", perm(domain.PermLeaveAllocate), leaveHandler.CreateAllocation)
			allocations.PATCH("/:id", perm(domain.PermLeaveAllocate), leaveHandler.AdjustAllocation)
		}
		leaves := authed.Group("/leave-requests")
		{
			leaves.GET("", leaveHandler.ListRequests)
			leaves.POST("", leaveHandler.CreateRequest)
			leaves.GET("/:id", leaveHandler.GetRequest)
			leaves.POST("/:id/approve", perm(domain.PermLeaveReview), leaveHandler.Approve)
			leaves.POST("/:id/reject", perm(domain.PermLeaveReview), leaveHandler.Reject)
			leaves.POST("/:id/cancel", leaveHandler.Cancel)
		}

		attendance := authed.Group("/attendance")
		{
			attendance.GET("", attendanceHandler.List)
			attendance.GET("/today", attendanceHandler.Today)
			attendance.POST("/checkin", attendanceHandler.CheckIn)
			attendance.POST("/checkout", attendanceHandler.CheckOut)
		}

		notices := authed.Group("/notices")
		{
			notices.GET("", noticeHandler.List)
			notices.GET("/:id", noticeHandler.Get)
			notices.POST("", perm(domain.PermNoticesManage), noticeHandler.Create)
			notices.PUT("/:id", perm(domain.PermNoticesManage), noticeHandler.Update)
			notices.DELETE("/:id", perm(domain.PermNoticesManage), noticeHandler.Delete)
			notices.POST("/:id/publish", perm(domain.PermNoticesManage), noticeHandler.Publish)
			notices.POST("/:id/attachment", perm(domain.PermNoticesManage), noticeHandler.UploadAttachment)
		}

		requests := authed.Group("/requests")
		{
			requests.GET("", requestHandler.List)
			requests.POST("", requestHandler.Create)
			requests.GET("/:id", requestHandler.Get)
			requests.POST("/:id/approve", perm(domain.PermRequestsReview), requestHandler.Approve)
			requests.POST("/:id/reject", perm(domain.PermRequestsReview), requestHandler.Reject)
			requests.POST("/:id/cancel", requestHandler.Cancel)
		}

		notifications := authed.Group("/notifications")
		{
			notifications.GET("/rules", perm(domain.PermNotificationRulesView), notificationHandler.ListRules)
			notifications.POST("/rules", perm(domain.PermNotificationRulesEdit), notificationHandler.CreateRule)
			notifications.GET("/rules/:id", perm(domain.PermNotificationRulesView), notificationHandler.GetRule)
			notifications.PUT("/rules/:id", perm(domain.PermNotificationRulesEdit), notificationHandler.UpdateRule)
			notifications.DELETE("/rules/:id", perm(domain.PermNotificationRulesEdit), notificationHandler.DeleteRule)

			tpl := perm(domain.PermNotificationTemplates)
			notifications.GET("/templates", tpl, notificationHandler.ListTemplates)
			notifications.POST("/templates", tpl, notificationHandler.CreateTemplate)
			notifications.GET("/templates/:id", tpl, notificationHandler.GetTemplate)
			notifications.PUT("/templates/:id", tpl, notificationHandler.UpdateTemplate)
			notifications.DELETE("/templates/:id", tpl, notificationHandler.DeleteTemplate)
			notifications.POST("/templates/:id/preview", tpl, notificationHandler.PreviewTemplate)

			notifications.GET("/preferences", notificationHandler.GetPreferences)
			notifications.PUT("/preferences", notificationHandler.UpdatePreferences)

			q := perm(domain.PermNotificationQueue)
			notifications.GET("/queue", q, notificationHandler.QueueStatus)
			notifications.POST("/queue", q, notificationHandler.QueueAction)
			notifications.GET("/logs", q, notificationHandler.ListLogs)
			notifications.POST("/logs", q, notificationHandler.RetryLogs)
			notifications.GET("/logs/:id", q, notificationHandler.GetLog)
			notifications.POST("/logs/:id", q, notificationHandler.RetryLog)

			notifications.GET("/inbox", notificationHandler.Inbox)
			notifications.PUT("/inbox/read-all", notificationHandler.MarkAllRead)
			notifications.PUT("/inbox/:id/read", notificationHandler.MarkRead)
		}

		authed.GET("/settings", adminHandler.GetSettings)
		authed.PUT("/settings", perm(domain.PermSettingsManage), adminHandler.UpdateSettings)
		authed.GET("/audit-logs", perm(domain.PermAuditView), adminHandler.AuditLogs)
	}

	return &Server{Engine: r, Queue: queue, Hub: hub, Limiter: limiter}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// Without an explicit origin list any site may call, but never with the session cookie.
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}
