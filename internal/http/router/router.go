package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/upscpath/prep-platform/internal/config"
	"github.com/upscpath/prep-platform/internal/http/handlers"
	"github.com/upscpath/prep-platform/internal/http/middleware"
	"github.com/upscpath/prep-platform/internal/models"
	"github.com/upscpath/prep-platform/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	examHandler *handlers.ExamHandler,
	profileHandler *handlers.ProfileHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	authService *service.AuthService,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/avatars", http.Dir(cfg.AvatarStoragePath))

	api := r.Group("/api")

	// Аутентификация: rate limit по IP, bearer не требуется.
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/signup/send-otp", authHandler.SendSignupOTP)
		authGroup.POST("/signup/verify-otp", authHandler.VerifySignupOTP)
		authGroup.POST("/signup/complete", authHandler.CompleteSignup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.POST("/resend-otp", authHandler.ResendOTP)
		authGroup.GET("/session/:sessionKey/status", authHandler.SessionStatus)
		authGroup.GET("/verify-token", authHandler.VerifyToken)
	}

	// Подписка на статус сессии верификации: вне rate limit, ключ — секрет.
	api.GET("/auth/session/:sessionKey/ws", wsHandler.Handle)

	// Защищённые маршруты.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		protected.POST("/auth/logout", authHandler.Logout)

		protected.GET("/tests", examHandler.ListTests)
		protected.GET("/tests/:id", middleware.UUIDValidator("id"), examHandler.GetTest)
		protected.POST("/tests/:id/attempts", middleware.UUIDValidator("id"), examHandler.SubmitAttempt)
		protected.GET("/attempts/my", examHandler.ListMyAttempts)
		protected.GET("/dashboard", examHandler.Dashboard)

		protected.GET("/profile", profileHandler.GetProfile)
		protected.PUT("/profile", profileHandler.UpdateProfile)
		protected.POST("/profile/avatar", profileHandler.UploadAvatar)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/analytics", examHandler.PlatformAnalytics)
		}
	}

	return r
}
