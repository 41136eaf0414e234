package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-testflow/internal/config"
	"github.com/stemsi/exstem-testflow/internal/handler"
	"github.com/stemsi/exstem-testflow/internal/middleware"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/response"
)

// catalogMaxAge is how long clients may reuse catalog listings.
const catalogMaxAge = 30

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Test      *handler.TestHandler
	Session   *handler.SessionHandler
	AdminTest *handler.AdminTestHandler
	WS        *handler.WSHandler
	System    *handler.SystemHandler
	Dashboard *handler.DashboardHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens middleware.TokenValidator,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		SkipPaths: []string{"/ws/", "/api/v1/admin/system/metrics"},
	}))

	router.GET("/health", handlers.System.Health)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(tokens), handlers.Auth.GetProfile)
	}

	// ─── 2. Learner Group (JWT) ────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireJWT(tokens),
		middleware.RequireRole(model.RoleLearner, model.RoleAdmin),
	)
	{
		catalog := api.Group("/tests")
		{
			catalog.GET("", middleware.CacheControl(catalogMaxAge), handlers.Test.ListTests)
			catalog.GET("/:test_id", middleware.CacheControl(catalogMaxAge), handlers.Test.GetTest)
			catalog.POST("/:test_id/sessions", middleware.NoStore(), handlers.Session.StartSession)
			catalog.POST("/:test_id/submit", middleware.NoStore(), handlers.Session.SubmitAnswers)
		}

		sessions := api.Group("/sessions/:session_id")
		sessions.Use(middleware.NoStore())
		{
			sessions.GET("", handlers.Session.GetSession)
			sessions.PUT("/answers", handlers.Session.SelectAnswer)
			sessions.POST("/navigate", handlers.Session.Navigate)
			sessions.POST("/finish", handlers.Session.FinishSession)
			sessions.POST("/restart", handlers.Session.RestartSession)
			sessions.GET("/result", handlers.Session.GetResult)
			sessions.DELETE("", handlers.Session.CloseSession)
		}

		api.GET("/me/results", handlers.Session.MyResults)
	}

	// ─── 3. WebSocket Group (Query Token Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(tokens))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (JWT + Admin Role) ─────────────────────────────
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.RequireJWT(tokens), middleware.RequireAdmin())
	{
		admin.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		admin.POST("/users", handlers.Auth.CreateUser)

		tests := admin.Group("/tests")
		{
			tests.GET("", handlers.AdminTest.ListTests)
			tests.POST("", handlers.AdminTest.CreateTest)
			tests.GET("/:test_id", handlers.AdminTest.GetTest)
			tests.PUT("/:test_id", handlers.AdminTest.UpdateTest)
			tests.DELETE("/:test_id", handlers.AdminTest.DeleteTest)
			tests.PUT("/:test_id/questions", handlers.AdminTest.ReplaceQuestions)
			tests.POST("/:test_id/publish", handlers.AdminTest.PublishTest)
			tests.POST("/:test_id/archive", handlers.AdminTest.ArchiveTest)
			tests.POST("/:test_id/refresh-cache", handlers.AdminTest.RefreshCache)
			tests.GET("/:test_id/results", handlers.AdminTest.GetResults)
		}

		admin.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
