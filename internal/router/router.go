package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/handler"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/middleware"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/response"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Test    *handler.TestHandler
	Problem *handler.ProblemHandler
	Script  *handler.ScriptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Tighter bucket for audio submissions: each one fans out to the
	// transcription and evaluation backends.
	submitLimiter := middleware.NewRateLimiter(20, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireUserJWT(authService), handlers.Auth.GetProfile)
	}

	// ─── 2. Test Group (JWT) ───────────────────────────────────────────
	tests := router.Group("/api/v1/tests")
	tests.Use(middleware.RequireUserJWT(authService))
	{
		tests.POST("", handlers.Test.CreateTest)
		tests.GET("", handlers.Test.ListTests)
		tests.GET("/:test_id", handlers.Test.GetTest)
		tests.DELETE("/:test_id", handlers.Test.DeleteTest)
		tests.GET("/:test_id/status", handlers.Test.GetTestStatus)
		tests.POST("/:test_id/items/:slot/audio",
			submitLimiter.Middleware(),
			handlers.Test.SubmitAudio,
		)
	}

	// ─── 3. Problem Group (JWT) ────────────────────────────────────────
	problems := router.Group("/api/v1/problems")
	problems.Use(middleware.RequireUserJWT(authService))
	{
		problems.GET("/random", handlers.Problem.RandomProblem)
	}

	// ─── 4. Script Group (JWT) ─────────────────────────────────────────
	scripts := router.Group("/api/v1/scripts")
	scripts.Use(middleware.RequireUserJWT(authService))
	{
		scripts.POST("", handlers.Script.GenerateScript)
		scripts.GET("", handlers.Script.ListScripts)
		scripts.GET("/:script_id", handlers.Script.GetScript)
		scripts.PUT("/:script_id", handlers.Script.UpdateScript)
	}

	// ─── 5. WebSocket Group (WS Auth via query token) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWSAuth(authService))
	{
		ws.GET("/tests/:test_id/status", handlers.WS.TestStatusStream)
	}

	return router
}
