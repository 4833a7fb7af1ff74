package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/calegray/concepthub-backend/internal/handlers"
	"github.com/calegray/concepthub-backend/internal/middleware"
	"github.com/calegray/concepthub-backend/internal/observability"
	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	DocumentHandler *handlers.DocumentHandler
	ConceptHandler  *handlers.ConceptHandler
	SearchHandler   *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(observability.ServiceName))
	router.Use(middleware.RequestLog(cfg.Log))

	// Cors
	origins := envutil.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}, cfg.Log)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", cfg.AuthHandler.Register)
		auth.POST("/login", cfg.AuthHandler.Login)
		auth.POST("/refresh", cfg.AuthHandler.Refresh)
		auth.POST("/logout", cfg.AuthHandler.Logout)
	}

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Documents
	api.POST("/documents/upload", cfg.DocumentHandler.Upload)
	api.GET("/documents", cfg.DocumentHandler.List)
	api.GET("/documents/stats", cfg.DocumentHandler.Stats)
	api.GET("/documents/:id", cfg.DocumentHandler.Get)
	api.GET("/documents/:id/content", cfg.DocumentHandler.Content)
	api.GET("/documents/:id/thumbnail", cfg.DocumentHandler.Thumbnail)
	api.GET("/documents/:id/similar", cfg.DocumentHandler.Similar)
	api.POST("/documents/:id/reanalyze", cfg.DocumentHandler.Reanalyze)
	api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
	// Concepts
	api.GET("/concepts", cfg.ConceptHandler.List)
	api.GET("/concepts/categories", cfg.ConceptHandler.Categories)
	api.GET("/concepts/stats", cfg.ConceptHandler.Stats)
	api.GET("/concepts/graph", cfg.ConceptHandler.Graph)
	api.GET("/concepts/relations", cfg.ConceptHandler.Relations)
	api.GET("/concepts/:id", cfg.ConceptHandler.Get)
	api.POST("/concepts/merge", cfg.ConceptHandler.Merge)
	// Search
	api.GET("/search", cfg.SearchHandler.Search)
	api.GET("/search/suggestions", cfg.SearchHandler.Suggestions)
	api.GET("/search/analytics", cfg.SearchHandler.Analytics)
	api.GET("/search/similar", cfg.SearchHandler.Similar)
	api.POST("/search/reindex", cfg.SearchHandler.Reindex)

	return router
}
