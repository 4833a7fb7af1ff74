package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/db"
	"github.com/calegray/concepthub-backend/internal/observability"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/server"
	"github.com/calegray/concepthub-backend/internal/types"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	gin.SetMode(cfg.GinMode)

	otelShutdown := observability.InitTracing(context.Background(), log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset)
	middlewareset := wireMiddleware(log, serviceset)
	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		AuthHandler:     handlerset.Auth,
		AuthMiddleware:  middlewareset.Auth,
		DocumentHandler: handlerset.Document,
		ConceptHandler:  handlerset.Concept,
		SearchHandler:   handlerset.Search,
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}

	// Re-queue documents that were pending when the previous process died.
	if docs, err := a.Repos.Document.GetByStatus(ctx, nil, types.StatusPending); err == nil {
		for _, doc := range docs {
			if !a.Services.Queue.Enqueue(doc.ID) {
				a.Log.Warn("Job queue full during startup requeue", "document_id", doc.ID)
				break
			}
		}
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Stop()
	}
	if a.Services.Cache != nil {
		_ = a.Services.Cache.Close()
	}
	if a.Services.DocAI != nil {
		_ = a.Services.DocAI.Close()
	}
	if a.Services.Neo4j != nil {
		_ = a.Services.Neo4j.Close(context.Background())
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
