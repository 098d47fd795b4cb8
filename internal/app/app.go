package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wikiquiz/server/internal/config"
	"github.com/wikiquiz/server/internal/database"
	"github.com/wikiquiz/server/internal/middleware"
	"github.com/wikiquiz/server/internal/modules/processing/ai"
	"github.com/wikiquiz/server/internal/modules/quiz"
	"github.com/wikiquiz/server/internal/modules/storage/archive"
	"github.com/wikiquiz/server/internal/modules/wiki"
	pkgcron "github.com/wikiquiz/server/internal/pkg/cron"
	pkgredis "github.com/wikiquiz/server/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Version is reported by the root and health endpoints.
const Version = "1.0.0"

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	redis  *pkgredis.Client
	svc    *quiz.Service
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
}

// New initializes the application: config → DB → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc, err := buildQuizService(ctx, cfg, db, logger)
	if err != nil {
		cancel()
		closeAll(db, rc)
		return nil, err
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger.Named("HTTP")))
	router.Use(cors.New(corsConfig(cfg)))

	sched := pkgcron.New(logger)
	registerCronJobs(sched, svc, cfg, logger)
	sched.Start(ctx)

	app := &App{cfg: cfg, router: router, db: db, redis: rc, svc: svc, logger: logger, cancel: cancel, sched: sched}
	app.registerRoutes()

	return app, nil
}

func buildQuizService(ctx context.Context, cfg *config.AppConfig, db *gorm.DB, logger *zap.Logger) (*quiz.Service, error) {
	if cfg.AI.APIKey == "" {
		logger.Warn("AI api key is empty; quiz generation will fail until one is configured",
			zap.String("provider", cfg.AI.Type))
	}
	model, err := ai.NewLanguageModel(cfg.AI, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("ai: %w", err)
	}

	fetcher := wiki.NewFetcher(
		wiki.WithUserAgent(cfg.Fetch.UserAgent),
		wiki.WithTimeout(cfg.FetchTimeout()),
		wiki.WithMaxBytes(cfg.FetchMaxBytes()),
		wiki.WithFetchLogger(logger),
	)

	opts := []quiz.ServiceOption{
		quiz.WithLogger(logger),
		quiz.WithPipelineTimeout(cfg.PipelineTimeout()),
	}
	if cfg.Archive.Enable {
		arch, err := archive.New(ctx, cfg.Archive, archive.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		opts = append(opts, quiz.WithArchiver(arch))
		logger.Info("article archive enabled",
			zap.String("bucket", cfg.Archive.Bucket), zap.String("prefix", cfg.Archive.Prefix))
	}

	return quiz.NewService(
		quiz.NewGormStore(db),
		fetcher,
		ai.NewQuizSynthesizer(model, ai.WithLogger(logger)),
		ai.NewTopicsSynthesizer(model, ai.WithLogger(logger)),
		opts...,
	), nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool { return originAllowed(patterns, origin) }
	} else {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return a.cfg.Addr() }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and releases the database and Redis.
func (a *App) Shutdown() {
	a.cancel()
	a.sched.Wait()
	closeAll(a.db, a.redis)
}

func closeAll(db *gorm.DB, rc *pkgredis.Client) {
	if rc != nil {
		_ = rc.Close()
	}
	_ = database.Close(db)
}

var processStart = time.Now()
