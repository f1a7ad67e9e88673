package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/solarscope/backend/config"
	"github.com/solarscope/backend/config/migrations"
	"github.com/solarscope/backend/internal/api/handlers"
	"github.com/solarscope/backend/internal/api/middleware"
	"github.com/solarscope/backend/internal/api/routes"
	"github.com/solarscope/backend/internal/cache"
	"github.com/solarscope/backend/internal/logger"
	"github.com/solarscope/backend/internal/metrics"
	"github.com/solarscope/backend/internal/providers/llm"
	"github.com/solarscope/backend/internal/repositories/memory"
	"github.com/solarscope/backend/internal/repositories/postgres"
	"github.com/solarscope/backend/internal/services"
	"github.com/solarscope/backend/internal/session"
	"github.com/solarscope/backend/internal/storage"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := logger.New(cfg.LogLevel)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: durable when DATABASE_URL is set and reachable, memory otherwise.
	var durable store.DurableStore
	var durableSessions session.Store
	if cfg.DatabaseURL != "" {
		db, err := openDatabase(cfg, log)
		if err != nil {
			log.WithError(err).Warn("PostgreSQL init failed, using memory storage")
		} else {
			durable = postgres.NewStore(postgres.StaticConn(db))
			durableSessions = session.NewGormStore(db)
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
		}
	} else {
		log.Info("DATABASE_URL not set, using memory storage")
	}

	hybrid := store.NewHybridStore(ctx, memory.NewStore(), durable,
		store.WithProbeDelay(cfg.StoreProbeDelay),
		store.WithProbeTimeout(cfg.StoreProbeTimeout),
		store.WithLogger(log),
		store.WithSessionStores(session.NewMemoryStore(), durableSessions),
	)
	sessionSource := middleware.SessionSource(hybrid.SessionStore)

	// Optional collaborators.
	var c cache.Cache
	rdb, err := config.InitRedis(ctx, cfg.RedisURL)
	switch {
	case err != nil:
		log.WithError(err).Warn("Redis unavailable, analysis cache disabled")
	case rdb != nil:
		defer rdb.Close()
		c = cache.NewRedisCache(rdb)
		log.Info("Redis connected")
	}

	var provider llm.Provider
	if cfg.GCPProject != "" {
		v, err := llm.NewVertexGemini(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.GeminiModel)
		if err != nil {
			log.WithError(err).Warn("Vertex AI init failed, AI features offline")
		} else {
			defer v.Close()
			provider = v
		}
	} else {
		log.Warn("GCP_PROJECT not set, AI features offline")
	}

	var uploader storage.Uploader
	if cfg.GCSBucket != "" {
		opts := []storage.GCSOption{storage.WithPrefix(cfg.GCSPrefix)}
		if cfg.GCSPublic {
			opts = append(opts, storage.WithPublicRead())
		}
		u, err := storage.NewGCSUploader(ctx, cfg.GCSBucket, opts...)
		if err != nil {
			log.WithError(err).Warn("GCS init failed, original images will not be published")
		} else {
			defer u.Close()
			uploader = u
		}
	}

	// Services
	users := services.NewUserService(hybrid)
	analyses := services.NewAnalysisService(services.AnalysisDeps{
		Store:     hybrid,
		LLM:       provider,
		Uploader:  uploader,
		Cache:     c,
		UploadDir: cfg.UploadDir,
		Logger:    log,
	})
	chat := services.NewChatService(hybrid, provider, log)
	maint := services.NewMaintenanceService(hybrid, c, cfg.DatabaseURL != "", log)
	health := services.NewHealthService(hybrid, provider, cfg.DatabaseURL != "")

	// Workers
	cleanup := &workers.CleanupWorker{
		UploadDir: cfg.UploadDir,
		MaxAge:    cfg.UploadMaxAge,
		Interval:  cfg.CleanupInterval,
		Sessions:  sessionSource,
		Logger:    log,
	}
	if err := cleanup.Start(ctx); err != nil {
		log.WithError(err).Fatal("cleanup worker")
	}

	// HTTP
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	tokens := middleware.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	cookie := middleware.SessionConfig{
		Cookie: cfg.SessionCookie,
		TTL:    cfg.SessionTTL,
		Secure: cfg.IsProduction(),
	}

	routes.RegisterRoutes(r, routes.Deps{
		Auth:      handlers.NewAuthHandler(users, tokens, sessionSource, cookie, log),
		Analysis:  handlers.NewAnalysisHandler(analyses),
		Chat:      handlers.NewChatHandler(chat),
		Ops:       handlers.NewOpsHandler(health, maint, users),
		WS:        handlers.NewWSHandler(chat, tokens, log, nil),
		Tokens:    tokens,
		Sessions:  sessionSource,
		Cookie:    cookie,
		Logger:    log,
		DevRoutes: !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// openDatabase connects and, when enabled, applies pending migrations.
// Migration failure is logged; the startup probe decides whether the
// database serves traffic.
func openDatabase(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	entry := log.WithField("database", config.RedactURL(cfg.DatabaseURL))

	db, err := config.InitPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	entry.Info("PostgreSQL connected")

	if !cfg.DBMigrate {
		return db, nil
	}
	sqlDB, err := migrations.Open(cfg.DatabaseURL)
	if err != nil {
		entry.WithError(err).Warn("migration connection failed")
		return db, nil
	}
	defer sqlDB.Close()

	if err := migrations.MigrateUp(sqlDB); err != nil {
		entry.WithError(err).Warn("migrations failed")
		return db, nil
	}
	if err := migrations.CheckDBMigrationStatus(sqlDB); err != nil {
		entry.WithError(err).Warn("migration status check failed")
	}
	return db, nil
}
