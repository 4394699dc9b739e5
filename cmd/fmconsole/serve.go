package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fmconsole/internal/api"
	"fmconsole/internal/auth"
	"fmconsole/internal/config"
	"fmconsole/internal/db"
	"fmconsole/internal/draft"
	"fmconsole/internal/jobs"
	"fmconsole/internal/location"
	"fmconsole/internal/metrics"
	"fmconsole/internal/pubsub"
	"fmconsole/internal/schema"
	"fmconsole/internal/service"
	"fmconsole/internal/storage"
	"fmconsole/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	locationCacheSize = 256
	locationCacheTTL  = 5 * time.Minute
	requestTimeout    = 60 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console API and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("draft-backend", "", "draft store: redis or sqlite")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("draft.backend", cmd.Flags().Lookup("draft-backend"))
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Audit log is optional; without it submissions are not recorded.
	var auditPool *db.Pool
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		auditPool = pool
	} else {
		logger.Warn("No database configured, submission audit disabled")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	var drafts draft.Store
	var expirer jobs.DraftExpirer
	switch cfg.Draft.Backend {
	case config.DraftSQLite:
		store, err := draft.OpenSQLite(ctx, cfg.Draft.SQLitePath, cfg.Draft.TTL)
		if err != nil {
			return err
		}
		defer store.Close()
		drafts = store
		expirer = store
	default:
		drafts = draft.NewRedisStore(rdb, cfg.Draft.TTL)
	}

	jwtCfg := auth.NewJWTConfig(cfg.JWTSecret)
	files, err := storage.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.BaseURL, jwtCfg.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	stager := storage.NewStager(files, storage.AttachmentPolicy(cfg.Storage.MaxFileMB))

	m := metrics.New()
	upstream := newUpstream(cfg, logger)
	upstream.Observe = m.ObserveUpstream

	deriver, err := schema.NewDeriver(schema.NewCompilerWithCache(64))
	if err != nil {
		return fmt.Errorf("failed to load checklist shapes: %w", err)
	}

	// Pub/sub bus and WebSocket hub
	bus := pubsub.New(rdb, pubsub.DefaultJournalTTL, logger)
	hub := ws.NewHub(logger)
	hub.SetStreamsProvider(bus.GetStreams())
	go hub.Run()
	bus.SetWSHub(hub)

	sessions := service.NewSessionService(upstream, deriver, stager, bus, service.Options{
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.Max,
		SiteID:      cfg.Upstream.SiteID,
	}, logger)
	sessions.SetDraftStore(drafts)
	sessions.SetMetrics(m)
	sessions.SetLocationSource(location.NewCachedSource(upstream, locationCacheSize, locationCacheTTL))
	if auditPool != nil {
		sessions.SetAuditLog(auditPool.Queries)
	}
	hub.SetCommandHandler(ws.NewCommandHandler(sessions, logger))

	// Background jobs
	jobServer, jobClient := jobs.NewJobServer(cfg.RedisAddr, sessions, expirer, logger)
	jobServer.SetPublisher(bus)
	if err := jobServer.Start(); err != nil {
		return fmt.Errorf("failed to start job server: %w", err)
	}
	defer jobServer.Stop()
	sessions.SetJobClient(service.NewAsynqJobClient(jobClient))

	deps := api.Dependencies{
		Sessions:       sessions,
		Reports:        sessions.Reports(),
		Previews:       files,
		Hub:            hub,
		Auth:           jwtCfg,
		Log:            logger,
		MaxUploadBytes: uploadLimit(cfg.Storage.MaxFileMB),
	}
	if auditPool != nil {
		deps.Submissions = auditPool.Queries
	}

	// HTTP router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.Timeout(requestTimeout))

	r.Mount("/v1", api.Routes(deps))
	r.Handle("/metrics", m.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("Starting server",
		zap.String("addr", cfg.Addr),
		zap.String("draft_backend", cfg.Draft.Backend),
		zap.Bool("audit", auditPool != nil))
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}

// uploadLimit bounds a multipart upload body: the file limit plus room for headers.
func uploadLimit(maxMB float64) int64 {
	return int64(maxMB*(1<<20)) + 1<<20
}
