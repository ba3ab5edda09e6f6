package audit

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	httpHandle "costume-portal/internal/adapter/http"
	"costume-portal/internal/adapter/postgresql"
	"costume-portal/internal/adapter/postgresql/audit_repository"
	redisAdapter "costume-portal/internal/adapter/redis"
	"costume-portal/internal/adapter/server"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/port"
	auditSvc "costume-portal/internal/core/service/audit"
	"costume-portal/pkg/config"
	"costume-portal/pkg/flags"
	"costume-portal/pkg/logger"
)

const cleanupInterval = time.Hour

// AuditApp serves the communication audit API and runs the background export
// workers.
type AuditApp struct {
	api         *server.API
	ctx         context.Context
	cancel      context.CancelFunc
	logger      logger.Logger
	svc         *auditSvc.Service
	artifactDir string
	artifactTTL time.Duration
	workers     int
}

func NewAuditApp() *AuditApp {
	cfg, err := config.ParseYAML()
	if err != nil {
		config.PrintYAMLHelp()
		slog.Error("failed to configure application", "error", err)
		os.Exit(1)
	}

	log := logger.InitLogger("Audit Service", logger.LevelDebug)

	ctx, cancel := context.WithCancel(context.Background())

	pool, err := postgresql.Connect(ctx, cfg)
	if err != nil {
		cancel()
		log.Error(ctx, types.ActionDBConnectFailed, "failed to connect to database", err)
		os.Exit(1)
	}
	log.Info(ctx, types.ActionDBConnected, "connected to database")

	auditRepo := audit_repository.NewAuditRepository(pool)

	// Redis keeps job status across restarts; without it exports still work
	// but job state lives in memory only.
	var jobs port.JobStore
	if cfg.Redis.Host != "" {
		client, err := redisAdapter.NewClient(ctx, cfg)
		if err != nil {
			cancel()
			pool.Close()
			log.Error(ctx, types.ActionServiceFailed, "failed to connect to redis", err)
			os.Exit(1)
		}
		jobs = redisAdapter.NewJobStore(client, cfg.Export.ArtifactTTL.Std())
	} else {
		jobs = auditSvc.NewMemoryJobStore()
	}

	svc := auditSvc.NewService(auditRepo, jobs, auditSvc.ExportConfig{
		AsyncThreshold: cfg.Export.AsyncThreshold,
		MaxRecords:     cfg.Export.MaxRecords,
		ArtifactDir:    cfg.Export.ArtifactDir,
		ArtifactTTL:    cfg.Export.ArtifactTTL.Std(),
		JobTimeout:     cfg.Export.JobTimeout.Std(),
	})

	handler := httpHandle.NewAuditHandler(svc)

	api := server.NewRouter(log)
	r := api.Router()

	r.Post("/audit/search", handler.Search())
	r.Get("/audit/summary", handler.Summarize())
	r.Post("/audit/export", handler.Export())
	r.Get("/audit/exports/{jobID}", handler.JobStatus())

	return &AuditApp{
		api:         api,
		ctx:         ctx,
		cancel:      cancel,
		logger:      log,
		svc:         svc,
		artifactDir: cfg.Export.ArtifactDir,
		artifactTTL: cfg.Export.ArtifactTTL.Std(),
		workers:     cfg.Export.Workers,
	}
}

func (app *AuditApp) Start() {
	app.svc.StartWorkers(app.ctx, app.workers)
	go app.cleanupArtifacts()

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		app.logger.Info(app.ctx, types.ActionGracefulShutdown, "service is shutting down")
		app.cancel()
	}()

	if err := app.api.Run(app.ctx, *flags.Port); err != nil {
		app.logger.Error(app.ctx, types.ActionServiceFailed, "http server stopped", err)
	}

	app.svc.Wait()
}

// cleanupArtifacts periodically removes export files past their TTL.
func (app *AuditApp) cleanupArtifacts() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			entries, err := os.ReadDir(app.artifactDir)
			if err != nil {
				continue
			}
			cutoff := time.Now().Add(-app.artifactTTL)
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				info, err := entry.Info()
				if err != nil || info.ModTime().After(cutoff) {
					continue
				}
				path := filepath.Join(app.artifactDir, entry.Name())
				if err := os.Remove(path); err != nil {
					app.logger.Error(app.ctx, types.ActionArtifactExpired, "failed to remove expired artifact", err,
						"path", path,
					)
					continue
				}
				app.logger.Info(app.ctx, types.ActionArtifactExpired, "expired artifact removed",
					"path", path,
				)
			}
		}
	}
}
