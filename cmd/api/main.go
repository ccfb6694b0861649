package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/launchdeck/launchdeck/internal/app/migrate"
	"github.com/launchdeck/launchdeck/internal/creds"
	"github.com/launchdeck/launchdeck/internal/detect"
	httpx "github.com/launchdeck/launchdeck/internal/http"
	"github.com/launchdeck/launchdeck/internal/metrics"
	"github.com/launchdeck/launchdeck/internal/provision"
	"github.com/launchdeck/launchdeck/internal/queue"
	"github.com/launchdeck/launchdeck/internal/repository/postgres"
	"github.com/launchdeck/launchdeck/internal/service/deploy"
	"github.com/launchdeck/launchdeck/internal/service/logs"
	"github.com/launchdeck/launchdeck/pkg/config"
	"github.com/launchdeck/launchdeck/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	var jobs queue.Queue
	if addr := strings.TrimSpace(cfg.QueueRedisAddr); addr != "" {
		redisQueue, err := queue.NewRedis(addr, cfg.QueueRedisPassword, cfg.QueueRedisDB, log)
		if err != nil {
			log.Warn("redis queue unavailable, using in-process queue", "error", err)
			jobs = queue.NewMemory()
		} else {
			jobs = redisQueue
		}
	} else {
		jobs = queue.NewMemory()
	}
	defer jobs.Close()

	pipelineMetrics := metrics.NewPipeline(prometheus.DefaultRegisterer)
	detector := detect.New(detect.NewHTTPLister(cfg.RepoAPIBase, cfg.DetectTimeout), log)
	provisioner := provision.NewSimulator(log, 200*time.Millisecond)
	logSvc := logs.New(repo, log)
	deploySvc := deploy.New(repo, logSvc, detector, provisioner, creds.StaticValidator{}, jobs, log, cfg, pipelineMetrics)

	worker := queue.NewWorker(jobs, deploySvc.Run, log, cfg.WorkerConcurrency)
	go worker.Run(ctx)
	go deploySvc.RunJanitor(ctx)
	if err := deploySvc.RecoverPending(ctx); err != nil {
		log.Error("pending deployment recovery failed", "error", err)
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, deploySvc, limiter, cfg.JWTSecret, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
