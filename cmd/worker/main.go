package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/internal/handler"
	"github.com/noah-isme/sma-risk-monitor/internal/repository"
	"github.com/noah-isme/sma-risk-monitor/internal/service"
	"github.com/noah-isme/sma-risk-monitor/pkg/broker"
	"github.com/noah-isme/sma-risk-monitor/pkg/cache"
	"github.com/noah-isme/sma-risk-monitor/pkg/config"
	"github.com/noah-isme/sma-risk-monitor/pkg/database"
	"github.com/noah-isme/sma-risk-monitor/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// worker consumes recompute requests published by API processes running the rabbitmq transport.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Dashboard.CacheEnabled {
		if redisClient, err = cache.NewRedis(cfg.Redis); err != nil {
			logr.Warn("redis unavailable, dashboard invalidation disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	studentRepo := repository.NewStudentRepository(db)
	engine := service.NewPerformanceService(service.PerformanceDeps{
		Tx:          database.NewTransactor(db),
		Students:    studentRepo,
		Attendance:  repository.NewAttendanceRepository(db),
		Quizzes:     repository.NewQuizRepository(db),
		Assignments: repository.NewAssignmentRepository(db),
		History:     repository.NewPerformanceRepository(db),
		Alerts:      repository.NewAlertRepository(db),
		Cache:       cacheSvc,
		Metrics:     metrics,
		Logger:      logr.Named("performance"),
	})

	b, err := broker.Dial(cfg.RabbitMQ, logr.Named("rabbitmq"))
	if err != nil {
		logr.Fatal("failed to connect rabbitmq", zap.Error(err))
	}
	defer b.Close() //nolint:errcheck

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"rabbitmq": func(context.Context) error {
			if !b.Healthy() {
				return errors.New("connection closed")
			}
			return nil
		},
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           newOpsRouter(logr, handler.NewMetricsHandler(metrics, checks)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("ops listener failed", zap.Error(err))
		}
	}()

	handle := service.RecomputeMessageHandler(engine, cfg.Performance.MaxRetries, cfg.Performance.RetryDelay, logr)
	logr.Sugar().Infow("worker starting", "queue", cfg.RabbitMQ.Queue, "ops_addr", srv.Addr, "env", cfg.Env)
	if err := b.Consume(ctx, "worker", handle); err != nil {
		logr.Error("consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("ops listener shutdown", zap.Error(err))
	}
	logr.Info("worker stopped")
}

// newOpsRouter serves liveness, readiness and Prometheus metrics for the worker process.
func newOpsRouter(logr *zap.Logger, ops *handler.MetricsHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logr))
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	return r
}
