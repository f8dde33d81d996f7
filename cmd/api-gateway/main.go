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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-risk-monitor/api/swagger"
	"github.com/noah-isme/sma-risk-monitor/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-risk-monitor/internal/middleware"
	"github.com/noah-isme/sma-risk-monitor/internal/repository"
	"github.com/noah-isme/sma-risk-monitor/internal/service"
	"github.com/noah-isme/sma-risk-monitor/pkg/broker"
	"github.com/noah-isme/sma-risk-monitor/pkg/cache"
	"github.com/noah-isme/sma-risk-monitor/pkg/config"
	"github.com/noah-isme/sma-risk-monitor/pkg/database"
	"github.com/noah-isme/sma-risk-monitor/pkg/jobs"
	"github.com/noah-isme/sma-risk-monitor/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-risk-monitor/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-risk-monitor/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title Student Risk Monitor API
// @version 1.0.0
// @description Records attendance, quizzes and assignments and derives per-student risk levels.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api")
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

	if cfg.Database.AutoMigrate {
		migrator, err := database.NewMigrator(cfg.Database, logr)
		if err != nil {
			logr.Fatal("failed to init migrator", zap.Error(err))
		}
		if err := migrator.Up(); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Dashboard.CacheEnabled {
		if redisClient, err = cache.NewRedis(cfg.Redis); err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	performanceRepo := repository.NewPerformanceRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	tx := database.NewTransactor(db)

	engine := service.NewPerformanceService(service.PerformanceDeps{
		Tx:          tx,
		Students:    studentRepo,
		Attendance:  attendanceRepo,
		Quizzes:     quizRepo,
		Assignments: assignmentRepo,
		History:     performanceRepo,
		Alerts:      alertRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Logger:      logr.Named("performance"),
	})

	transport, err := startTransport(ctx, cfg, engine, metrics, logr)
	if err != nil {
		logr.Fatal("failed to start recompute transport", zap.Error(err))
	}
	defer transport.stop()

	validate := validator.New()
	handlers := handler.Handlers{
		Students:    handler.NewStudentHandler(service.NewStudentService(studentRepo, cacheSvc, validate, logr)),
		Attendance:  handler.NewAttendanceHandler(service.NewAttendanceService(tx, studentRepo, attendanceRepo, transport.scheduler, validate, logr)),
		Quizzes:     handler.NewQuizHandler(service.NewQuizService(tx, studentRepo, quizRepo, transport.scheduler, validate, logr)),
		Assignments: handler.NewAssignmentHandler(service.NewAssignmentService(tx, studentRepo, assignmentRepo, transport.scheduler, validate, logr)),
		Performance: handler.NewPerformanceHandler(engine),
		Alerts:      handler.NewAlertHandler(service.NewAlertService(alertRepo, cacheSvc, logr)),
		Dashboard:   handler.NewDashboardHandler(service.NewDashboardService(repository.NewDashboardRepository(db), cacheSvc, cfg.Dashboard.CacheTTL, logr)),
		Reports:     handler.NewReportHandler(service.NewReportService(studentRepo, logr)),
	}
	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient, transport.broker))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "transport", cfg.Performance.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// recomputeTransport is the scheduler recorders use plus whatever must be stopped on exit.
type recomputeTransport struct {
	scheduler service.PerformanceScheduler
	broker    *broker.RabbitMQ
	stop      func()
}

func startTransport(ctx context.Context, cfg *config.Config, engine *service.PerformanceService, metrics *service.MetricsService, logr *zap.Logger) (*recomputeTransport, error) {
	perf := cfg.Performance
	if perf.Transport == config.TransportRabbitMQ {
		b, err := broker.Dial(cfg.RabbitMQ, logr.Named("rabbitmq"))
		if err != nil {
			return nil, err
		}
		consumeCtx, cancel := context.WithCancel(ctx)
		if perf.Consume {
			handle := service.RecomputeMessageHandler(engine, perf.MaxRetries, perf.RetryDelay, logr)
			go func() {
				if err := b.Consume(consumeCtx, "api", handle); err != nil {
					logr.Error("recompute consumer stopped", zap.Error(err))
				}
			}()
		}
		return &recomputeTransport{
			scheduler: service.NewBrokerScheduler(b, metrics),
			broker:    b,
			stop: func() {
				cancel()
				if err := b.Close(); err != nil {
					logr.Warn("close rabbitmq", zap.Error(err))
				}
			},
		}, nil
	}

	queue := jobs.NewQueue(service.RecomputeJobType, service.RecomputeJobHandler(engine), jobs.QueueConfig{
		Workers:    perf.Workers,
		BufferSize: perf.BufferSize,
		MaxRetries: perf.MaxRetries,
		RetryDelay: perf.RetryDelay,
		Logger:     logr.Named("jobs"),
	})
	queue.Start(ctx)
	metrics.TrackQueueDepth(queue.Pending)
	return &recomputeTransport{
		scheduler: service.NewQueueScheduler(queue, metrics),
		stop:      queue.Stop,
	}, nil
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client, b *broker.RabbitMQ) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}
	if b != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if !b.Healthy() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}
