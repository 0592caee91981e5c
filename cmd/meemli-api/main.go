package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/handler"
	"github.com/meemli/meemli-api/internal/repository"
	"github.com/meemli/meemli-api/internal/service"
	"github.com/meemli/meemli-api/pkg/cache"
	"github.com/meemli/meemli-api/pkg/config"
	"github.com/meemli/meemli-api/pkg/database"
	"github.com/meemli/meemli-api/pkg/identity"
	"github.com/meemli/meemli-api/pkg/logger"
	"github.com/meemli/meemli-api/pkg/validation"
)

// @title Meemli API
// @version 1.0.0
// @description Administration API for after-school programs: students, staff, sections, sessions and attendance.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	provider, err := newIdentityProvider(ctx, cfg, logr)
	if err != nil {
		return err
	}

	validate := validation.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)

	studentRepo := repository.NewStudentRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	programRepo := repository.NewProgramRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	students := service.NewStudentService(studentRepo, sectionRepo, cacheSvc, validate, logr)
	sections := service.NewSectionService(sectionRepo, programRepo, userRepo, studentRepo, cacheSvc, validate, logr)
	programs := service.NewProgramService(programRepo, cacheSvc, validate, logr)
	users := service.NewUserService(userRepo, provider, validate, logr)
	sessions := service.NewSessionService(sessionRepo, sectionRepo, attendanceRepo, cacheSvc, metrics, validate, logr)
	attendance := service.NewAttendanceService(attendanceRepo, sessionRepo, studentRepo, metrics, validate, logr,
		service.AttendanceServiceConfig{StrictBulk: cfg.Attendance.StrictBulk})
	exports := service.NewExportService(sessions)

	router := newRouter(cfg, logr, routes{
		verifier:   provider,
		admins:     users,
		metrics:    metrics,
		health:     handler.NewMetricsHandler(metrics, map[string]handler.Pinger{"postgres": db, "redis": cacheRepo}),
		students:   handler.NewStudentHandler(students),
		sections:   handler.NewSectionHandler(sections),
		programs:   handler.NewProgramHandler(programs),
		users:      handler.NewUserHandler(users),
		sessions:   handler.NewSessionHandler(sessions, exports),
		attendance: handler.NewAttendanceHandler(attendance),
	})

	var scheduler *service.SessionScheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = service.NewSessionScheduler(sessions, cfg.Scheduler.Schedule, cfg.Scheduler.Timezone, metrics, logr)
		if err != nil {
			return fmt.Errorf("session scheduler: %w", err)
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Bool("auth_bypass", cfg.AuthBypass))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server forced shutdown", zap.Error(err))
	}
	logr.Info("server exited")
	return nil
}

// newIdentityProvider builds the configured provider. With AUTH_BYPASS a firebase
// setup that cannot initialise falls back to an in-memory provider.
func newIdentityProvider(ctx context.Context, cfg *config.Config, logr *zap.Logger) (identity.Provider, error) {
	provider, err := identity.New(ctx, cfg.Identity, logr)
	if err == nil {
		return provider, nil
	}
	if !cfg.AuthBypass {
		return nil, fmt.Errorf("identity provider: %w", err)
	}
	logr.Warn("identity provider unavailable under AUTH_BYPASS, using local accounts", zap.Error(err))
	return identity.NewLocal(uuid.NewString(), cfg.Identity.LocalIssuer, cfg.Identity.LocalTokenTTL), nil
}
