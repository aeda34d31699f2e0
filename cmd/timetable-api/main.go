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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Milankumar13/automated-timetable-backend/api/swagger"
	"github.com/Milankumar13/automated-timetable-backend/internal/handler"
	authmiddleware "github.com/Milankumar13/automated-timetable-backend/internal/middleware"
	"github.com/Milankumar13/automated-timetable-backend/internal/repository"
	"github.com/Milankumar13/automated-timetable-backend/internal/service"
	"github.com/Milankumar13/automated-timetable-backend/pkg/cache"
	"github.com/Milankumar13/automated-timetable-backend/pkg/config"
	"github.com/Milankumar13/automated-timetable-backend/pkg/database"
	"github.com/Milankumar13/automated-timetable-backend/pkg/logger"
	corsmiddleware "github.com/Milankumar13/automated-timetable-backend/pkg/middleware/cors"
	reqidmiddleware "github.com/Milankumar13/automated-timetable-backend/pkg/middleware/requestid"
)

// @title Automated Timetable API
// @version 1.0.0
// @description Multi-tenant timetable validation and lifecycle engine
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Occupancy reads fall back to the database without Redis.
		logr.Sugar().Warnw("redis unavailable, occupancy cache disabled", "error", err)
	}

	validate := validator.New()

	// Repositories.
	slotRepo := repository.NewSlotRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	professorRepo := repository.NewProfessorRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	runRepo := repository.NewRunRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Engine core.
	conflictIndex := service.NewConflictIndex(planRepo, sessionRepo, logr)
	ruleEngine := service.NewRuleEngine(ruleRepo, professorRepo, planRepo, sessionRepo, slotRepo, professorRepo, cfg.Engine, logr)
	metricsSvc := service.NewMetricsService()

	auditSvc := service.NewAuditService(auditRepo, cfg.Audit, logr)
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	auditSvc.Start(rootCtx)
	defer auditSvc.Stop()

	// Services.
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	catalogSvc := service.NewCatalogService(slotRepo, roomRepo, professorRepo, sectionRepo, auditSvc, validate, logr)
	ruleSvc := service.NewRuleService(ruleRepo, professorRepo, roomRepo, slotRepo, professorRepo, auditSvc, validate, logr)
	planSvc := service.NewPlanService(planRepo, sectionRepo, roomRepo, slotRepo, professorRepo, conflictIndex, ruleEngine, db, auditSvc, cacheRepo, metricsSvc, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, planRepo, slotRepo, conflictIndex, ruleEngine, db, auditSvc, metricsSvc, validate, logr)
	runSvc := service.NewRunService(runRepo, ruleEngine, db, auditSvc, metricsSvc, validate, logr)
	availabilitySvc := service.NewAvailabilityService(conflictIndex, cacheRepo, cfg.Engine, logr)
	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(runRepo, planRepo, slotRepo, sectionRepo, roomRepo, professorRepo, nil, nil, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(authmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Catalog:      handler.NewCatalogHandler(catalogSvc),
		Plans:        handler.NewPlanHandler(planSvc, sessionSvc),
		Sessions:     handler.NewSessionHandler(sessionSvc),
		Runs:         handler.NewRunHandler(runSvc, exportSvc),
		Rules:        handler.NewRuleHandler(ruleSvc),
		Availability: handler.NewAvailabilityHandler(availabilitySvc),
		Timetable:    handler.NewTimetableHandler(exportSvc),
	}, authSvc)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
