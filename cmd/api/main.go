package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/presensia/attendance-api/api/swagger"
	"github.com/presensia/attendance-api/internal/handler"
	"github.com/presensia/attendance-api/internal/middleware"
	"github.com/presensia/attendance-api/internal/models"
	"github.com/presensia/attendance-api/internal/repository"
	"github.com/presensia/attendance-api/internal/service"
	"github.com/presensia/attendance-api/pkg/cache"
	"github.com/presensia/attendance-api/pkg/config"
	"github.com/presensia/attendance-api/pkg/database"
	"github.com/presensia/attendance-api/pkg/jobs"
	"github.com/presensia/attendance-api/pkg/logger"
	"github.com/presensia/attendance-api/pkg/mailer"
	corsmiddleware "github.com/presensia/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/presensia/attendance-api/pkg/middleware/requestid"
)

// @title Presensia Attendance API
// @version 1.0.0
// @description QR-based student attendance ledger with derived summaries and reports
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The report cache is an optimization; reports fall back to the database.
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	gate := service.NewPermissionGate()

	attendanceRepo := repository.NewAttendanceRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	auditSvc := service.NewAuditService(auditRepo, logr)
	summarySvc := service.NewSummaryService(attendanceRepo, summaryRepo, logr)
	alertSvc := service.NewAlertService(summarySvc, classRepo, mailer.New(cfg.SMTP, logr), cfg.Attendance.DefaultRequiredPercentage, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Alerts.Enabled {
		alertQueue := jobs.NewQueue("alerts", alertSvc.Handler, jobs.QueueConfig{
			Workers:    cfg.Alerts.Workers,
			MaxRetries: cfg.Alerts.MaxRetries,
			RetryDelay: cfg.Alerts.RetryDelay,
			Logger:     logr,
		})
		alertQueue.Start(ctx)
		defer alertQueue.Stop()
		alertSvc.AttachQueue(alertQueue)
	}
	if cfg.Audit.Enabled {
		auditQueue := jobs.NewQueue("audit", auditSvc.Handler, jobs.QueueConfig{
			Workers: cfg.Audit.Workers,
			Logger:  logr,
		})
		auditQueue.Start(ctx)
		defer auditQueue.Stop()
		auditSvc.AttachQueue(auditQueue)
	}

	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, gate, summarySvc, alertSvc, auditSvc, cacheRepo, logr)
	reportSvc := service.NewReportService(attendanceRepo, studentRepo, classRepo, gate, cacheRepo, service.ReportConfig{
		DefaultRequiredPercentage: cfg.Attendance.DefaultRequiredPercentage,
		HistoryEpoch:              cfg.Attendance.HistoryEpoch,
		CacheTTL:                  cfg.Attendance.ReportCacheTTL,
	}, logr)
	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	metricsSvc := service.NewMetricsService()
	alertSvc.AttachMetrics(metricsSvc)
	attendanceSvc.AttachMetrics(metricsSvc)
	reportSvc.AttachMetrics(metricsSvc)

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	attendance := authed.Group("/attendance")
	attendance.POST("/mark", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), attendanceHandler.Mark)
	attendance.GET("", attendanceHandler.List)
	attendance.GET("/me", middleware.RequireRoles(models.RoleStudent), reportHandler.SelfHistory)
	attendance.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), attendanceHandler.Delete)

	reports := authed.Group("/reports")
	reports.GET("/daily-summary/:class", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), reportHandler.DailySummary)
	reports.GET("/daily-summary/:class/export", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), reportHandler.ExportDailySummary)
	reports.GET("/absent/:class", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), reportHandler.AbsentList)
	reports.GET("/student-percentage/:roll_no", reportHandler.StudentPercentage)
	reports.GET("/class-percentage/:class", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), reportHandler.ClassPercentage)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
