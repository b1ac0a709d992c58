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

	_ "github.com/sismepa/academic-api/api/swagger"
	"github.com/sismepa/academic-api/internal/handler"
	"github.com/sismepa/academic-api/internal/middleware"
	"github.com/sismepa/academic-api/internal/repository"
	"github.com/sismepa/academic-api/internal/service"
	"github.com/sismepa/academic-api/pkg/cache"
	"github.com/sismepa/academic-api/pkg/config"
	"github.com/sismepa/academic-api/pkg/database"
	"github.com/sismepa/academic-api/pkg/jobs"
	"github.com/sismepa/academic-api/pkg/logger"
	"github.com/sismepa/academic-api/pkg/mailer"
	corsmiddleware "github.com/sismepa/academic-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sismepa/academic-api/pkg/middleware/requestid"
)

// @title SISMEPA Academic API
// @version 1.0.0
// @description Enrollment validation and scheduling engine for academic registration
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	validate := validator.New()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck

	// Notification dispatcher
	sendgrid := mailer.NewSendGrid(cfg.Notifications)
	notificationSvc := service.NewNotificationService(sendgrid, studentRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
	}, logr)
	notificationSvc.Start(context.Background())
	defer notificationSvc.Stop()

	// Services
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	programSvc := service.NewProgramService(programRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, programRepo, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, courseRepo, userRepo, notificationSvc, validate, logr)
	periodSvc := service.NewPeriodService(periodRepo, notificationSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, courseRepo, cacheRepo, notificationSvc, cfg.Academic, cfg.Cache.ProgressTTL, validate, logr)
	registrationSvc := service.NewRegistrationService(enrollmentRepo, sectionRepo, courseRepo, studentRepo, cfg.Academic, validate, logr)
	gradeSvc := service.NewGradeService(enrollmentRepo, notificationSvc, cacheRepo, cfg.Academic, validate, logr)
	reportSvc := service.NewReportService(enrollmentRepo, periodRepo, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	h := handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Registrations: handler.NewRegistrationHandler(registrationSvc, studentSvc, metricsSvc),
		Grades:        handler.NewGradeHandler(gradeSvc, metricsSvc),
		Periods:       handler.NewPeriodHandler(periodSvc),
		Courses:       handler.NewCourseHandler(courseSvc, sectionSvc),
		Sections:      handler.NewSectionHandler(sectionSvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Programs:      handler.NewProgramHandler(programSvc),
		Reports:       handler.NewReportHandler(reportSvc),
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, h, authSvc, metricsSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
