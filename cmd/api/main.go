package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/medgate/records-api/internal/config"
	"github.com/medgate/records-api/internal/email"
	adminHandler "github.com/medgate/records-api/internal/handler/admin"
	appointmentHandler "github.com/medgate/records-api/internal/handler/appointment"
	authHandler "github.com/medgate/records-api/internal/handler/auth"
	healthHandler "github.com/medgate/records-api/internal/handler/health"
	recordHandler "github.com/medgate/records-api/internal/handler/medicalrecord"
	patientHandler "github.com/medgate/records-api/internal/handler/patient"
	"github.com/medgate/records-api/internal/middleware"
	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository/postgres"
	"github.com/medgate/records-api/internal/router"
	adminService "github.com/medgate/records-api/internal/service/admin"
	appointmentService "github.com/medgate/records-api/internal/service/appointment"
	authService "github.com/medgate/records-api/internal/service/auth"
	"github.com/medgate/records-api/internal/service/event"
	recordService "github.com/medgate/records-api/internal/service/medicalrecord"
	patientService "github.com/medgate/records-api/internal/service/patient"
	"github.com/medgate/records-api/internal/service/scope"
	"github.com/medgate/records-api/pkg/auth"
	"github.com/medgate/records-api/pkg/logger"
	"github.com/medgate/records-api/pkg/messaging/redis"
	"github.com/medgate/records-api/pkg/security"
	"github.com/medgate/records-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	registerValidators()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	patientRepo := postgres.NewPatientRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	recordRepo := postgres.NewMedicalRecordRepository(base)
	tokenRepo := postgres.NewTokenRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Shared infrastructure
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(0)
	recorder := event.NewRecorder(outboxRepo, appLogger)
	scopes := scope.NewResolver(patientRepo)

	smtpCfg, err := email.LoadSMTPConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load smtp configuration")
	}
	emailSender := email.NewSender(smtpCfg, appLogger)

	// Services
	authSvc := authService.NewService(userRepo, patientRepo, tokenRepo, hasher, jwtSvc, emailSender, appLogger)
	patientSvc := patientService.NewService(patientRepo, userRepo, scopes, recorder)
	appointmentSvc := appointmentService.NewService(appointmentRepo, patientRepo, userRepo, scopes, recorder)
	recordSvc := recordService.NewService(recordRepo, patientRepo, userRepo, scopes, recorder)
	adminSvc := adminService.NewService(userRepo, patientRepo, appointmentRepo, recordRepo, recorder)

	// HTTP layer
	authMW := middleware.NewAuthMiddleware(jwtSvc)
	r := router.NewRouter(
		authMW,
		authHandler.NewHandler(authSvc),
		patientHandler.NewHandler(patientSvc),
		appointmentHandler.NewHandler(appointmentSvc),
		recordHandler.NewHandler(recordSvc),
		adminHandler.NewHandler(adminSvc),
		healthHandler.NewHandler(db),
		router.Config{
			RateLimit:  cfg.RateLimit.RPS,
			RateBurst:  cfg.RateLimit.Burst,
			CORSConfig: middleware.DefaultCORSConfig(),
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	// Change events are best-effort: without Redis the API still runs,
	// the outbox just accumulates.
	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()

		processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: time.Duration(cfg.Outbox.PollIntervalSeconds) * time.Second,
		}, appLogger)
		go processor.Start(workerCtx)
	} else {
		appLogger.Info("Redis not configured, outbox processor disabled")
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("Server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return model.Role(fl.Field().String()).Valid()
		})
	}
}
