package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/nourish-clinic/platform/pkg/common/config"
	"github.com/nourish-clinic/platform/pkg/common/database"
	"github.com/nourish-clinic/platform/pkg/common/idempotency"
	"github.com/nourish-clinic/platform/pkg/common/kafka"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/correlation"
	"github.com/nourish-clinic/platform/pkg/gateway/auth"
	"github.com/nourish-clinic/platform/pkg/gateway/middleware"
	"github.com/nourish-clinic/platform/pkg/observability/metrics"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	repo := correlation.NewGormRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate correlation tables")
	}

	catalog, err := correlation.LoadSensitivityCatalog(cfg.SensitivityCatalogPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.SensitivityCatalogPath).Warn("sensitivity catalog unavailable, using built-in groups")
		catalog = correlation.DefaultSensitivityCatalog()
	}
	aggregator := correlation.NewAggregator(catalog, cfg.Location())

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.CorrelationTopic)
	defer producer.Close()

	svc := correlation.NewService(repo, aggregator, correlation.WithPublisher(producer, kafka.NewEvent))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	if cfg.ConsumerEnabled {
		var dlqProducer *kafka.Producer
		if cfg.CorrelationDLQTopic != "" {
			dlqProducer = kafka.NewProducer(cfg.KafkaBrokers, cfg.CorrelationDLQTopic)
			defer dlqProducer.Close()
		}

		redisClient := database.GetRedis(cfg)
		defer database.CloseRedis()
		claims := idempotency.NewStore(redisClient, "correlation-trigger", cfg.TriggerDedupeTTL)

		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.SymptomTopic, cfg.KafkaGroupID, dlqProducer,
			kafka.WithHandlerRetry(cfg.TriggerRetryAttempts, cfg.TriggerRetryBackoff))
		defer consumer.Close()
		trigger := correlation.NewTriggerHandler(svc, claims)

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log.WithField("topic", cfg.SymptomTopic).Info("symptom trigger consumer started")
			if err := consumer.Consume(ctx, trigger.Handle); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Error("symptom trigger consumer stopped")
			}
		}()
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			logger.Log.WithError(err).Warn("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", metrics.Handler).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))
	api.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	if authenticators := buildAuthenticators(cfg); len(authenticators) > 0 {
		api.Use(middleware.Authenticate(authenticators...))
	} else {
		logger.Log.Warn("no authenticator configured, API running without auth")
	}
	api.Use(middleware.Tenant(cfg.DefaultTenant))
	correlation.NewHTTPHandler(svc).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":     cfg.ServerHost,
			"port":     cfg.ServerPort,
			"timezone": cfg.Location().String(),
		}).Info("Correlation Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Correlation Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}
	wg.Wait()

	logger.Log.Info("Correlation Service stopped")
}

func buildAuthenticators(cfg *config.Config) []auth.Authenticator {
	var out []auth.Authenticator
	if cfg.JWTSecret != "" {
		jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
		if err != nil {
			logger.Log.WithError(err).Fatal("invalid JWT configuration")
		}
		out = append(out, jwtManager)
	}
	if cfg.OIDCIssuer != "" {
		oidcAuth, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.GatewayRequestTimeout)
		if err != nil {
			logger.Log.WithError(err).Warn("OIDC authentication not configured")
		} else {
			out = append(out, oidcAuth)
		}
	}
	return out
}
