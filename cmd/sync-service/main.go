package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinisync/fhir-sync/pkg/common/config"
	"github.com/clinisync/fhir-sync/pkg/common/database"
	"github.com/clinisync/fhir-sync/pkg/common/kafka"
	"github.com/clinisync/fhir-sync/pkg/common/logger"
	"github.com/clinisync/fhir-sync/pkg/common/middleware"
	"github.com/clinisync/fhir-sync/pkg/fhir"
	"github.com/clinisync/fhir-sync/pkg/normalizer"
	"github.com/clinisync/fhir-sync/pkg/observability/metrics"
	"github.com/clinisync/fhir-sync/pkg/query"
	"github.com/clinisync/fhir-sync/pkg/storage"
	syncsvc "github.com/clinisync/fhir-sync/pkg/sync"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	store := storage.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate tables")
	}

	redisClient := database.ConnectRedis(cfg)
	defer database.CloseRedis(redisClient)

	rules, err := normalizer.LoadRules(cfg.NormalizerRulesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load normalizer rules")
	}
	transformer := normalizer.NewTransformer(rules)

	fhirClient := fhir.NewClient(fhir.Config{
		BaseURL:      cfg.FHIRBaseURL,
		Timeout:      cfg.FHIRTimeout,
		TokenURL:     cfg.FHIRTokenURL,
		ClientID:     cfg.FHIRClientID,
		ClientSecret: cfg.FHIRClientSecret,
		Scopes:       cfg.FHIRScopes,
	})

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.SyncEventTopic)
	defer producer.Close()

	var dlqProducer *kafka.Producer
	if cfg.OrphanDLQTopic != "" {
		dlqProducer = kafka.NewProducer(cfg.KafkaBrokers, cfg.OrphanDLQTopic)
		defer dlqProducer.Close()
	}

	syncService := syncsvc.NewService(fhirClient, transformer, store, producer, dlqProducer, cfg.FHIRObservationFan)
	queryService := query.NewService(store, redisClient, cfg.PatientCacheTTL)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, metrics.Middleware)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	syncsvc.NewHTTPHandler(syncService).Register(router)
	query.NewHTTPHandler(queryService).Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("FHIR Sync Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down FHIR Sync Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("FHIR Sync Service stopped")
}
