package main

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/joho/godotenv/autoload"

	"address-verifier/internal/cleaner"
	"address-verifier/internal/country"
	"address-verifier/internal/geocode"
	"address-verifier/internal/models"
	"address-verifier/internal/processor"
	"address-verifier/pkg/config"
	"address-verifier/pkg/errors"
	"address-verifier/pkg/logging"
	"address-verifier/pkg/metrics"
)

func main() {
	cfg := config.Load()

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting address verification service",
		logging.String("port", cfg.Port),
		logging.Duration("nominatim_interval", cfg.NominatimInterval),
		logging.Bool("opencage_enabled", cfg.OpenCageAPIKey != ""))

	rules, err := country.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatal("address rules load:", err)
	}

	registry := metrics.NewRegistry()

	primary := geocode.NewNominatimClient(geocode.NominatimConfig{
		BaseURL:   cfg.NominatimBaseURL,
		UserAgent: cfg.NominatimUserAgent,
		Interval:  cfg.NominatimInterval,
		Timeout:   cfg.HTTPTimeout,
		CacheSize: cfg.GeocodeCacheSize,
	}, logger, registry)

	secondary := geocode.NewOpenCageClient(geocode.OpenCageConfig{
		BaseURL: cfg.OpenCageBaseURL,
		APIKey:  cfg.OpenCageAPIKey,
		Timeout: cfg.HTTPTimeout,
	}, logger, registry)

	engine := processor.NewEngine(
		cleaner.New(rules.Regions),
		country.NewDetector(rules.Keywords),
		primary,
		secondary,
		cfg.DefaultCountry,
		logger,
		registry,
	)

	app := &App{config: cfg, engine: engine, log: logger.WithComponent("http")}

	router := mux.NewRouter()
	base := strings.TrimRight(cfg.BasePath, "/")
	router.HandleFunc(base+"/verify", app.verifyHandler).Methods("POST")
	router.HandleFunc(base+"/healthz", app.healthHandler).Methods("GET")
	if cfg.MetricsEnabled {
		router.Handle(cfg.MetricsPath, registry.Handler()).Methods("GET")
	}

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	// Graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	go func() {
		fmt.Printf("Server starting on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error:", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", logging.Error(err))
	}
	logger.Info("shutdown complete")
}

type App struct {
	config *config.Config
	engine *processor.Engine
	log    *logging.Logger
}

type verifyRequest struct {
	Rows           []models.AddressRecord `json:"rows"`
	DefaultCountry string                 `json:"default_country"`
}

type verifyResponse struct {
	BatchID string                      `json:"batch_id"`
	Data    []models.VerificationResult `json:"data"`
}

// verifyHandler runs one synchronous verification batch. Rows are
// processed in order and the response is index-aligned with the input.
func (app *App) verifyHandler(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		app.rejectRequest(w, errors.NewValidation("verifyHandler", "invalid JSON body", err))
		return
	}
	if len(body.Rows) == 0 {
		app.rejectRequest(w, errors.NewValidation("verifyHandler", "no rows provided", nil))
		return
	}

	batchID := uuid.NewString()
	start := time.Now()
	results := app.engine.VerifyBatch(r.Context(), body.Rows, body.DefaultCountry)
	app.log.Info("batch verified",
		logging.String("batch_id", batchID),
		logging.Int("rows", len(body.Rows)),
		logging.Duration("elapsed", time.Since(start)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verifyResponse{BatchID: batchID, Data: results})
}

func (app *App) rejectRequest(w http.ResponseWriter, err error) {
	msg := err.Error()
	var v *errors.ValidationError
	if stdErrors.As(err, &v) {
		msg = v.Msg
	}
	app.log.Warn("request rejected", logging.String("reason", msg))
	http.Error(w, msg, http.StatusBadRequest)
}

func (app *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
