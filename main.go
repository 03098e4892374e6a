package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mallucodewizard/videoverse/internal/database"
	"github.com/mallucodewizard/videoverse/internal/handlers"
	"github.com/mallucodewizard/videoverse/internal/logging"
	"github.com/mallucodewizard/videoverse/internal/metrics"
	"github.com/mallucodewizard/videoverse/internal/middleware"
	"github.com/mallucodewizard/videoverse/internal/service"
	"github.com/mallucodewizard/videoverse/internal/startup"
	"github.com/mallucodewizard/videoverse/internal/token"
	"github.com/mallucodewizard/videoverse/internal/transcoder"
	"github.com/mallucodewizard/videoverse/internal/validation"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn("failed to close database: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	engine := transcoder.New(transcoder.Options{
		TrimmedDir:   config.TrimmedDir,
		MergedDir:    config.MergedDir,
		ThumbnailDir: config.ThumbnailDir,
		TargetHeight: config.MergeHeight,
		Timeout:      config.TranscodeTimeout,
		Enabled:      config.TransformsEnabled,
	})

	gate := validation.New(engine, config.MaxUploadBytes, config.MinDuration, config.MaxDuration)
	links := token.New(config.SigningKey)

	svc := service.New(service.Options{
		Store:             db,
		Gate:              gate,
		Eng:               engine,
		Links:             links,
		UploadDir:         config.UploadDir,
		TmpDir:            config.TmpDir,
		BaseURL:           config.BaseURL,
		MaxUploadBytes:    config.MaxUploadBytes,
		ThumbnailsEnabled: config.ThumbnailsEnabled,
	})

	h := handlers.New(svc, db, db, config)

	router := setupRouter(h, config)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Minute, // uploads can be slow
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, engine)

	startup.LogServerStarted(config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	// Ops surface
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	if config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// Video API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/videos", h.Upload).Methods("POST")
	api.HandleFunc("/videos", h.ListVideos).Methods("GET")
	api.HandleFunc("/videos/merge", h.MergeVideos).Methods("POST")
	api.HandleFunc("/videos/{id}", h.GetVideo).Methods("GET")
	api.HandleFunc("/videos/{id}/file", h.GetVideoFile).Methods("GET")
	api.HandleFunc("/videos/{id}/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/videos/{id}/trim", h.TrimVideo).Methods("POST")
	api.HandleFunc("/videos/{id}/share", h.ShareVideo).Methods("POST")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	// Share link redemption carries its own capability; no further
	// authorization applies here.
	r.HandleFunc("/share/{token}", h.AccessShared).Methods("GET")

	return r
}

func handleShutdown(srv *http.Server, engine *transcoder.Engine) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping in-flight transforms")
	engine.Cleanup()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	startup.LogShutdownComplete()
}
