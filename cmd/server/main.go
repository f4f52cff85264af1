package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/gateway"
	"github.com/prepnest/interview-gateway/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Fatal before the logger exists
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_provider", cfg.STTProvider).
		Str("responder_model", cfg.ResponderModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Interview Gateway Service starting")

	mux := http.NewServeMux()

	mux.HandleFunc("/sessions/interview", gateway.HandleSessionWS(cfg))
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	checks := map[string]observability.HealthCheckFunc{
		"responder": httpReachableCheck(cfg.ResponderBaseURL),
		"speech":    httpReachableCheck(cfg.SpeechAPIURL),
	}
	if cfg.MetadataBaseURL != "" {
		checks["metadata"] = httpReachableCheck(cfg.MetadataBaseURL)
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/sessions/interview", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// httpReachableCheck probes a dependency base URL with a HEAD request. Any
// HTTP response counts as reachable; these services reject unauthenticated
// probes but still prove the route is up.
func httpReachableCheck(baseURL string) observability.HealthCheckFunc {
	client := &http.Client{Timeout: 3 * time.Second}
	return func(ctx context.Context) (bool, error) {
		if baseURL == "" {
			return false, fmt.Errorf("base URL not configured")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return false, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, err
		}
		resp.Body.Close()
		return true, nil
	}
}
