package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nxkit/nexon-openapi-client/pkg/client"
	"github.com/nxkit/nexon-openapi-client/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		fallbackLogger := logging.NewLogger("openapi-proxy")
		fallbackLogger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	}).With().Str("component", "openapi-proxy").Logger()

	if cfg.API.Key == "" {
		logger.Fatal().Msg("API key is required (set api.key in config or NEXON_API_KEY)")
	}

	clientCfg := client.DefaultConfig(cfg.API.Key)
	if cfg.API.BaseURL != "" {
		clientCfg.BaseURL = cfg.API.BaseURL
	}
	if cfg.Limits.RequestsPerSecond > 0 {
		clientCfg.RequestsPerSecond = cfg.Limits.RequestsPerSecond
	}
	if cfg.Limits.RequestsPerMinute > 0 {
		clientCfg.RequestsPerMinute = cfg.Limits.RequestsPerMinute
	}
	if cfg.Limits.BurstLimit > 0 {
		clientCfg.BurstLimit = cfg.Limits.BurstLimit
	}
	if cfg.Limits.HeavyRequestsPerSecond > 0 {
		clientCfg.HeavyRequestsPerSecond = cfg.Limits.HeavyRequestsPerSecond
	}
	if cfg.Cache.MaxEntries > 0 {
		clientCfg.CacheMaxEntries = cfg.Cache.MaxEntries
	}

	apiClient, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		logger.Fatal().Err(err).Str("value", cfg.Cache.DefaultTTL).Msg("Invalid cache TTL")
	}

	overrides, err := cfg.CacheTTLOverrides()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid cache TTL override")
	}
	ttlFor := ttlResolver(ttl, overrides)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/", proxyHandler(apiClient, ttlFor, logger))

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("Starting OpenAPI proxy server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ttlResolver picks the cache TTL for an endpoint, preferring the
// longest matching prefix override.
func ttlResolver(fallback time.Duration, overrides map[string]time.Duration) func(string) time.Duration {
	return func(endpoint string) time.Duration {
		ttl := fallback
		bestLen := -1
		for prefix, d := range overrides {
			if strings.HasPrefix(endpoint, prefix) && len(prefix) > bestLen {
				ttl = d
				bestLen = len(prefix)
			}
		}
		return ttl
	}
}

// proxyHandler forwards GET /api/<endpoint-id>?param=value requests
// through the resilient client. The endpoint identifier uses dotted
// form, e.g. GET /api/character.basic?character_name=Hero.
func proxyHandler(apiClient *client.Client, ttlFor func(string) time.Duration, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		endpoint := strings.TrimPrefix(r.URL.Path, "/api/")
		if endpoint == "" || strings.Contains(endpoint, "/") {
			http.Error(w, "invalid endpoint identifier", http.StatusBadRequest)
			return
		}

		params := make(map[string]string)
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		body, err := apiClient.Fetch(ctx, endpoint, params, ttlFor(endpoint))
		if err != nil {
			writeError(w, endpoint, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to write response")
		}
	}
}

// writeError maps a classified client error onto an HTTP response.
// Upstream statuses pass through where available; transport-level
// failures surface as 502.
func writeError(w http.ResponseWriter, endpoint string, err error, logger zerolog.Logger) {
	status := http.StatusBadGateway
	kind := "unknown"
	message := err.Error()

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		kind = string(apiErr.Kind)
		message = apiErr.Message
		if apiErr.HTTPStatus > 0 {
			status = apiErr.HTTPStatus
		}
	}

	logger.Warn().
		Str("endpoint", endpoint).
		Str("kind", kind).
		Int("status", status).
		Msg("Proxied request failed")

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"kind":    kind,
			"message": message,
		},
	})
}
