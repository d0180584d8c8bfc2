package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nxkit/nexon-openapi-client/internal/testutil"
)

func newE2EClient(t *testing.T, mock *testutil.MockAPI) *Client {
	t.Helper()

	cfg := DefaultConfig("e2e-test-key")
	cfg.BaseURL = mock.URL()
	cfg.RequestsPerSecond = 100
	cfg.HeavyRequestsPerSecond = 100
	cfg.MaxRetries = 2
	cfg.BaseRetryDelay = 10 * time.Millisecond
	cfg.MaxRetryDelay = 50 * time.Millisecond

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestEndToEnd_FetchAndCache(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetEndpointResponse("character.basic",
		testutil.NewHealthyResponse(`{"character_name":"Hero","character_level":250}`))

	c := newE2EClient(t, mock)
	ttl := 30 * time.Minute

	// Cache miss: one admitted transport call.
	body, err := c.Fetch(context.Background(), "character.basic",
		map[string]string{"character_name": "Hero"}, ttl)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("Fetch() returned empty body")
	}
	if mock.GetRequestCount() != 1 {
		t.Fatalf("upstream saw %d requests, want 1", mock.GetRequestCount())
	}

	// Same request, different caller formatting: served from cache, zero
	// additional admissions.
	cached, err := c.Fetch(context.Background(), "character.basic",
		map[string]string{"character_name": "  hero "}, ttl)
	if err != nil {
		t.Fatalf("cached Fetch() error: %v", err)
	}
	if string(cached) != string(body) {
		t.Error("cached body differs from original")
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("upstream saw %d requests, want 1 (second fetch must not call upstream)", mock.GetRequestCount())
	}
}

func TestEndToEnd_APIKeyHeaderSent(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newE2EClient(t, mock)

	if _, err := c.Fetch(context.Background(), "character.basic", nil, 0); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if mock.LastAPIKey != "e2e-test-key" {
		t.Errorf("upstream saw api key %q, want %q", mock.LastAPIKey, "e2e-test-key")
	}
}

func TestEndToEnd_NotFound(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetEndpointResponse("character.basic", testutil.NewNotFoundResponse())

	c := newE2EClient(t, mock)

	_, err := c.Fetch(context.Background(), "character.basic",
		map[string]string{"character_name": "Ghost"}, time.Minute)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T, want *APIError", err)
	}
	if apiErr.Kind != KindNotFound || apiErr.Detail != DetailCharacter {
		t.Errorf("classified as %s/%s, want %s/%s", apiErr.Kind, apiErr.Detail, KindNotFound, DetailCharacter)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("upstream saw %d requests, want 1 (not found is not retryable)", mock.GetRequestCount())
	}
	if c.CacheLen() != 0 {
		t.Error("failed responses must not be cached")
	}
}

func TestEndToEnd_RecoversFromTransientServerError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var mu sync.Mutex
	calls := 0
	mock.SetHandler("/maplestory/v1/guild/basic", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		failing := calls <= 2
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"name":"OPENAPI00001","message":"Internal server error"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"guild_name":"Order"}`))
	})

	c := newE2EClient(t, mock)

	body, err := c.Fetch(context.Background(), "guild.basic",
		map[string]string{"guild_name": "Order", "world_name": "Scania"}, 0)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(body) != `{"guild_name":"Order"}` {
		t.Errorf("Fetch() body = %s", body)
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("upstream saw %d requests, want 3 (two failures, one success)", mock.GetRequestCount())
	}
}

func TestEndToEnd_DailyQuotaNotRetried(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetEndpointResponse("ranking.overall", testutil.NewDailyQuotaResponse())

	c := newE2EClient(t, mock)

	_, err := c.Fetch(context.Background(), "ranking.overall",
		map[string]string{"world_name": "Scania", "date": "2024-03-01"}, 0)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T, want *APIError", err)
	}
	if apiErr.Kind != KindQuotaExceeded || apiErr.Detail != DetailDailyQuota {
		t.Errorf("classified as %s/%s, want %s/%s", apiErr.Kind, apiErr.Detail, KindQuotaExceeded, DetailDailyQuota)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("upstream saw %d requests, want 1 (daily quota is terminal)", mock.GetRequestCount())
	}
}

func TestEndToEnd_MaintenanceSurfacesImmediately(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetEndpointResponse("character.basic", testutil.NewMaintenanceResponse())

	c := newE2EClient(t, mock)

	_, err := c.Fetch(context.Background(), "character.basic", nil, 0)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T, want *APIError", err)
	}
	if apiErr.Kind != KindServiceUnavailable || apiErr.Detail != DetailMaintenance {
		t.Errorf("classified as %s/%s, want %s/%s", apiErr.Kind, apiErr.Detail, KindServiceUnavailable, DetailMaintenance)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("upstream saw %d requests, want 1 (maintenance is terminal)", mock.GetRequestCount())
	}
}

func TestEndToEnd_TransportTimeout(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetEndpointResponse("character.basic", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"status":"ok"}`,
		Delay:      200 * time.Millisecond,
	})

	cfg := DefaultConfig("e2e-test-key")
	cfg.BaseURL = mock.URL()
	cfg.MaxRetries = 0

	transport := NewHTTPTransport(cfg.BaseURL, cfg.APIKey)
	transport.SetHTTPClient(&http.Client{Timeout: 50 * time.Millisecond})
	cfg.Transport = transport

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = c.Fetch(context.Background(), "character.basic", nil, 0)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T, want *APIError", err)
	}
	if apiErr.Kind != KindConnectionFailed || apiErr.Detail != DetailTimeout {
		t.Errorf("classified as %s/%s, want %s/%s", apiErr.Kind, apiErr.Detail, KindConnectionFailed, DetailTimeout)
	}
}
