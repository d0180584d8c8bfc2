package client

import (
	"strings"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		detail string
		want   bool
	}{
		{"server error", KindServerError, "", true},
		{"rate limited", KindRateLimited, "", true},
		{"concurrent quota", KindQuotaExceeded, DetailConcurrentQuota, true},
		{"daily quota", KindQuotaExceeded, DetailDailyQuota, false},
		{"connection timeout", KindConnectionFailed, DetailTimeout, true},
		{"connection network", KindConnectionFailed, DetailNetwork, true},
		{"connection gateway", KindConnectionFailed, DetailGateway, false},
		{"gateway timeout", KindGatewayTimeout, "", true},
		{"unauthorized", KindUnauthorized, "", false},
		{"forbidden", KindForbidden, "", false},
		{"not found", KindNotFound, DetailCharacter, false},
		{"validation failed", KindValidationFailed, "", false},
		{"maintenance", KindServiceUnavailable, DetailMaintenance, false},
		{"service unavailable generic", KindServiceUnavailable, DetailGeneric, false},
		{"unknown", KindUnknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.kind, tt.detail); got != tt.want {
				t.Errorf("Retryable(%s, %s) = %v, want %v", tt.kind, tt.detail, got, tt.want)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := newError(KindNotFound, DetailCharacter, 404, nil)

	msg := err.Error()
	if !strings.Contains(msg, "not_found/character") {
		t.Errorf("Error() = %q, want kind/detail present", msg)
	}
	if !strings.Contains(msg, "status 404") {
		t.Errorf("Error() = %q, want status present", msg)
	}
}

func TestAPIError_StableMessages(t *testing.T) {
	// Message templates depend only on the classification, never on
	// upstream wording.
	a := Classify(429, []byte(`{"error":{"message":"Too many requests, slow down"}}`), "character.basic", nil, nil)
	b := Classify(429, []byte(`{"error":{"message":"completely different upstream text"}}`), "guild.basic", nil, nil)

	if a.Message != b.Message {
		t.Errorf("messages differ for the same kind: %q vs %q", a.Message, b.Message)
	}
	if !strings.Contains(a.Message, "wait") {
		t.Errorf("rate limit message %q must mention waiting", a.Message)
	}
}

func TestQuotaMessagesMentionWaiting(t *testing.T) {
	for _, detail := range []string{DetailDailyQuota, DetailConcurrentQuota} {
		msg := messageFor(KindQuotaExceeded, detail)
		if !strings.Contains(msg, "wait") {
			t.Errorf("quota message %q must mention waiting", msg)
		}
	}
}

func TestRedactParams(t *testing.T) {
	params := map[string]string{
		"character_name": "Hero",
		"api_key":        "super-secret",
		"Authorization":  "Bearer abc",
		"access_token":   "tok",
		"password":       "pw",
		"date":           "2024-03-01",
	}

	got := redactParams(params)

	if got["character_name"] != "Hero" || got["date"] != "2024-03-01" {
		t.Error("non-sensitive params must pass through unchanged")
	}
	for _, k := range []string{"api_key", "Authorization", "access_token", "password"} {
		if got[k] != redacted {
			t.Errorf("param %q = %q, want %q", k, got[k], redacted)
		}
	}

	// Original map untouched.
	if params["api_key"] != "super-secret" {
		t.Error("redactParams must not mutate its input")
	}
}

func TestErrorContext_RedactsSensitiveParams(t *testing.T) {
	err := Classify(500, nil, "character.basic", map[string]string{
		"character_name": "Hero",
		"api_key":        "super-secret",
	}, nil)

	if err.Context["param_api_key"] != redacted {
		t.Errorf("context api_key = %q, want %q", err.Context["param_api_key"], redacted)
	}
	if err.Context["param_character_name"] != "Hero" {
		t.Errorf("context character_name = %q, want %q", err.Context["param_character_name"], "Hero")
	}
	if err.Context["endpoint"] != "character.basic" {
		t.Errorf("context endpoint = %q, want %q", err.Context["endpoint"], "character.basic")
	}
}
