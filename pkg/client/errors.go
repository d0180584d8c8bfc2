package client

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a failure into the closed set of domain error kinds.
type Kind string

const (
	// KindUnauthorized means the API key was rejected (401).
	KindUnauthorized Kind = "unauthorized"

	// KindForbidden means the key lacks access to the endpoint (403).
	KindForbidden Kind = "forbidden"

	// KindNotFound means the requested resource does not exist (404).
	KindNotFound Kind = "not_found"

	// KindRateLimited means the per-second request rate was exceeded (429).
	KindRateLimited Kind = "rate_limited"

	// KindQuotaExceeded means a daily or concurrent request quota was hit (429).
	KindQuotaExceeded Kind = "quota_exceeded"

	// KindValidationFailed means the request parameters were rejected (400).
	KindValidationFailed Kind = "validation_failed"

	// KindServerError means the upstream reported an internal error (500).
	KindServerError Kind = "server_error"

	// KindServiceUnavailable means the upstream is down or in maintenance (503).
	KindServiceUnavailable Kind = "service_unavailable"

	// KindGatewayTimeout means the upstream gateway timed out (504).
	KindGatewayTimeout Kind = "gateway_timeout"

	// KindConnectionFailed means the transport failed before a response
	// arrived, or an intermediate gateway failed (502).
	KindConnectionFailed Kind = "connection_failed"

	// KindUnknown is the fallback for unclassifiable failures.
	KindUnknown Kind = "unknown"
)

// Detail values refine a Kind. Not every Kind carries a detail.
const (
	// Unauthorized details
	DetailKeyExpired = "expired"
	DetailKeyMissing = "missing"

	// NotFound details
	DetailCharacter = "character"
	DetailGuild     = "guild"
	DetailRanking   = "ranking"
	DetailResource  = "resource"

	// QuotaExceeded details
	DetailDailyQuota      = "daily"
	DetailConcurrentQuota = "concurrent"

	// ServiceUnavailable details
	DetailMaintenance = "maintenance"
	DetailGeneric     = "generic"

	// ConnectionFailed details
	DetailTimeout = "timeout"
	DetailNetwork = "network"
	DetailGateway = "gateway"
)

// APIError is the typed, classified representation of a failure. It replaces
// raw transport errors at the facade boundary and is immutable once
// constructed.
type APIError struct {
	Kind       Kind
	Detail     string
	Message    string
	HTTPStatus int
	Field      string
	Retryable  bool
	Context    map[string]string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		fmt.Fprintf(&b, "/%s", e.Detail)
	}
	if e.HTTPStatus > 0 {
		fmt.Fprintf(&b, " (status %d)", e.HTTPStatus)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable is the single source of truth for which error classes may be
// re-attempted. Both the retry controller and callers consult it.
func Retryable(kind Kind, detail string) bool {
	switch kind {
	case KindServerError, KindRateLimited, KindGatewayTimeout:
		return true
	case KindQuotaExceeded:
		// A concurrent-request quota clears on its own; a daily quota
		// does not.
		return detail == DetailConcurrentQuota
	case KindConnectionFailed:
		// A failing gateway (502) tends to stay failing; timeouts and
		// transient network errors are worth another attempt.
		return detail == DetailTimeout || detail == DetailNetwork
	default:
		return false
	}
}

// messageFor returns the stable, human-readable message template for a
// classification. Messages are independent of upstream wording so callers
// get consistent guidance.
func messageFor(kind Kind, detail string) string {
	switch kind {
	case KindUnauthorized:
		switch detail {
		case DetailKeyExpired:
			return "the API key has expired; issue a new key"
		case DetailKeyMissing:
			return "no API key was provided; set an API key"
		}
		return "the API key was rejected; check that it is valid"
	case KindForbidden:
		return "the API key does not permit access to this endpoint"
	case KindNotFound:
		switch detail {
		case DetailCharacter:
			return "no character with that name was found; check the spelling and world"
		case DetailGuild:
			return "no guild with that name was found; check the spelling and world"
		case DetailRanking:
			return "no ranking data was found for the given criteria"
		}
		return "the requested resource was not found"
	case KindRateLimited:
		return "the request rate limit was exceeded; wait briefly before retrying"
	case KindQuotaExceeded:
		if detail == DetailConcurrentQuota {
			return "too many requests are in flight; wait for pending requests to finish"
		}
		return "the daily request quota is exhausted; wait until the quota resets"
	case KindValidationFailed:
		return "the request parameters were rejected"
	case KindServerError:
		return "the upstream service reported an internal error"
	case KindServiceUnavailable:
		if detail == DetailMaintenance {
			return "the upstream service is under maintenance; try again later"
		}
		return "the upstream service is temporarily unavailable"
	case KindGatewayTimeout:
		return "the upstream gateway timed out waiting for a response"
	case KindConnectionFailed:
		switch detail {
		case DetailTimeout:
			return "the request timed out before a response arrived"
		case DetailGateway:
			return "an upstream gateway failed to relay the request"
		}
		return "the connection to the upstream service failed"
	}
	return "an unexpected error occurred"
}

// newError builds an APIError with its message and retryability filled from
// the policy tables.
func newError(kind Kind, detail string, status int, context map[string]string) *APIError {
	return &APIError{
		Kind:       kind,
		Detail:     detail,
		Message:    messageFor(kind, detail),
		HTTPStatus: status,
		Retryable:  Retryable(kind, detail),
		Context:    context,
	}
}

// sensitiveParam matches parameter and context names whose values must not
// appear in logs or serialized errors.
var sensitiveParam = regexp.MustCompile(`(?i)key|token|secret|password|authorization`)

// redacted is the placeholder substituted for sensitive values.
const redacted = "[redacted]"

// redactParams copies params with sensitive values masked. The copy also
// keeps error context detached from caller-owned maps.
func redactParams(params map[string]string) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if sensitiveParam.MatchString(k) {
			out[k] = redacted
			continue
		}
		out[k] = v
	}
	return out
}

// errorContext builds the diagnostic context attached to classified errors.
func errorContext(endpoint string, params map[string]string) map[string]string {
	ctx := map[string]string{"endpoint": endpoint}
	for k, v := range redactParams(params) {
		ctx["param_"+k] = v
	}
	return ctx
}
