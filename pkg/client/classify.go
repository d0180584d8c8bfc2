package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// upstreamErrorBody is the JSON error envelope the Nexon Open API returns.
type upstreamErrorBody struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// upstreamMessage extracts a lowercased message from a response body,
// preferring the JSON error envelope over raw text.
func upstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope upstreamErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return strings.ToLower(envelope.Error.Message)
	}
	return strings.ToLower(string(body))
}

// Classify maps a raw transport outcome to a typed APIError. Rules are
// deterministic and order-sensitive: the first matching rule wins.
// transportErr is the error from a call that produced no HTTP response;
// when it is non-nil, status and body are ignored.
func Classify(status int, body []byte, endpoint string, params map[string]string, transportErr error) *APIError {
	context := errorContext(endpoint, params)

	if transportErr != nil {
		detail := DetailNetwork
		if isTimeout(transportErr) {
			detail = DetailTimeout
		}
		err := newError(KindConnectionFailed, detail, 0, context)
		err.Err = transportErr
		return err
	}

	msg := upstreamMessage(body)

	switch status {
	case http.StatusUnauthorized:
		detail := ""
		switch {
		case strings.Contains(msg, "expire"):
			detail = DetailKeyExpired
		case strings.Contains(msg, "missing"), strings.Contains(msg, "no api key"):
			detail = DetailKeyMissing
		}
		return newError(KindUnauthorized, detail, status, context)

	case http.StatusForbidden:
		return newError(KindForbidden, "", status, context)

	case http.StatusNotFound:
		// Some upstream outages surface as 404s with transient wording;
		// those are availability problems, not hard not-founds.
		if strings.Contains(msg, "unavailable") || strings.Contains(msg, "temporar") {
			return newError(KindServiceUnavailable, DetailGeneric, status, context)
		}
		return newError(KindNotFound, notFoundDetail(endpoint), status, context)

	case http.StatusTooManyRequests:
		switch {
		case strings.Contains(msg, "daily"):
			return newError(KindQuotaExceeded, DetailDailyQuota, status, context)
		case strings.Contains(msg, "concurrent"):
			return newError(KindQuotaExceeded, DetailConcurrentQuota, status, context)
		}
		return newError(KindRateLimited, "", status, context)

	case http.StatusBadRequest:
		if err := diagnoseBadRequest(params, context); err != nil {
			err.HTTPStatus = status
			return err
		}
		return newError(KindValidationFailed, "", status, context)

	case http.StatusInternalServerError:
		return newError(KindServerError, "", status, context)

	case http.StatusBadGateway:
		return newError(KindConnectionFailed, DetailGateway, status, context)

	case http.StatusServiceUnavailable:
		if strings.Contains(msg, "maintenance") {
			return newError(KindServiceUnavailable, DetailMaintenance, status, context)
		}
		return newError(KindServiceUnavailable, DetailGeneric, status, context)

	case http.StatusGatewayTimeout:
		return newError(KindGatewayTimeout, "", status, context)
	}

	return newError(KindUnknown, "", status, context)
}

// notFoundDetail picks the NotFound sub-kind from the endpoint identifier.
func notFoundDetail(endpoint string) string {
	switch {
	case strings.Contains(endpoint, "character"):
		return DetailCharacter
	case strings.Contains(endpoint, "guild"):
		return DetailGuild
	case strings.Contains(endpoint, "ranking"):
		return DetailRanking
	}
	return DetailResource
}

// isTimeout reports whether a transport error was a timeout rather than a
// generic network failure.
func isTimeout(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Timeout
	}
	type timeouter interface{ Timeout() bool }
	var to timeouter
	return errors.As(err, &to) && to.Timeout()
}
