package reliability

import "net/http"

// IsRetryableHTTPStatus classifies provider HTTP status codes a client could
// reasonably try again later.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// StatusClass buckets an HTTP status for the provider_errors metric label.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "transport"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "auth"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	case code >= 500:
		return "upstream"
	case code >= 400:
		return "client"
	default:
		return "ok"
	}
}
