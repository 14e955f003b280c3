package providers

import (
	"net/http"
	"strings"
)

var statusMarkers = []struct {
	marker string
	status int
}{
	{"429", http.StatusTooManyRequests},
	{"500", http.StatusInternalServerError},
	{"502", http.StatusBadGateway},
	{"503", http.StatusServiceUnavailable},
	{"504", http.StatusGatewayTimeout},
	{"529", http.StatusServiceUnavailable}, // anthropic "overloaded"
	{"401", http.StatusUnauthorized},
	{"403", http.StatusForbidden},
	{"400", http.StatusBadRequest},
	{"402", http.StatusPaymentRequired},
}

// extractErrorMetadata pulls an HTTP status and Retry-After value out of an
// SDK error message. Both SDKs only expose these through the error text.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	errStr := err.Error()
	var httpStatus int
	for _, m := range statusMarkers {
		if strings.Contains(errStr, m.marker) {
			httpStatus = m.status
			break
		}
	}

	var retryAfter string
	lower := strings.ToLower(errStr)
	for _, key := range []string{"retry-after", "retry after"} {
		if idx := strings.Index(lower, key); idx != -1 {
			parts := strings.Fields(strings.TrimLeft(errStr[idx+len(key):], ": "))
			if len(parts) > 0 {
				retryAfter = parts[0]
			}
			break
		}
	}

	return httpStatus, retryAfter
}
