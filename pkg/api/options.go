package api

import (
	"context"
	"mwdb/pkg/logger"
	"mwdb/pkg/metrics"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAPIURL points to the public MWDB instance run by CERT.PL.
	DefaultAPIURL = "https://mwdb.cert.pl/api/"
	// DefaultMaxDowntimeRetries is the number of retries made on connection errors or 502/504.
	DefaultMaxDowntimeRetries = 5
	// DefaultDowntimeTimeout is the first pause before retrying a request that failed due to downtime.
	DefaultDowntimeTimeout = 10 * time.Second
	// DefaultRetryAfter is used when a 429 response carries no Retry-After header.
	DefaultRetryAfter = 60 * time.Second
	// MaxDowntimeDelay caps the growing pause between downtime retries.
	MaxDowntimeDelay = 5 * time.Minute
)

// Options contains the settings of an API client. Start from DefaultOptions
// to get the same behavior as the reference Python client.
type Options struct {
	// APIURL is the MWDB REST API root, e.g. https://mwdb.cert.pl/api/
	APIURL string
	// APIKey authenticates with a long-lived API key.
	APIKey string
	// Username and Password authenticate with a short-lived session. The
	// password is kept in memory so expired sessions can be renewed.
	Username string
	Password string
	// Insecure disables TLS certificate verification.
	Insecure bool
	// ObeyRateLimiter pauses and retries on 429 Too Many Requests instead of failing.
	ObeyRateLimiter bool
	// RetryOnDowntime retries requests that failed with a connection error or 502/504.
	RetryOnDowntime bool
	// MaxDowntimeRetries limits the number of downtime retries.
	MaxDowntimeRetries int
	// DowntimeTimeout is the first pause between downtime retries; it doubles on every retry.
	DowntimeTimeout time.Duration
	// RetryIdempotent allows downtime retries of POST requests as well.
	RetryIdempotent bool
	// RequestsPerSecond throttles outgoing requests on the client side; 0 disables throttling.
	RequestsPerSecond float64
	// Timeout bounds a single HTTP round trip; 0 means no timeout.
	Timeout time.Duration
	// HTTPClient overrides the HTTP client. Insecure and Timeout are ignored when set.
	HTTPClient *http.Client
	// Metrics, when set, records requests and retries.
	Metrics *metrics.Metrics
	// Sleep pauses before a retry. The default honors ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns the options used by the CLI and by callers that do
// not need anything special.
func DefaultOptions() Options {
	return Options{
		APIURL:             DefaultAPIURL,
		ObeyRateLimiter:    true,
		MaxDowntimeRetries: DefaultMaxDowntimeRetries,
		DowntimeTimeout:    DefaultDowntimeTimeout,
		RetryIdempotent:    true,
	}
}

// NormalizeAPIURL makes sure the API URL ends with a slash so relative
// endpoints resolve beneath it. URLs not ending with /api/ are accepted with a
// warning since they usually point to the web application.
func NormalizeAPIURL(ctx context.Context, apiURL string) string {
	if apiURL == "" {
		return DefaultAPIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	if !strings.HasSuffix(apiURL, "/api/") {
		logger.Warn(ctx, "api url does not end with /api/, make sure it points to the MWDB REST API",
			zap.String("apiUrl", apiURL))
	}

	return apiURL
}
