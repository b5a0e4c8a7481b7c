package api

import (
	"net/netip"

	"github.com/okian/wpmrank/pkg/logger"
)

// Defaults for Server options.
const (
	DefaultMaxBodyBytes   = 1 << 20
	DefaultRateLimitRPS   = 5
	DefaultRateLimitBurst = 10
)

type options struct {
	logger         logger.Logger
	maxBodyBytes   int64
	rateLimitRPS   float64
	rateLimitBurst int
	corsOrigins    []string
	trustedProxies []netip.Prefix
}

func defaultOptions() options {
	return options{
		logger:         logger.Nop(),
		maxBodyBytes:   DefaultMaxBodyBytes,
		rateLimitRPS:   DefaultRateLimitRPS,
		rateLimitBurst: DefaultRateLimitBurst,
		corsOrigins:    []string{"*"},
	}
}

// Option applies a configuration option to the Server.
type Option func(*options)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxBodyBytes bounds the size of a submission body.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithRateLimit sets the per-client submission rate. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rateLimitRPS = rps
		if burst > 0 {
			o.rateLimitBurst = burst
		}
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(o *options) {
		if len(origins) > 0 {
			o.corsOrigins = origins
		}
	}
}

// WithTrustedProxies lists the proxies whose X-Forwarded-For header names the
// client for rate limiting. Without any, the header is ignored.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(o *options) {
		o.trustedProxies = prefixes
	}
}
