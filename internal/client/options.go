package client

import (
	"crypto/tls"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type options struct {
	credentials    CredentialProvider
	tlsConfig      *tls.Config
	userAgent      string
	timeout        time.Duration
	retries        int
	retryWait      time.Duration
	rateLimit      rate.Limit
	rateBurst      int
	logger         *zap.SugaredLogger
	transport      http.RoundTripper
	tracerProvider trace.TracerProvider
}

func newOptions(opts ...Option) (*options, error) {
	o := &options{
		userAgent: "sitegrid-client",
		timeout:   30 * time.Second,
		retries:   2,
		retryWait: 500 * time.Millisecond,
		rateLimit: rate.Inf,
		rateBurst: 1,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

type Option func(o *options) error

// WithCredentials sets the provider of the bearer token attached to every request.
func WithCredentials(credentials CredentialProvider) Option {
	return func(o *options) error {
		o.credentials = credentials
		return nil
	}
}

func WithBearerToken(
	bearerToken string,
) Option {
	return WithCredentials(NewStaticCredentials(bearerToken))
}

func WithUserAgent(
	userAgent string,
) Option {
	return func(o *options) error {
		o.userAgent = userAgent
		return nil
	}
}

func WithTLSConfig(
	config *tls.Config,
) Option {
	return func(o *options) error {
		o.tlsConfig = config
		return nil
	}
}

// WithTimeout bounds each request, including reading the response body.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout < 0 {
			return errInvalidOption("timeout", timeout)
		}
		o.timeout = timeout
		return nil
	}
}

// WithRetries sets how many times an idempotent request is retried after a
// transport failure, waiting wait between attempts.
func WithRetries(retries int, wait time.Duration) Option {
	return func(o *options) error {
		if retries < 0 {
			return errInvalidOption("retries", retries)
		}
		o.retries = retries
		o.retryWait = wait
		return nil
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) error {
		if rps <= 0 {
			o.rateLimit = rate.Inf
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		o.rateLimit = rate.Limit(rps)
		o.rateBurst = burst
		return nil
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTransport replaces the base round tripper, e.g. with an httptest server's.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) error {
		o.transport = transport
		return nil
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		o.tracerProvider = tp
		return nil
	}
}
