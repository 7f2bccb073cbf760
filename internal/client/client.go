package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/sitegrid/sitegrid/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	tracerName      = "github.com/sitegrid/sitegrid/internal/client"
	maxResponseSize = 8 << 20
)

type RoundTripperFunc func(req *http.Request) (*http.Response, error)

func (fn RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

func errInvalidOption(name string, value any) error {
	return fmt.Errorf("invalid %s option: %v", name, value)
}

// Client is the HTTP gateway to the contractor invitation API.
type Client struct {
	logger  *zap.SugaredLogger
	options *options
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
}

func NewClient(addr string, options ...Option) (*Client, error) {
	opts, err := newOptions(options...)
	if err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid service url %q: http or https scheme required", addr)
	}
	if opts.credentials == nil {
		return nil, fmt.Errorf("no credentials provided")
	}

	c := &Client{
		options: opts,
		baseURL: baseURL,
		limiter: rate.NewLimiter(opts.rateLimit, opts.rateBurst),
	}

	if opts.logger != nil {
		c.logger = opts.logger
	} else {
		c.logger = zap.NewNop().Sugar()
	}

	tp := opts.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	c.tracer = tp.Tracer(tracerName)

	next := opts.transport
	if next == nil {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		next = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			TLSClientConfig:       opts.tlsConfig,
		}
	}
	c.client = &http.Client{
		Timeout: opts.timeout,
		Transport: RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			token, err := opts.credentials.Token()
			if err != nil {
				return nil, &Error{
					Kind:    KindUnauthenticated,
					Message: KindUnauthenticated.DefaultMessage(),
					Err:     err,
				}
			}
			token.SetAuthHeader(req)
			req.Header.Set("User-Agent", opts.userAgent)
			return next.RoundTrip(req)
		}),
	}
	return c, nil
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// idempotent requests are retried after transport failures.
	idempotent bool
}

// do runs the request, with retries when idempotent, and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, r request, out any) error {
	attempt := func() error {
		return c.doOnce(ctx, r, out)
	}
	if !r.idempotent || c.options.retries == 0 {
		return asError(attempt())
	}
	err := util.RetryOperationIf(ctx, c.options.retryWait, c.options.retries, isTransportFailure, attempt)
	return asError(err)
}

func (c *Client) doOnce(ctx context.Context, r request, out any) (rerr error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, r.method+" "+r.path, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if rerr != nil {
			span.SetAttributes(attribute.String("sitegrid.error_kind", KindOf(rerr).String()))
			span.SetStatus(codes.Error, Message(rerr))
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("http.method", r.method),
		attribute.String("url.path", r.path),
		attribute.String("sitegrid.request_id", requestID),
	)
	logger := util.WithTrace(ctx, c.logger).With("requestID", requestID)

	if err := c.limiter.Wait(ctx); err != nil {
		return newTransportError(err)
	}

	dest := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		dest.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return &Error{Kind: KindInvalidRequest, Message: KindInvalidRequest.DefaultMessage(), Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, dest.String(), body)
	if err != nil {
		return &Error{Kind: KindInvalidRequest, Message: KindInvalidRequest.DefaultMessage(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		logger.Debugw("request failed", "method", r.method, "path", r.path, "error", err)
		return asError(err)
	}
	defer util.IgnoreError(res.Body.Close)

	resBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return newTransportError(err)
	}
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))
	logger.Debugw("request completed",
		"method", r.method,
		"path", r.path,
		"status", res.StatusCode,
		"latency", time.Since(start),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr models.BaseError
		if strings.Contains(res.Header.Get("Content-Type"), "json") {
			_ = json.Unmarshal(resBody, &apiErr)
		}
		e := newStatusError(res.StatusCode, apiErr)
		if e.Kind == KindUnauthenticated {
			logger.Infow("credentials rejected, invalidating", "path", r.path)
			c.options.credentials.Invalidate()
		}
		return e
	}

	if out == nil || len(bytes.TrimSpace(resBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		logger.Debugw("undecodable response", "path", r.path, "body", string(resBody))
		return newTransportError(fmt.Errorf("decoding %s response: %w", r.path, err))
	}
	return nil
}
