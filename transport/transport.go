// Package transport wraps outgoing HTTP calls with persistent response
// caching, rate limiting and retry with backoff.
package transport

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"meteostations.app/config"
	"meteostations.app/metrics"
	"meteostations.app/pkg/errors"
	"meteostations.app/pkg/logger"
)

// CachePolicy selects the freshness window for a request class
type CachePolicy int

const (
	// CacheDefault behaves like CacheTimeSeries
	CacheDefault CachePolicy = iota
	// CacheCatalog is long-lived, for station and variable catalogs
	CacheCatalog
	// CacheTimeSeries is short-lived, for historical observation queries
	CacheTimeSeries
	// CacheDisabled skips the cache, for queries covering "now"
	CacheDisabled
)

// Request is one outgoing provider call
type Request struct {
	Method string // defaults to GET
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
	Policy CachePolicy
}

// Response is the payload handed back to the client layer
type Response struct {
	StatusCode  int
	Body        []byte
	FromCache   bool
	Fingerprint string
}

// Options configures a CachedTransport
type Options struct {
	Provider          string
	Client            *http.Client
	Store             Store
	Strategy          Strategy
	Logger            *logger.Logger
	CatalogTTL        time.Duration
	TimeSeriesTTL     time.Duration
	MaxRetries        int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Strategy is the auth capability applied immediately before a network send
type Strategy interface {
	Sign(ctx context.Context, req *http.Request) error
	SecretParams() []string
}

// CachedTransport sends provider requests through a response cache with
// rate limiting and retried, backed-off sends. One instance serves one
// provider; independent instances share no mutable state.
type CachedTransport struct {
	provider string
	client   *http.Client
	store    Store
	strategy Strategy
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	metrics  *metrics.TransportMetrics
	log      *logger.Logger

	catalogTTL     time.Duration
	tsTTL          time.Duration
	maxRetries     int
	backoffInitial time.Duration
	backoffMax     time.Duration
}

func New(opts Options) *CachedTransport {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Strategy == nil {
		opts.Strategy = noAuth{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.New()
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = 24 * time.Hour
	}
	if opts.TimeSeriesTTL <= 0 {
		opts.TimeSeriesTTL = 10 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 4
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = 500 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	return &CachedTransport{
		provider: opts.Provider,
		client:   opts.Client,
		store:    opts.Store,
		strategy: opts.Strategy,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Provider,
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		metrics:        metrics.NewTransportMetrics(opts.Provider),
		log:            opts.Logger.WithField("provider", opts.Provider),
		catalogTTL:     opts.CatalogTTL,
		tsTTL:          opts.TimeSeriesTTL,
		maxRetries:     opts.MaxRetries,
		backoffInitial: opts.BackoffInitial,
		backoffMax:     opts.BackoffMax,
	}
}

// NewFromConfig builds a transport for one provider from library config
func NewFromConfig(provider string, cfg *config.Config, store Store, strategy Strategy, log *logger.Logger) *CachedTransport {
	return New(Options{
		Provider:          provider,
		Client:            &http.Client{Timeout: cfg.Transport.Timeout},
		Store:             store,
		Strategy:          strategy,
		Logger:            log,
		CatalogTTL:        cfg.Cache.CatalogTTL,
		TimeSeriesTTL:     cfg.Cache.TimeSeriesTTL,
		MaxRetries:        cfg.Transport.MaxRetries,
		BackoffInitial:    cfg.Transport.BackoffInitial,
		BackoffMax:        cfg.Transport.BackoffMax,
		RequestsPerSecond: cfg.Transport.RequestsPerSecond,
		Burst:             cfg.Transport.Burst,
	})
}

type noAuth struct{}

func (noAuth) Sign(context.Context, *http.Request) error { return nil }
func (noAuth) SecretParams() []string                    { return nil }

// Send performs one provider call: cache lookup, then an auth-signed,
// rate-limited, retried network send whose successful response is stored
// back under the request fingerprint.
func (t *CachedTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, errors.NewTransportError(fmt.Sprintf("invalid request URL %q", req.URL), err)
	}
	if len(req.Query) > 0 {
		merged := u.Query()
		for key, values := range req.Query {
			for _, value := range values {
				merged.Add(key, value)
			}
		}
		u.RawQuery = merged.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	fp := fingerprint(method, u, req.Body, t.strategy.SecretParams())
	log := t.log.WithFields(map[string]interface{}{
		"request_id":  uuid.NewString(),
		"url":         u.Redacted(),
		"fingerprint": fp[:12],
	})

	if req.Policy != CacheDisabled {
		if entry, ok := t.store.Get(ctx, fp); ok {
			t.metrics.RecordCacheHit()
			log.Debug("cache hit", "age", time.Since(entry.RetrievedAt).String())
			return &Response{
				StatusCode:  entry.Status,
				Body:        entry.Body,
				FromCache:   true,
				Fingerprint: fp,
			}, nil
		}
		t.metrics.RecordCacheMiss()
	}

	resp, err := t.send(ctx, method, u, req, log)
	if err != nil {
		return nil, err
	}
	resp.Fingerprint = fp

	if ttl := t.ttlFor(req.Policy); ttl > 0 {
		now := time.Now()
		t.store.Set(ctx, &Entry{
			Fingerprint: fp,
			Status:      resp.StatusCode,
			Body:        resp.Body,
			RetrievedAt: now,
			ExpiresAt:   now.Add(ttl),
		})
	}
	return resp, nil
}

func (t *CachedTransport) ttlFor(policy CachePolicy) time.Duration {
	switch policy {
	case CacheCatalog:
		return t.catalogTTL
	case CacheDisabled:
		return 0
	default:
		return t.tsTTL
	}
}

// send loops over attempts: transient failures (connection errors, 429,
// 5xx) back off and retry; other HTTP failures and an open circuit
// propagate immediately.
func (t *CachedTransport) send(ctx context.Context, method string, u *url.URL, req *Request, log *logger.Logger) (*Response, error) {
	for attempt := 0; ; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, errors.NewTransportError("rate limiter wait canceled", err)
		}

		resp, retryable, err := t.once(ctx, method, u, req, log, attempt)
		if err == nil {
			return resp, nil
		}
		if !retryable || attempt >= t.maxRetries {
			return nil, err
		}

		t.metrics.RecordRetry()
		delay := t.backoffDelay(attempt)
		log.Warn("retrying request", "attempt", attempt+1, "delay", delay.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, errors.NewTransportError("canceled during backoff", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (t *CachedTransport) once(ctx context.Context, method string, u *url.URL, req *Request, log *logger.Logger, attempt int) (*Response, bool, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, false, errors.NewTransportError("build request", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	// sign each attempt: an OAuth strategy may need a token refresh
	if err := t.strategy.Sign(ctx, httpReq); err != nil {
		return nil, false, err
	}

	// 429 and 5xx are classified inside Execute so the breaker counts them
	// as failures and eventually opens against a struggling upstream
	start := time.Now()
	result, err := t.breaker.Execute(func() (interface{}, error) {
		httpResp, doErr := t.client.Do(httpReq)
		if doErr != nil {
			return nil, errors.NewTransportError(
				fmt.Sprintf("request failed after %d attempt(s)", attempt+1), doErr)
		}
		data, readErr := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		if readErr != nil {
			return nil, errors.NewTransportError("read response body", readErr)
		}
		sc := httpResp.StatusCode
		if sc == http.StatusTooManyRequests || sc >= 500 {
			return nil, errors.NewHTTPStatusError(
				fmt.Sprintf("%s returned status code %d (attempt %d)", u.Host, sc, attempt+1), sc)
		}
		return &Response{StatusCode: sc, Body: data}, nil
	})
	t.metrics.ObserveLatency(time.Since(start))

	if err != nil {
		t.metrics.RecordRequest("error")
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			// backing off attempt-by-attempt would just hammer an open
			// circuit; surface it immediately
			return nil, false, errors.NewTransportError("circuit breaker open", err)
		}
		return nil, true, err
	}

	resp := result.(*Response)
	if sc := resp.StatusCode; sc < 200 || sc >= 300 {
		t.metrics.RecordRequest("error")
		return nil, false, errors.NewHTTPStatusError(
			fmt.Sprintf("%s returned status code %d", u.Host, sc), sc)
	}

	t.metrics.RecordRequest("success")
	log.Debug("request succeeded", "status", resp.StatusCode, "bytes", len(resp.Body))
	return resp, false, nil
}

// backoffDelay grows exponentially, capped and jittered into [d/2, d] to
// avoid synchronized retry storms across concurrent callers
func (t *CachedTransport) backoffDelay(attempt int) time.Duration {
	d := t.backoffInitial << uint(attempt)
	if d > t.backoffMax || d <= 0 {
		d = t.backoffMax
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
