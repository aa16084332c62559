// Package ghapi talks to the GitHub commit search, commit detail and raw file
// endpoints, rotating credentials and retrying according to a fixed policy.
package ghapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v68/github"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/repairharvest/internal/observability"
	"github.com/Sumatoshi-tech/repairharvest/pkg/credential"
)

// ErrNoRotator is returned when a client is created without a credential rotator.
var ErrNoRotator = errors.New("ghapi: credential rotator is required")

// Defaults for zero-valued options.
const (
	DefaultRawURL    = "https://raw.githubusercontent.com/"
	DefaultPerPage   = 100
	DefaultTimeout   = 30 * time.Second
	DefaultCacheSize = 256

	tracerName = "repairharvest"
)

// Endpoint names used in logs, spans and metrics.
const (
	EndpointSearch = "search"
	EndpointCommit = "commit"
	EndpointRaw    = "raw"
)

// RetryPolicy controls how failed requests are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after a transient failure before giving up.
	MaxRetries int
	// Delay is the pause between transient retries.
	Delay time.Duration
	// RotateDelay is the pause after switching to the next credential.
	RotateDelay time.Duration
	// Cooldown is the pause once every credential has been rate limited.
	Cooldown time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		Delay:       3 * time.Second,
		RotateDelay: time.Second,
		Cooldown:    time.Hour,
	}
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Client.
type Options struct {
	Rotator *credential.Rotator

	// APIURL overrides the REST API base URL. Empty means api.github.com.
	APIURL string
	// RawURL is the raw file content base URL.
	RawURL  string
	PerPage int
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests. Zero or less disables pacing.
	RequestsPerSecond float64
	// CacheSize bounds the file snapshot cache. Zero or less disables it.
	CacheSize int

	Retry RetryPolicy

	// HTTPClient is the base client for every request. Nil uses http.DefaultClient's transport.
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics *observability.HarvestMetrics
	Tracer  trace.Tracer
	Sleep   SleepFunc
	// Cooldown is told when the pool starts and stops cooling down. Optional.
	Cooldown *observability.CooldownTracker
}

// Client issues GitHub requests through the credential rotator.
type Client struct {
	rotator *credential.Rotator
	apiURL  *url.URL
	rawURL  string
	perPage int
	timeout time.Duration
	base    *http.Client
	raw     *http.Client
	limiter *rate.Limiter
	cache   *lru.Cache[string, Snapshot]
	retry   RetryPolicy
	logger  *slog.Logger
	metrics *observability.HarvestMetrics
	tracer  trace.Tracer
	sleep   SleepFunc
	cooling *observability.CooldownTracker

	mu      sync.Mutex
	clients map[int]*github.Client
}

// New creates a client, filling zero options with defaults.
func New(opts Options) (*Client, error) {
	if opts.Rotator == nil {
		return nil, ErrNoRotator
	}

	c := &Client{
		rotator: opts.Rotator,
		rawURL:  withDefault(opts.RawURL, DefaultRawURL),
		perPage: opts.PerPage,
		timeout: opts.Timeout,
		base:    opts.HTTPClient,
		retry:   opts.Retry,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		sleep:   opts.Sleep,
		cooling: opts.Cooldown,
		clients: make(map[int]*github.Client),
	}

	if c.perPage <= 0 {
		c.perPage = DefaultPerPage
	}

	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}

	if c.base == nil {
		c.base = &http.Client{}
	}

	if c.retry == (RetryPolicy{}) {
		c.retry = DefaultRetryPolicy()
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	if c.sleep == nil {
		c.sleep = sleepContext
	}

	if opts.APIURL != "" {
		u, err := url.Parse(ensureTrailingSlash(opts.APIURL))
		if err != nil {
			return nil, fmt.Errorf("parse api url: %w", err)
		}

		c.apiURL = u
	}

	c.limiter = rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, Snapshot](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create snapshot cache: %w", err)
		}

		c.cache = cache
	}

	c.raw = &http.Client{Transport: c.base.Transport, Timeout: c.timeout}

	return c, nil
}

// apiClient returns the go-github client bound to the active credential.
// Each credential gets its own client because go-github tracks rate limit
// state per client.
func (c *Client) apiClient() *github.Client {
	idx, token := c.rotator.Active()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gh, ok := c.clients[idx]; ok {
		return gh
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = c.timeout

	gh := github.NewClient(httpClient)
	if c.apiURL != nil {
		u := *c.apiURL
		gh.BaseURL = &u
	}

	c.clients[idx] = gh

	return gh
}

// attemptFunc performs one request with the active credential.
type attemptFunc func(ctx context.Context) Outcome

// do runs attempt under the retry policy. A rate limit rotates credentials
// and retries without bound; a transient failure is retried MaxRetries times.
// The returned error is non-nil only when ctx ends.
func (c *Client) do(ctx context.Context, endpoint string, attempt attemptFunc, attrs ...attribute.KeyValue) (Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "repairharvest.github."+endpoint, trace.WithAttributes(attrs...))
	defer span.End()

	failures := 0

	for {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return TransientFailure, c.endSpan(span, err)
		}

		start := time.Now()
		outcome := attempt(ctx)

		ctxErr := ctx.Err()
		if ctxErr != nil {
			return TransientFailure, c.endSpan(span, ctxErr)
		}

		c.metrics.RecordRequest(ctx, endpoint, outcome.String(), time.Since(start))

		switch outcome {
		case OK, Empty:
			c.rotator.MarkSuccess()
			span.SetAttributes(attribute.String("github.outcome", outcome.String()))

			return outcome, nil

		case RateLimited:
			err = c.rotate(ctx, endpoint)

		default:
			failures++
			if failures > c.retry.MaxRetries {
				c.logger.WarnContext(ctx, "request abandoned",
					"endpoint", endpoint, "attempts", failures)
				span.SetAttributes(attribute.String("github.outcome", TransientFailure.String()))

				return TransientFailure, nil
			}

			c.logger.DebugContext(ctx, "transient failure, retrying",
				"endpoint", endpoint, "attempt", failures, "delay", c.retry.Delay)
			err = c.sleep(ctx, c.retry.Delay)
		}

		if err != nil {
			return outcome, c.endSpan(span, err)
		}
	}
}

// rotate switches to the next credential and waits; after a full cycle it
// waits for the cooldown instead.
func (c *Client) rotate(ctx context.Context, endpoint string) error {
	wrapped := c.rotator.Rotate()
	c.metrics.RecordRotation(ctx, wrapped)

	if wrapped {
		c.logger.WarnContext(ctx, "all credentials rate limited, cooling down",
			"endpoint", endpoint, "cooldown", c.retry.Cooldown, "credentials", c.rotator.Size())

		c.cooling.Start(c.retry.Cooldown)
		defer c.cooling.End()

		return c.sleep(ctx, c.retry.Cooldown)
	}

	c.logger.InfoContext(ctx, "rate limited, switched credential",
		"endpoint", endpoint, "credential", c.rotator.Index()+1, "credentials", c.rotator.Size())

	return c.sleep(ctx, c.retry.RotateDelay)
}

func (c *Client) endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}

	return s + "/"
}

func splitRepo(repo string) (string, string, bool) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}

	return owner, name, true
}
