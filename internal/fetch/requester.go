package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"gleaner/internal/logging"
)

// RetryPolicy bounds the retry loop for one source.
type RetryPolicy struct {
	MaxAttempts int
	Floor       time.Duration
	Cap         time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Floor <= 0 {
		p.Floor = time.Second
	}
	if p.Cap < p.Floor {
		p.Cap = p.Floor
	}
	return p
}

// RetryDelay returns the backoff before retry n (1-based): the policy floor
// doubled per prior retry, capped.
func RetryDelay(policy RetryPolicy, retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := policy.Floor
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= policy.Cap {
			return policy.Cap
		}
	}
	if delay > policy.Cap {
		delay = policy.Cap
	}
	return delay
}

// BreakerSettings tunes the circuit breaker for one source. Zero fields fall
// back to conservative defaults.
type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	Window       time.Duration
	Cooldown     time.Duration
}

// Requester executes HTTP calls against one upstream source with adaptive
// pacing, bounded retries, an optional hard rate ceiling, and an optional
// circuit breaker.
type Requester struct {
	source          string
	pacer           *Pacer
	policy          RetryPolicy
	ceiling         *rate.Limiter
	breaker         *gobreaker.CircuitBreaker[*http.Response]
	breakerSettings *BreakerSettings
	logger          *slog.Logger
	sleep           func(context.Context, time.Duration) error
}

// RequesterOption configures a Requester.
type RequesterOption func(*Requester)

// WithLogger routes retry and breaker events to logger.
func WithLogger(logger *slog.Logger) RequesterOption {
	return func(r *Requester) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCeiling enforces a hard requests-per-second ceiling in front of the
// adaptive pacer.
func WithCeiling(perSecond float64) RequesterOption {
	return func(r *Requester) {
		if perSecond > 0 {
			r.ceiling = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithBreaker opens the source when the failure ratio over the sampling
// window crosses the configured threshold.
func WithBreaker(settings BreakerSettings) RequesterOption {
	return func(r *Requester) {
		r.breakerSettings = &settings
	}
}

// NewRequester returns a requester for one upstream source sharing the given
// pacer.
func NewRequester(source string, pacer *Pacer, policy RetryPolicy, opts ...RequesterOption) *Requester {
	if pacer == nil {
		pacer = NewPacer(0, 0)
	}
	r := &Requester{
		source: source,
		pacer:  pacer,
		policy: policy.normalized(),
		logger: logging.NewNop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breakerSettings != nil {
		r.breaker = newBreaker(r.source, *r.breakerSettings, r.logger)
	}
	return r
}

// Do runs fn until it succeeds, fails permanently, or attempts are
// exhausted. Responses with retryable statuses are drained and closed here;
// a returned response is the caller's to close.
func (r *Requester) Do(ctx context.Context, endpoint string, fn func(context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := RetryDelay(r.policy, attempt-1)
			r.logger.Debug("retrying request",
				logging.String("source", r.source),
				logging.String("endpoint", endpoint),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay))
			if err := r.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := r.pacer.Acquire(ctx); err != nil {
			return nil, err
		}
		if r.ceiling != nil {
			if err := r.ceiling.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := r.execute(ctx, endpoint, fn)
		if err == nil {
			r.pacer.Reward()
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermanent) {
			return nil, err
		}
		lastErr = err
	}
	return nil, Wrap(ErrTransient, r.source, endpoint,
		fmt.Sprintf("retries exhausted after %d attempts", r.policy.MaxAttempts), lastErr)
}

func (r *Requester) execute(ctx context.Context, endpoint string, fn func(context.Context) (*http.Response, error)) (*http.Response, error) {
	call := func() (*http.Response, error) {
		return r.roundTrip(ctx, endpoint, fn)
	}
	if r.breaker == nil {
		return call()
	}
	resp, err := r.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, Wrap(ErrTransient, r.source, endpoint, "circuit open", err)
	}
	return resp, err
}

func (r *Requester) roundTrip(ctx context.Context, endpoint string, fn func(context.Context) (*http.Response, error)) (*http.Response, error) {
	resp, err := fn(ctx)
	if err != nil {
		return nil, Wrap(ErrTransient, r.source, endpoint, "request failed", err)
	}
	marker := ClassifyStatus(resp.StatusCode)
	if marker == nil {
		return resp, nil
	}
	code := resp.StatusCode
	drain(resp)
	if code == http.StatusTooManyRequests {
		r.pacer.Throttle()
		r.logger.Warn("throttled by source",
			logging.String("source", r.source),
			logging.String("endpoint", endpoint),
			logging.Duration("delay", r.pacer.Delay()))
	}
	return nil, Wrap(marker, r.source, endpoint, fmt.Sprintf("status %d", code), nil)
}

func newBreaker(source string, settings BreakerSettings, logger *slog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	if settings.MinRequests == 0 {
		settings.MinRequests = 10
	}
	if settings.FailureRatio <= 0 || settings.FailureRatio > 1 {
		settings.FailureRatio = 0.6
	}
	if settings.Window <= 0 {
		settings.Window = time.Minute
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 2 * time.Minute
	}
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        source,
		MaxRequests: 3,
		Interval:    settings.Window,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.String("source", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermanent)
		},
	})
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
