package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/codewright/codewright/internal/chat"
	"github.com/codewright/codewright/internal/config"
)

const (
	defaultTimeout  = 120 * time.Second
	maxRetries      = 2
	maxBackoff      = 16 * time.Second
	breakerTrip     = 3
	breakerCooldown = 30 * time.Second
)

// Client wraps a dialect adapter with transport policy: per-request
// timeout, bounded retries with exponential backoff + jitter for transient
// errors, and a per-provider circuit breaker.
type Client struct {
	adapter adapter
	cfg     Config
	timeout time.Duration
	logger  *slog.Logger
	redact  *config.Redactor
	onDelta func(string)
	sleepFn func(context.Context, time.Duration) // for testing
	breaker *gobreaker.CircuitBreaker[*chat.ChatResponse]
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithStreamFunc enables streaming consumption: the adapter folds incoming
// chunks into one assembled response and fires fn per text delta. The Send
// contract is unchanged; streaming is a transport detail.
func WithStreamFunc(fn func(string)) Option {
	return func(c *Client) { c.onDelta = fn }
}

// WithSleepFunc overrides the retry sleep function (for testing).
func WithSleepFunc(fn func(context.Context, time.Duration)) Option {
	return func(c *Client) { c.sleepFn = fn }
}

// defaultSleep respects context cancellation.
func defaultSleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// NewClient builds a client for the given provider configuration.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	ad, err := newAdapter(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		adapter: ad,
		cfg:     cfg,
		timeout: defaultTimeout,
		logger:  slog.Default(),
		redact:  config.NewRedactor(),
		sleepFn: defaultSleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = c.newBreaker()
	return c, nil
}

// Config returns the provider configuration the client is bound to.
func (c *Client) Config() Config { return c.cfg }

// Send makes one chat turn call: the full history in, one assembled
// response out. Retries and circuit breaking are handled transparently.
func (c *Client) Send(ctx context.Context, req chat.ChatRequest) (*chat.ChatResponse, error) {
	resp, err := c.breaker.Execute(func() (*chat.ChatResponse, error) {
		return c.sendWithRetry(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ClassifiedError{
				Type:     ErrOverloaded,
				Provider: c.cfg.ID,
				Message:  fmt.Sprintf("circuit breaker open after repeated failures (cooldown %s)", breakerCooldown),
			}
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) sendWithRetry(ctx context.Context, req chat.ChatRequest) (*chat.ChatResponse, error) {
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.adapter.send(callCtx, req, c.onDelta)
		cancel()
		if err == nil {
			return resp, nil
		}

		// A timeout of the per-call context with the parent still live is a
		// transient transport failure, not a caller cancellation.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &ClassifiedError{Type: ErrNetwork, Provider: c.cfg.ID, Message: "request timed out after " + c.timeout.String()}
		}

		var classified *ClassifiedError
		if !errors.As(err, &classified) {
			return nil, err // context cancellation or programming error
		}
		if !classified.Retryable() || attempt >= maxRetries {
			return nil, classified
		}

		delay := retryDelay(classified, attempt)
		c.logger.Warn("retrying provider request",
			"provider", c.cfg.ID,
			"model", c.cfg.Model,
			"error_type", classified.Type.String(),
			"error", c.redact.Redact(classified.Message),
			"attempt", attempt+1,
			"delay", delay,
		)

		c.sleepFn(ctx, delay)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// retryDelay computes the wait before the next attempt: exponential backoff
// 1s, 2s, 4s capped, with Retry-After honored for rate limits.
func retryDelay(err *ClassifiedError, attempt int) time.Duration {
	if err.Type == ErrRateLimit && err.RetryAfter > 0 {
		return jitter(err.RetryAfter)
	}
	base := time.Second * time.Duration(1<<uint(attempt))
	if base > maxBackoff {
		base = maxBackoff
	}
	return jitter(base)
}

// jitter applies random jitter: delay * (0.5 + rand.Float64()).
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.5 + rand.Float64()))
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[*chat.ChatResponse] {
	return gobreaker.NewCircuitBreaker[*chat.ChatResponse](gobreaker.Settings{
		Name:        c.cfg.ID + "-" + c.cfg.Model,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Caller mistakes are not provider failures.
			var classified *ClassifiedError
			if !errors.As(err, &classified) {
				return true // context cancellation
			}
			switch classified.Type {
			case ErrAuth, ErrNotFound, ErrContextTooLong:
				return true
			default:
				return false
			}
		},
	})
}
