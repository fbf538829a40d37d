package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/joelkehle/patentos/internal/metrics"
)

const (
	DefaultCallTimeout = 60 * time.Second
	DefaultMaxAttempts = 3
)

var statusCodeRe = regexp.MustCompile(`(?:status(?:\s+code)?[:=\s]+)(\d{3})`)

var tracer = otel.Tracer("github.com/joelkehle/patentos/internal/gateway")

// Request is one provider call. When Schema is set the provider must return
// JSON matching it.
type Request struct {
	Prompt string
	Schema *Schema
}

// Provider is a single model backend. Implementations only translate the
// request; retries, timeouts and classification live in Client.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return fmt.Sprintf("status %d: %v", e.Code, e.Err) }
func (e *StatusError) Unwrap() error { return e.Err }

type failureClass int

const (
	failureNone failureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

func (c failureClass) String() string {
	switch c {
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	default:
		return "none"
	}
}

// Client implements Gateway on top of a Provider.
type Client struct {
	provider    Provider
	logger      *zap.Logger
	callTimeout time.Duration
	maxAttempts int
	backoff     func(attempt int) time.Duration
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff overrides the delay between transient-failure retries.
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(c *Client) {
		if f != nil {
			c.backoff = f
		}
	}
}

func NewClient(p Provider, opts ...Option) *Client {
	c := &Client{
		provider:    p,
		logger:      zap.NewNop(),
		callTimeout: DefaultCallTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoff:     backoffDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Provider() string { return c.provider.Name() }
func (c *Client) Model() string    { return c.provider.Model() }

// GenerateRecords asks for a JSON array matching schema. An empty response
// yields zero records; an unparsable one yields a parse error.
func (c *Client) GenerateRecords(ctx context.Context, prompt string, schema *Schema) ([]any, error) {
	raw, err := c.call(ctx, "records", Request{Prompt: prompt, Schema: schema})
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(raw)
	if err != nil {
		c.logger.Warn("gateway_parse_error",
			zap.String("provider", c.provider.Name()),
			zap.Int("response_chars", len(raw)),
			zap.Error(err))
		metrics.GatewayCalls.WithLabelValues(c.provider.Name(), "records", "parse_error").Inc()
		return nil, newError(KindParse, "generate_records", err)
	}
	return records, nil
}

// GenerateText returns the model's free-form answer.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, "text", Request{Prompt: prompt})
}

func (c *Client) call(ctx context.Context, kind string, req Request) (string, error) {
	name := c.provider.Name()
	ctx, span := tracer.Start(ctx, "gateway."+kind)
	defer span.End()
	span.SetAttributes(
		attribute.String("gen_ai.system", name),
		attribute.String("gen_ai.request.model", c.provider.Model()),
		attribute.Int("prompt_chars", len(req.Prompt)),
	)

	started := time.Now()
	defer func() {
		metrics.GatewayLatency.WithLabelValues(name, kind).Observe(time.Since(started).Seconds())
	}()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attemptStart := time.Now()
		c.logger.Debug("gateway_attempt_start", zap.String("provider", name), zap.String("kind", kind), zap.Int("attempt", attempt))

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		out, err := c.provider.Complete(callCtx, req)
		cancel()
		if err == nil {
			c.logger.Debug("gateway_attempt_success",
				zap.String("provider", name),
				zap.String("kind", kind),
				zap.Int("attempt", attempt),
				zap.Int64("elapsed_ms", time.Since(attemptStart).Milliseconds()),
				zap.Int("response_chars", len(out)))
			span.SetAttributes(attribute.Int("attempts", attempt))
			metrics.GatewayCalls.WithLabelValues(name, kind, "ok").Inc()
			return out, nil
		}

		class := classifyTransportError(err)
		c.logger.Warn("gateway_attempt_transport_error",
			zap.String("provider", name),
			zap.String("kind", kind),
			zap.Int("attempt", attempt),
			zap.Stringer("class", class),
			zap.Int64("elapsed_ms", time.Since(attemptStart).Milliseconds()),
			zap.Error(err))
		retryable := class == failureTimeout || class == failureRateLimit || class == failureServer
		if retryable && attempt < c.maxAttempts && ctx.Err() == nil {
			if !sleep(ctx, c.backoff(attempt)) {
				err = ctx.Err()
			} else {
				continue
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, class.String())
		metrics.GatewayCalls.WithLabelValues(name, kind, "transport_error").Inc()
		return "", newError(KindTransport, kind, err)
	}
	return "", newError(KindTransport, kind, errors.New("failed after retries"))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func classifyTransportError(err error) failureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.Code)
	}
	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindStringSubmatch(msg); len(m) == 2 {
		switch {
		case m[1] == "429":
			return failureRateLimit
		case strings.HasPrefix(m[1], "5"):
			return failureServer
		case strings.HasPrefix(m[1], "4"):
			return failureClient
		}
	}
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "resource exhausted"):
		return failureRateLimit
	case strings.Contains(msg, "server error"), strings.Contains(msg, "unavailable"):
		return failureServer
	case errors.Is(err, context.Canceled):
		return failureClient
	default:
		return failureServer
	}
}

func classifyStatus(code int) failureClass {
	switch {
	case code == 408:
		return failureTimeout
	case code == 429:
		return failureRateLimit
	case code >= 500:
		return failureServer
	case code >= 400:
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 1 * time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}
