// Package svcclient is the HTTP client services use to call each other.
// Every call gets a client span, carries the W3C trace context and the
// caller's Authorization header, and runs through a circuit breaker per
// target service.
package svcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/circuitbreaker"
	"github.com/fjod/traced_shop/pkg/metrics"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

var ErrUnavailable = errors.New("service unavailable")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Target     string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Target, e.StatusCode, e.Message)
}

func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

type Config struct {
	Source  string
	Target  string
	BaseURL string
	Timeout time.Duration
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Breaker   *circuitbreaker.Config
	Logger    *zap.Logger
}

type Client struct {
	source  string
	target  string
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	bcfg := circuitbreaker.DefaultConfig(cfg.Target)
	if cfg.Breaker != nil {
		bcfg = *cfg.Breaker
	}

	transport := telemetry.Transport(cfg.Transport, cfg.Target)

	return &Client{
		source:  cfg.Source,
		target:  cfg.Target,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cb:      circuitbreaker.New[struct{}](bcfg, cfg.Logger, countsAsSuccess),
		log:     cfg.Logger,
	}
}

func (c *Client) Target() string { return c.target }

type authKey struct{}

// WithAuthorization sets the Authorization header for calls made with ctx,
// overriding the one taken from the authenticated user.
func WithAuthorization(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authKey{}, header)
}

func authorization(ctx context.Context) string {
	if h, ok := ctx.Value(authKey{}).(string); ok {
		return h
	}
	if u, ok := auth.UserFromContext(ctx); ok {
		return u.Authorization
	}
	return ""
}

// Do sends body as JSON and decodes the response into out when out is not nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, method, path, body, out)
	})
	if circuitbreaker.IsOpen(err) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, c.target, err)
	}
	return err
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h := authorization(ctx); h != "" {
		req.Header.Set("Authorization", h)
	}
	if id := middleware.GetReqID(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}
	req.Header.Set(metrics.SourceServiceHeader, c.source)
	req.Header.Set(metrics.TargetServiceHeader, c.target)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", method, c.target, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Target: c.target, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", c.target, err)
	}
	return nil
}

// readMessage pulls the "error" field out of a JSON error body, falling back
// to the raw text.
func readMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

// 4xx answers mean the target is healthy and said no. A caller hanging up
// says nothing about the target either.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode < 500
}
