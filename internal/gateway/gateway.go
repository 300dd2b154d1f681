package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// Sentinel errors for upstream outcomes. Their messages are exactly what the
// browser sees; upstream detail never leaks past this package.
var (
	ErrTimeout     = errors.New("external service timed out")
	ErrUnavailable = errors.New("service unavailable")
	ErrUpstream    = errors.New("external service error")
	ErrBadPayload  = errors.New("invalid response from external service")
)

// Client is the upstream fetch contract consumed by handlers and the icon
// service. Gateway is the production implementation.
type Client interface {
	FetchJSON(ctx context.Context, baseURL string, params url.Values) (map[string]any, error)
	FetchRaw(ctx context.Context, baseURL string, params url.Values) ([]byte, error)
}

// Gateway issues single-attempt GET calls to external providers with a connect
// timeout on the dialer and a response timeout on the whole exchange. It never
// retries; callers that want retries must layer them on top (none do here).
type Gateway struct {
	client *http.Client
	logger *zap.Logger
}

// New builds a Gateway. connectTimeout bounds the dial and TLS handshake;
// responseTimeout bounds the full request including body read and must be the
// larger of the two.
func New(connectTimeout, responseTimeout time.Duration, logger *zap.Logger) *Gateway {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Gateway{
		client: &http.Client{
			Timeout:   responseTimeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// FetchJSON performs one GET and decodes the response as a JSON object.
// Returns one of the sentinel errors on failure.
func (g *Gateway) FetchJSON(ctx context.Context, baseURL string, params url.Values) (map[string]any, error) {
	body, safeURL, provider, err := g.fetch(ctx, baseURL, params)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(provider, "bad_payload").Inc()
		g.logger.Warn("upstream returned unparseable payload", zap.String("url", safeURL))
		return nil, fmt.Errorf("GET %s: %w", safeURL, ErrBadPayload)
	}
	return payload, nil
}

// FetchRaw performs one GET and returns the raw response bytes. Used for icon
// assets where the body is not JSON.
func (g *Gateway) FetchRaw(ctx context.Context, baseURL string, params url.Values) ([]byte, error) {
	body, _, _, err := g.fetch(ctx, baseURL, params)
	return body, err
}

// fetch performs the single GET attempt and classifies transport-level
// outcomes. Returns the body plus the redacted URL and provider host for
// caller-side logging and metrics.
func (g *Gateway) fetch(ctx context.Context, baseURL string, params url.Values) ([]byte, string, string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, "", "", fmt.Errorf("invalid upstream URL: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	safeURL := redactURL(u)
	provider := u.Host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, image/svg+xml")

	start := time.Now()
	resp, err := g.client.Do(req)
	observability.UpstreamCallDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, "", "", g.classifyTransport(err, safeURL, provider)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		observability.UpstreamCallsTotal.WithLabelValues(provider, "http_error").Inc()
		g.logger.Warn("upstream returned error status",
			zap.String("url", safeURL),
			zap.Int("status", resp.StatusCode))
		return nil, "", "", fmt.Errorf("GET %s: status %d: %w", safeURL, resp.StatusCode, ErrUpstream)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", g.classifyTransport(err, safeURL, provider)
	}

	observability.UpstreamCallsTotal.WithLabelValues(provider, "success").Inc()
	return body, safeURL, provider, nil
}

// classifyTransport maps a transport error to ErrTimeout or ErrUnavailable and
// logs it against the redacted URL. The raw error is never logged or returned
// verbatim because url.Error strings embed the full query, API key included.
func (g *Gateway) classifyTransport(err error, safeURL, provider string) error {
	if isTimeout(err) {
		observability.UpstreamCallsTotal.WithLabelValues(provider, "timeout").Inc()
		g.logger.Warn("upstream timeout", zap.String("url", safeURL))
		return fmt.Errorf("GET %s: %w", safeURL, ErrTimeout)
	}
	observability.UpstreamCallsTotal.WithLabelValues(provider, "unavailable").Inc()
	g.logger.Warn("upstream unreachable", zap.String("url", safeURL))
	return fmt.Errorf("GET %s: %w", safeURL, ErrUnavailable)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// redactURL renders a URL for logs with the API key parameter masked.
func redactURL(u *url.URL) string {
	clone := *u
	q := clone.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
	}
	clone.RawQuery = q.Encode()
	return clone.String()
}

// Status maps a gateway error to the client-facing HTTP status code:
// 504 for timeouts, 502 for everything else, 200 for nil.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Message returns the stable client-facing message for a gateway error.
// Unrecognized errors collapse to the generic upstream message.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return ErrTimeout.Error()
	case errors.Is(err, ErrUnavailable):
		return ErrUnavailable.Error()
	case errors.Is(err, ErrBadPayload):
		return ErrBadPayload.Error()
	default:
		return ErrUpstream.Error()
	}
}
