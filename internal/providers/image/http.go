package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"posterstudio/internal/infra"
)

const (
	maxResponseBytes = 32 << 20
	maxErrorBodyLen  = 512
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPGenerator posts the rendered JSON template to the provider and decodes
// the response with the strategy chosen at construction.
type HTTPGenerator struct {
	endpoint   string
	authHeader string
	authValue  string
	template   *requestTemplate
	decoder    responseDecoder
	client     *http.Client
	timeout    time.Duration
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewHTTPGenerator validates the configuration without touching the network.
func NewHTTPGenerator(opts Options) (*HTTPGenerator, error) {
	opts = opts.withDefaults()
	if err := validateEndpoint(opts.APIURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("provider api key is required")
	}
	tpl, err := parseRequestTemplate(opts.RequestTemplate)
	if err != nil {
		return nil, err
	}
	mode, err := ParseResponseMode(opts.ResponseMode)
	if err != nil {
		return nil, err
	}
	g := &HTTPGenerator{
		endpoint:   strings.TrimSpace(opts.APIURL),
		authHeader: opts.AuthHeader,
		authValue:  strings.ReplaceAll(opts.AuthValueTemplate, "{{API_KEY}}", opts.APIKey),
		template:   tpl,
		client:     opts.HTTPClient,
		timeout:    opts.AttemptTimeout,
		retryDelay: opts.RetryDelay,
		logger:     infra.Component(opts.Logger, "image_provider"),
	}
	g.decoder = newResponseDecoder(mode, opts, g.fetch)
	g.logger.Info().Str("url", redactURL(g.endpoint)).Str("mode", string(mode)).Msg("image provider configured")
	return g, nil
}

// Generate makes one attempt and, unless the failure was a cancellation or
// timeout, exactly one more after the retry delay.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	res, err := g.attempt(ctx, req)
	if err == nil {
		return res, nil
	}
	if isCancellation(ctx, err) {
		return nil, err
	}
	g.logger.Warn().Err(err).Dur("delay", g.retryDelay).Msg("provider call failed, retrying once")

	timer := time.NewTimer(g.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return g.attempt(ctx, req)
}

func (g *HTTPGenerator) attempt(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := g.template.render(map[string]string{
		"PROMPT":              req.Prompt,
		"REFERENCE_IMAGE_URL": req.ReferenceImageURL,
		"ASPECT":              req.Aspect,
	})
	if err != nil {
		return nil, fmt.Errorf("render provider request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/*, application/json")
	if g.authHeader != "" {
		httpReq.Header.Set(g.authHeader, g.authValue)
	}

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", redactTransportError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}
	g.logger.Debug().
		Str("url", redactURL(g.endpoint)).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("provider call")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBodyLen)}
	}

	p, err := g.decoder.decode(ctx, resp.Header, data)
	if err != nil {
		return nil, err
	}
	width, height, err := decodeDimensions(p.data)
	if err != nil {
		return nil, err
	}
	return &Result{Data: p.data, ContentType: p.contentType, Width: width, Height: height}, nil
}

// fetch downloads the image a JSON response pointed at.
func (g *HTTPGenerator) fetch(ctx context.Context, rawURL string) (*payload, error) {
	if err := validateEndpoint(rawURL); err != nil {
		return nil, fmt.Errorf("provider image url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image download: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download provider image: %w", redactTransportError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read provider image: %w", err)
	}
	g.logger.Debug().Str("url", redactURL(rawURL)).Int("status", resp.StatusCode).Msg("provider image download")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBodyLen)}
	}
	return imagePayload(resp.Header.Get("Content-Type"), data)
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid provider url %q", redactURL(raw))
	}
	return nil
}

// redactURL keeps scheme, host and path; query strings often carry keys.
func redactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "<invalid url>"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// redactTransportError strips the query from the URL net/http puts into
// transport errors. The error chain is kept so timeouts still match.
func redactTransportError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL)
	}
	return err
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Generator = (*HTTPGenerator)(nil)
