// Package client is a Go client for the poster API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"posterstudio/internal/domain"
	"posterstudio/internal/generation"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL. token may be empty for public endpoints.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// Start blocks for the whole generation, so the timeout sits above
		// the server's hard limit.
		http: &http.Client{Timeout: 90 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) ListThemes(ctx context.Context) ([]domain.ThemeSummary, error) {
	var out struct {
		Themes []domain.ThemeSummary `json:"themes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/themes", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Themes, nil
}

type StartParams struct {
	ThemeID   string
	Title     string
	Subtitle  string
	Contact   string
	PhotoName string
	Photo     io.Reader
}

// Start submits a generation and returns its id once the server finished
// running it.
func (c *Client) Start(ctx context.Context, p StartParams) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{{"themeId", p.ThemeID}, {"title", p.Title}, {"subtitle", p.Subtitle}, {"contact", p.Contact}}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", err
		}
	}
	if p.Photo != nil {
		name := p.PhotoName
		if name == "" {
			name = "photo.jpg"
		}
		fw, err := mw.CreateFormFile("dogPhoto", name)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(fw, p.Photo); err != nil {
			return "", fmt.Errorf("read photo: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		GenerationID string `json:"generationId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/generations/start", &body, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.GenerationID, nil
}

func (c *Client) Get(ctx context.Context, id string) (*generation.View, error) {
	var out struct {
		Generation *generation.View `json:"generation"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/generations/"+url.PathEscape(id), nil, "", &out); err != nil {
		return nil, err
	}
	if out.Generation == nil || out.Generation.Generation == nil {
		return nil, fmt.Errorf("api returned no generation for %s", id)
	}
	return out.Generation, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
