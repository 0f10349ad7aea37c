package image

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"posterstudio/internal/infra"
)

const (
	DefaultRequestTemplate   = `{"prompt":"{{PROMPT}}","image_url":"{{REFERENCE_IMAGE_URL}}","aspect_ratio":"{{ASPECT}}"}`
	DefaultAuthHeader        = "Authorization"
	DefaultAuthValueTemplate = "Bearer {{API_KEY}}"
	DefaultBase64Field       = "image_base64"
	DefaultURLField          = "image_url"

	DefaultAttemptTimeout = 50 * time.Second
	DefaultRetryDelay     = 500 * time.Millisecond
)

// ResponseMode selects how the provider response body is turned into bytes.
type ResponseMode string

const (
	ResponseModeAuto       ResponseMode = "auto"
	ResponseModeImage      ResponseMode = "image"
	ResponseModeJSONBase64 ResponseMode = "json_base64"
	ResponseModeJSONURL    ResponseMode = "json_url"
)

// ParseResponseMode accepts the configured mode; empty means auto.
func ParseResponseMode(raw string) (ResponseMode, error) {
	switch mode := ResponseMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ResponseModeAuto, nil
	case ResponseModeAuto, ResponseModeImage, ResponseModeJSONBase64, ResponseModeJSONURL:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported provider response mode %q", raw)
	}
}

// Options configure the adapter. Zero values take the defaults above.
type Options struct {
	APIURL            string
	APIKey            string
	RequestTemplate   string
	AuthHeader        string
	AuthValueTemplate string
	ResponseMode      string
	Base64Field       string
	URLField          string
	ContentTypeField  string

	AttemptTimeout time.Duration
	RetryDelay     time.Duration
	HTTPClient     *http.Client
	Logger         zerolog.Logger
}

// OptionsFromConfig maps the environment configuration onto adapter options.
func OptionsFromConfig(cfg infra.ProviderConfig, logger zerolog.Logger) Options {
	return Options{
		APIURL:            cfg.APIURL,
		APIKey:            cfg.APIKey,
		RequestTemplate:   cfg.RequestTemplate,
		AuthHeader:        cfg.AuthHeader,
		AuthValueTemplate: cfg.AuthValueTemplate,
		ResponseMode:      cfg.ResponseMode,
		Base64Field:       cfg.ImageBase64Field,
		URLField:          cfg.ImageURLField,
		ContentTypeField:  cfg.ContentTypeField,
		Logger:            logger,
	}
}

// Configured reports whether a real provider call is possible.
func (o Options) Configured() bool {
	return strings.TrimSpace(o.APIURL) != "" && strings.TrimSpace(o.APIKey) != ""
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.RequestTemplate) == "" {
		o.RequestTemplate = DefaultRequestTemplate
	}
	if o.AuthHeader == "" {
		o.AuthHeader = DefaultAuthHeader
	}
	if o.AuthValueTemplate == "" {
		o.AuthValueTemplate = DefaultAuthValueTemplate
	}
	if o.Base64Field == "" {
		o.Base64Field = DefaultBase64Field
	}
	if o.URLField == "" {
		o.URLField = DefaultURLField
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	return o
}

// New resolves the generation strategy once: the HTTP adapter when the
// provider is configured, the placeholder otherwise.
func New(opts Options) (Generator, error) {
	if !opts.Configured() {
		opts.Logger.Warn().Msg("image provider not configured, using placeholder images")
		return NewPlaceholder(), nil
	}
	return NewHTTPGenerator(opts)
}
