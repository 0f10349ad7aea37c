package infra

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers understood by the object store factory.
const (
	StorageDriverSupabase   = "supabase"
	StorageDriverS3         = "s3"
	StorageDriverFilesystem = "filesystem"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	Debug       bool
	DatabaseURL string

	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	AdminEmails            []string

	StorageDriver     string
	StoragePath       string
	StorageBaseURL    string
	StorageSigningKey string
	S3Endpoint        string
	S3AccessKey       string
	S3SecretKey       string
	S3UseSSL          bool
	S3BucketPrefix    string

	Provider ProviderConfig

	RedisURL           string
	CORSAllowedOrigins []string
	// TrustedProxies are the peers allowed to set X-Forwarded-For.
	TrustedProxies     []netip.Prefix
	RateLimitPerMin    int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration

	OTelEnabled      bool
	OTelOTLPEndpoint string
}

// ProviderConfig carries the image provider wire format. Everything except the
// URL and key has a default so a bare URL+key pair works against the common
// JSON shape.
type ProviderConfig struct {
	APIURL            string
	APIKey            string
	RequestTemplate   string
	AuthHeader        string
	AuthValueTemplate string
	ResponseMode      string
	ImageBase64Field  string
	ImageURLField     string
	ContentTypeField  string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		Debug:       getEnvBool("DEBUG", false),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		SupabaseURL:            strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:      os.Getenv("SUPABASE_JWT_SECRET"),
		AdminEmails:            getEnvList("ADMIN_EMAILS"),

		StorageDriver:     strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverSupabase)),
		StoragePath:       getEnv("STORAGE_PATH", "./data/storage"),
		StorageBaseURL:    strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port), "/"),
		StorageSigningKey: os.Getenv("STORAGE_SIGNING_KEY"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKey:       os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:       os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:          getEnvBool("S3_USE_SSL", true),
		S3BucketPrefix:    os.Getenv("S3_BUCKET_PREFIX"),

		Provider: ProviderConfig{
			APIURL:            strings.TrimSpace(os.Getenv("PROVIDER_API_URL")),
			APIKey:            strings.TrimSpace(os.Getenv("PROVIDER_API_KEY")),
			RequestTemplate:   os.Getenv("PROVIDER_REQUEST_TEMPLATE_JSON"),
			AuthHeader:        getEnv("PROVIDER_AUTH_HEADER", "Authorization"),
			AuthValueTemplate: getEnv("PROVIDER_AUTH_VALUE_TEMPLATE", "Bearer {{API_KEY}}"),
			ResponseMode:      strings.ToLower(getEnv("PROVIDER_RESPONSE_MODE", "auto")),
			ImageBase64Field:  getEnv("PROVIDER_JSON_IMAGE_BASE64_FIELD", "image_base64"),
			ImageURLField:     getEnv("PROVIDER_JSON_IMAGE_URL_FIELD", "image_url"),
			ContentTypeField:  os.Getenv("PROVIDER_JSON_CONTENT_TYPE_FIELD"),
		},

		RedisURL:           os.Getenv("REDIS_URL"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 75)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		OTelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTelOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	proxies, err := parsePrefixes(getEnvList("TRUSTED_PROXY_CIDRS"))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXY_CIDRS: %w", err)
	}
	cfg.TrustedProxies = proxies

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageDriver {
	case StorageDriverSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceRoleKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase storage")
		}
	case StorageDriverS3:
		if cfg.S3Endpoint == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return nil, fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY are required for s3 storage")
		}
	case StorageDriverFilesystem:
		if cfg.StorageSigningKey == "" {
			return nil, fmt.Errorf("STORAGE_SIGNING_KEY is required for filesystem storage")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.SupabaseJWTSecret == "" && (cfg.SupabaseURL == "" || cfg.SupabaseServiceRoleKey == "") {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET or SUPABASE_URL with SUPABASE_SERVICE_ROLE_KEY is required for auth")
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePrefixes accepts CIDRs and bare addresses.
func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
