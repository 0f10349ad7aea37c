package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"posterstudio/internal/domain"
	"posterstudio/internal/infra"
)

const (
	activeThemesKey = "posterstudio:themes:active:v1"
	DefaultThemeTTL = 60 * time.Second
)

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ThemeRepository caches the public theme list and drops it on every admin
// write. Redis errors are logged and the database is used instead.
type ThemeRepository struct {
	domain.ThemeRepository
	rdb    kv
	ttl    time.Duration
	logger zerolog.Logger
}

func NewThemeRepository(next domain.ThemeRepository, rdb kv, ttl time.Duration, logger zerolog.Logger) *ThemeRepository {
	if ttl <= 0 {
		ttl = DefaultThemeTTL
	}
	return &ThemeRepository{
		ThemeRepository: next,
		rdb:             rdb,
		ttl:             ttl,
		logger:          infra.Component(logger, "theme_cache"),
	}
}

func (c *ThemeRepository) ListActive(ctx context.Context) ([]domain.ThemeSummary, error) {
	raw, err := c.rdb.Get(ctx, activeThemesKey).Bytes()
	switch {
	case err == nil:
		var themes []domain.ThemeSummary
		if jerr := json.Unmarshal(raw, &themes); jerr == nil {
			return themes, nil
		}
		c.logger.Warn().Msg("discarding undecodable cached themes")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Msg("theme cache read failed")
	}

	themes, err := c.ThemeRepository.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(themes); err == nil {
		if err := c.rdb.Set(ctx, activeThemesKey, payload, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("theme cache write failed")
		}
	}
	return themes, nil
}

func (c *ThemeRepository) Create(ctx context.Context, in domain.ThemeInput) (*domain.Theme, error) {
	t, err := c.ThemeRepository.Create(ctx, in)
	if err == nil {
		c.invalidate(ctx)
	}
	return t, err
}

func (c *ThemeRepository) Update(ctx context.Context, id string, in domain.ThemeInput) (*domain.Theme, error) {
	t, err := c.ThemeRepository.Update(ctx, id, in)
	if err == nil {
		c.invalidate(ctx)
	}
	return t, err
}

func (c *ThemeRepository) Delete(ctx context.Context, id string) error {
	err := c.ThemeRepository.Delete(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *ThemeRepository) invalidate(ctx context.Context) {
	if err := c.rdb.Del(context.WithoutCancel(ctx), activeThemesKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("theme cache invalidation failed")
	}
}

var _ domain.ThemeRepository = (*ThemeRepository)(nil)
