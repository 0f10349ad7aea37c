package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"posterstudio/internal/infra"
	"posterstudio/internal/sqlinline"
)

// ProviderImage is the integration_tokens row holding the image provider key.
const ProviderImage = "image_provider"

// Store reads and writes provider secrets kept in integration_tokens so a key
// can be rotated without redeploying.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) ProviderAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderImage)
}

// Token returns "" when no row exists for provider.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetProviderAPIKey(ctx context.Context, key string, props map[string]any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("provider api key is required")
	}
	return s.upsert(ctx, ProviderImage, key, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
