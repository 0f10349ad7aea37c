package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

type userLookup func(token string) (*types.UserResponse, error)

// GoTrueVerifier asks the hosted auth service who owns a token. Used when no
// JWT secret is configured.
type GoTrueVerifier struct {
	lookup userLookup
}

func NewGoTrueVerifier(supabaseURL, serviceRoleKey string) (*GoTrueVerifier, error) {
	client, err := supabase.NewClient(supabaseURL, serviceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("auth: init supabase client: %w", err)
	}
	return &GoTrueVerifier{lookup: func(token string) (*types.UserResponse, error) {
		return client.Auth.WithToken(token).GetUser()
	}}, nil
}

func (v *GoTrueVerifier) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	user, err := v.lookup(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if user == nil || user.ID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: user.ID.String(), Email: user.Email}, nil
}

var _ Authenticator = (*GoTrueVerifier)(nil)
