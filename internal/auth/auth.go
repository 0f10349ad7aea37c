// Package auth resolves bearer tokens issued by the hosted auth service into
// identities and decides who may administer themes.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// Authenticator turns a raw bearer token into an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
