package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"posterstudio/internal/auth"
)

type identityKey struct{}

// Authenticate resolves the bearer token, when present, into an identity on
// the request context. Requests without a valid token pass through
// anonymously; handlers decide whether a login is required.
func Authenticate(authn auth.Authenticator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				logger.Debug().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("rejected bearer token")
				next.ServeHTTP(w, r)
				return
			}
			setAccessUser(r.Context(), id.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

func IdentityFromContext(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey{}).(*auth.Identity)
	return id
}

func ContextWithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	if id == nil || id.UserID == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id)
}
