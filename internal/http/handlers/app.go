package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"posterstudio/internal/auth"
	"posterstudio/internal/domain"
	"posterstudio/internal/generation"
	"posterstudio/internal/middleware"
	"posterstudio/internal/storage"
)

// Generations is the orchestrator surface the handlers need.
type Generations interface {
	Start(ctx context.Context, req generation.StartRequest) (string, error)
	Get(ctx context.Context, userID, id string) (*generation.View, error)
	List(ctx context.Context, userID string, limit int) ([]generation.GalleryItem, error)
}

type App struct {
	Logger      zerolog.Logger
	Themes      domain.ThemeRepository
	Generations Generations
	Admins      *auth.AdminAllowlist
	DB          Pinger
	// Files is set only when objects live on the local filesystem.
	Files *storage.FileStore
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// fail maps err onto a status code. Validation messages are shown as is;
// unclassified errors are logged and replaced by a generic message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	message := http.StatusText(code)
	switch {
	case code == http.StatusInternalServerError:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		message = "Internal server error"
	case errors.Is(err, domain.ErrTimeout):
		message = "Generation timed out"
	case errors.Is(err, domain.ErrInvalidTheme):
		message = "Invalid theme"
	case errors.Is(err, domain.ErrNotFound):
		message = "Not found"
	case errors.Is(err, domain.ErrUnauthenticated):
		message = "Login required"
	default:
		if ve, ok := domain.AsValidationError(err); ok {
			message = ve.Message
		}
	}
	a.error(w, code, message)
}

func statusFor(err error) int {
	if _, ok := domain.AsValidationError(err); ok {
		return http.StatusBadRequest
	}
	switch {
	case errors.Is(err, domain.ErrInvalidTheme):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) currentUser(r *http.Request) *auth.Identity {
	return middleware.IdentityFromContext(r.Context())
}
