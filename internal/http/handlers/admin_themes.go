package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"posterstudio/internal/domain"
)

const maxThemeBody = 1 << 20

type themePayload struct {
	Slug           *string            `json:"slug"`
	Name           *string            `json:"name"`
	PromptTemplate *string            `json:"prompt_template"`
	IsActive       *bool              `json:"is_active"`
	AccessTier     *domain.AccessTier `json:"access_tier"`
	SortOrder      *json.Number       `json:"sort_order"`
}

func (p themePayload) input() (domain.ThemeInput, error) {
	in := domain.ThemeInput{
		Slug:           p.Slug,
		Name:           p.Name,
		PromptTemplate: p.PromptTemplate,
		IsActive:       p.IsActive,
		AccessTier:     p.AccessTier,
	}
	if p.SortOrder != nil {
		n, err := p.SortOrder.Int64()
		if err != nil || n != int64(int32(n)) {
			return in, domain.NewValidationError("sort_order", "sort_order must be an integer")
		}
		order := int(n)
		in.SortOrder = &order
	}
	return in, nil
}

// requireAdmin writes 401/403 and reports false when the caller may not
// manage themes.
func (a *App) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if err := a.adminCheck(r); err != nil {
		a.fail(w, r, err)
		return false
	}
	return true
}

func (a *App) adminCheck(r *http.Request) error {
	id := a.currentUser(r)
	if id == nil {
		return domain.ErrUnauthenticated
	}
	if !a.Admins.IsAdmin(id) {
		return domain.ErrForbidden
	}
	return nil
}

func (a *App) AdminListThemes(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	themes, err := a.Themes.ListAll(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"themes": themes})
}

func (a *App) AdminCreateTheme(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	in, err := a.decodeTheme(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := in.ValidateForCreate(); err != nil {
		a.fail(w, r, err)
		return
	}
	theme, err := a.Themes.Create(r.Context(), in)
	if err != nil {
		a.themeWriteFailed(w, r, err)
		return
	}
	a.Logger.Info().Str("theme_id", theme.ID).Str("slug", theme.Slug).Msg("theme created")
	a.json(w, http.StatusCreated, map[string]any{"theme": theme})
}

func (a *App) AdminUpdateTheme(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	id, ok := a.themeID(w, r)
	if !ok {
		return
	}
	in, err := a.decodeTheme(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if in.Empty() {
		a.fail(w, r, domain.NewValidationError("", "No fields to update"))
		return
	}
	if err := in.ValidateForUpdate(); err != nil {
		a.fail(w, r, err)
		return
	}
	theme, err := a.Themes.Update(r.Context(), id, in)
	if err != nil {
		a.themeWriteFailed(w, r, err)
		return
	}
	a.Logger.Info().Str("theme_id", theme.ID).Msg("theme updated")
	a.json(w, http.StatusOK, map[string]any{"theme": theme})
}

func (a *App) AdminDeleteTheme(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	id, ok := a.themeID(w, r)
	if !ok {
		return
	}
	if err := a.Themes.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().Str("theme_id", id).Msg("theme deleted")
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *App) themeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "Invalid id")
		return "", false
	}
	return id.String(), true
}

func (a *App) decodeTheme(w http.ResponseWriter, r *http.Request) (domain.ThemeInput, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxThemeBody))
	dec.UseNumber()
	var p themePayload
	if err := dec.Decode(&p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domain.ThemeInput{}, domain.NewValidationError(typeErr.Field, "%s has an invalid type", typeErr.Field)
		}
		return domain.ThemeInput{}, &domain.ValidationError{Message: "Invalid JSON body"}
	}
	return p.input()
}

func (a *App) themeWriteFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrConflict) {
		a.error(w, http.StatusConflict, "Slug already exists")
		return
	}
	a.fail(w, r, fmt.Errorf("write theme: %w", err))
}
