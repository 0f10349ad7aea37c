package handlers

import "net/http"

// ListThemes is public and returns active themes only.
func (a *App) ListThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := a.Themes.ListActive(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"themes": themes})
}
