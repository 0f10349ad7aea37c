package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"path"

	"github.com/go-chi/chi/v5"

	"posterstudio/internal/storage"
)

// ServeFile streams an object from the filesystem store when the request
// carries a valid, unexpired signature.
func (a *App) ServeFile(w http.ResponseWriter, r *http.Request) {
	if a.Files == nil {
		a.error(w, http.StatusNotFound, "Not found")
		return
	}
	bucket := chi.URLParam(r, "bucket")
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "Invalid path")
		return
	}
	q := r.URL.Query()

	switch err := a.Files.Verify(bucket, key, q.Get("expires"), q.Get("sig")); {
	case errors.Is(err, storage.ErrURLExpired):
		a.error(w, http.StatusForbidden, "Link expired")
		return
	case err != nil:
		a.error(w, http.StatusForbidden, "Invalid signature")
		return
	}

	f, err := a.Files.Open(bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			a.error(w, http.StatusNotFound, "Not found")
			return
		}
		a.fail(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=60")
	http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
}
