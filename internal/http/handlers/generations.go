package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"posterstudio/internal/domain"
	"posterstudio/internal/generation"
)

const (
	// MaxPhotoBytes caps the uploaded reference photo.
	MaxPhotoBytes = 15 << 20
	// multipart framing and text fields on top of the photo
	maxFormOverhead = 1 << 20
)

func (a *App) StartGeneration(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		a.error(w, http.StatusUnauthorized, "Login required to generate")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoBytes+maxFormOverhead)
	if err := r.ParseMultipartForm(MaxPhotoBytes + maxFormOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		a.error(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	themeID, err := uuid.Parse(r.FormValue("themeId"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "themeId must be a valid uuid")
		return
	}
	req := generation.StartRequest{
		UserID:  user.UserID,
		ThemeID: themeID.String(),
		Input: domain.GenerationInput{
			Title:    r.FormValue("title"),
			Subtitle: r.FormValue("subtitle"),
			Contact:  r.FormValue("contact"),
		},
	}
	if err := req.Input.Validate(); err != nil {
		a.fail(w, r, err)
		return
	}

	file, header, err := r.FormFile("dogPhoto")
	if err != nil {
		a.error(w, http.StatusBadRequest, "Upload required")
		return
	}
	defer file.Close()
	photo, err := readUpload(file, header)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	req.Photo = photo

	id, err := a.Generations.Start(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"generationId": id})
}

func readUpload(file multipart.File, header *multipart.FileHeader) (generation.Upload, error) {
	if header.Size > MaxPhotoBytes {
		return generation.Upload{}, domain.NewValidationError("dogPhoto", "Photo must be at most %d MB", MaxPhotoBytes>>20)
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxPhotoBytes+1))
	if err != nil {
		return generation.Upload{}, err
	}
	if len(data) > MaxPhotoBytes {
		return generation.Upload{}, domain.NewValidationError("dogPhoto", "Photo must be at most %d MB", MaxPhotoBytes>>20)
	}
	return generation.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		a.fail(w, r, domain.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "Invalid id")
		return
	}
	view, err := a.Generations.Get(r.Context(), user.UserID, id.String())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"generation": view})
}

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		a.fail(w, r, domain.ErrUnauthenticated)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := a.Generations.List(r.Context(), user.UserID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"generations": items})
}
