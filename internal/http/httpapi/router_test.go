package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdimage "image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"posterstudio/internal/auth"
	"posterstudio/internal/domain"
	"posterstudio/internal/generation"
	"posterstudio/internal/http/handlers"
	image "posterstudio/internal/providers/image"
	"posterstudio/internal/storage"
)

const (
	jwtSecret     = "test-secret"
	activeTheme   = "0b3c8a52-4f7e-4d11-9a0e-2f4f8f5a1c01"
	inactiveTheme = "0b3c8a52-4f7e-4d11-9a0e-2f4f8f5a1c02"
	adminEmail    = "Admin@Example.com"
)

type testEnv struct {
	handler http.Handler
	themes  *memoryThemes
	gens    *memoryGenerations
}

type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestEnv(t *testing.T, provider image.Generator, hardTimeout time.Duration) *testEnv {
	t.Helper()
	themes := newMemoryThemes(
		domain.Theme{ID: activeTheme, Slug: "noir", Name: "Film Noir", PromptTemplate: "A {{THEME_NAME}} poster, {{ASPECT}}", IsActive: true, AccessTier: domain.AccessTierFree},
		domain.Theme{ID: inactiveTheme, Slug: "retired", Name: "Retired", PromptTemplate: "An old {{THEME_NAME}} poster", IsActive: false, AccessTier: domain.AccessTierFree, SortOrder: 5},
	)
	gens := newMemoryGenerations()
	files, err := storage.NewFileStore(t.TempDir(), "http://posters.test", "signing-key")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	verifier, err := auth.NewJWTVerifier(jwtSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier error: %v", err)
	}
	svc := generation.NewService(themes, gens, files, provider, zerolog.Nop(), generation.Options{HardTimeout: hardTimeout})
	app := &handlers.App{
		Logger:      zerolog.Nop(),
		Themes:      themes,
		Generations: svc,
		Admins:      auth.NewAdminAllowlist([]string{"admin@example.com"}),
		Files:       files,
	}
	return &testEnv{
		handler: NewRouter(app, Options{Logger: zerolog.Nop(), Authenticator: verifier, StartRateLimit: 100}),
		themes:  themes,
		gens:    gens,
	}
}

func token(t *testing.T, userID, email string) string {
	t.Helper()
	tok, err := auth.IssueToken(jwtSecret, userID, email, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, target, bearer string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func startForm(t *testing.T, fields map[string]string, photo []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if photo != nil {
		fw, err := mw.CreateFormFile("dogPhoto", "rex.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write(photo)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestGenerationEndToEnd(t *testing.T) {
	env := newTestEnv(t, image.NewPlaceholder(), time.Second)
	user := token(t, "user-1", "rex@example.com")

	body, ct := startForm(t, map[string]string{"themeId": activeTheme, "title": "Rex"}, []byte("\x89PNG\r\n\x1a\nphoto"))
	rec := env.do(t, http.MethodPost, "/api/generations/start", user, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status %d: %s", rec.Code, rec.Body.String())
	}
	id := decode[map[string]string](t, rec)["generationId"]
	if id == "" {
		t.Fatalf("missing generationId")
	}

	rec = env.do(t, http.MethodGet, "/api/generations/"+id, user, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Generation struct {
			Status          string  `json:"status"`
			ResultImagePath *string `json:"result_image_path"`
			ImageWidth      *int    `json:"image_width"`
			SignedURL       *string `json:"signedUrl"`
			Input           struct {
				Title string `json:"title"`
			} `json:"input"`
		} `json:"generation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode generation: %v", err)
	}
	g := got.Generation
	if g.Status != "succeeded" || g.ImageWidth == nil || *g.ImageWidth != 1024 || g.Input.Title != "Rex" {
		t.Fatalf("unexpected generation %s", rec.Body.String())
	}
	if g.SignedURL == nil {
		t.Fatalf("expected signed url")
	}

	signed, err := url.Parse(*g.SignedURL)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	rec = env.do(t, http.MethodGet, signed.RequestURI(), "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch signed url status %d: %s", rec.Code, rec.Body.String())
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("result is not a png: %v", err)
	}
	if img.Bounds() != stdimage.Rect(0, 0, 1024, 1280) {
		t.Fatalf("unexpected result bounds %v", img.Bounds())
	}

	rec = env.do(t, http.MethodGet, "/api/generations?limit=5", user, nil, "")
	gallery := decode[struct {
		Generations []struct {
			ID    string  `json:"id"`
			Thumb *string `json:"thumb"`
		} `json:"generations"`
	}](t, rec)
	if len(gallery.Generations) != 1 || gallery.Generations[0].ID != id || gallery.Generations[0].Thumb == nil {
		t.Fatalf("unexpected gallery %s", rec.Body.String())
	}
}

func TestStartGenerationRejections(t *testing.T) {
	env := newTestEnv(t, image.NewPlaceholder(), time.Second)
	user := token(t, "user-1", "rex@example.com")
	photo := []byte("jpeg")

	tests := []struct {
		name     string
		bearer   string
		fields   map[string]string
		photo    []byte
		wantCode int
		wantMsg  string
	}{
		{name: "anonymous", fields: map[string]string{"themeId": activeTheme}, photo: photo, wantCode: http.StatusUnauthorized, wantMsg: "Login required to generate"},
		{name: "unknown theme", bearer: user, fields: map[string]string{"themeId": "9b3c8a52-4f7e-4d11-9a0e-2f4f8f5a1c09"}, photo: photo, wantCode: http.StatusBadRequest, wantMsg: "Invalid theme"},
		{name: "inactive theme", bearer: user, fields: map[string]string{"themeId": inactiveTheme}, photo: photo, wantCode: http.StatusBadRequest, wantMsg: "Invalid theme"},
		{name: "theme id not uuid", bearer: user, fields: map[string]string{"themeId": "noir"}, photo: photo, wantCode: http.StatusBadRequest, wantMsg: "themeId must be a valid uuid"},
		{name: "missing photo", bearer: user, fields: map[string]string{"themeId": activeTheme}, wantCode: http.StatusBadRequest, wantMsg: "Upload required"},
		{name: "title too long", bearer: user, fields: map[string]string{"themeId": activeTheme, "title": strings.Repeat("t", 121)}, photo: photo, wantCode: http.StatusBadRequest, wantMsg: "title must be at most 120 characters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := startForm(t, tc.fields, tc.photo)
			rec := env.do(t, http.MethodPost, "/api/generations/start", tc.bearer, body, ct)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if msg := errorMessage(t, rec); msg != tc.wantMsg {
				t.Fatalf("error = %q, want %q", msg, tc.wantMsg)
			}
		})
	}
	if env.gens.count() != 0 {
		t.Fatalf("rejected requests must not create generations, got %d", env.gens.count())
	}
}

func TestStartGenerationTimeout(t *testing.T) {
	env := newTestEnv(t, blockingProvider{}, 50*time.Millisecond)
	user := token(t, "user-1", "rex@example.com")

	body, ct := startForm(t, map[string]string{"themeId": activeTheme}, []byte("jpeg"))
	rec := env.do(t, http.MethodPost, "/api/generations/start", user, body, ct)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504 (%s)", rec.Code, rec.Body.String())
	}
	row := env.gens.only()
	if row.Status != domain.StatusFailed || row.Error == nil || *row.Error != "generation timed out" {
		t.Fatalf("unexpected row after timeout %+v", row)
	}
}

type failingProvider struct{}

func (failingProvider) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	return nil, errors.New("provider exploded")
}

func TestStartGenerationProviderFailure(t *testing.T) {
	env := newTestEnv(t, failingProvider{}, time.Second)
	user := token(t, "user-1", "rex@example.com")

	body, ct := startForm(t, map[string]string{"themeId": activeTheme}, []byte("jpeg"))
	rec := env.do(t, http.MethodPost, "/api/generations/start", user, body, ct)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "exploded") {
		t.Fatalf("internal error details leaked: %s", rec.Body.String())
	}
	row := env.gens.only()
	if row.Status != domain.StatusFailed || row.Error == nil || !strings.Contains(*row.Error, "provider exploded") {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestGetGenerationAccess(t *testing.T) {
	env := newTestEnv(t, image.NewPlaceholder(), time.Second)
	owner := token(t, "user-1", "rex@example.com")
	other := token(t, "user-2", "fido@example.com")

	gen, _ := env.gens.Create(context.Background(), "user-1", activeTheme, domain.GenerationInput{})

	tests := []struct {
		name     string
		bearer   string
		path     string
		wantCode int
		wantMsg  string
	}{
		{name: "anonymous", path: "/api/generations/" + gen.ID, wantCode: http.StatusUnauthorized, wantMsg: "Login required"},
		{name: "invalid id", bearer: owner, path: "/api/generations/not-a-uuid", wantCode: http.StatusBadRequest, wantMsg: "Invalid id"},
		{name: "other user", bearer: other, path: "/api/generations/" + gen.ID, wantCode: http.StatusNotFound, wantMsg: "Not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tc.path, tc.bearer, nil, "")
			if rec.Code != tc.wantCode || errorMessage(t, rec) != tc.wantMsg {
				t.Fatalf("got %d %s, want %d %q", rec.Code, rec.Body.String(), tc.wantCode, tc.wantMsg)
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/api/generations/"+gen.ID, owner, nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"signedUrl":null`) {
		t.Fatalf("queued generation should have no signed url: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPublicThemesListsActiveOnly(t *testing.T) {
	env := newTestEnv(t, image.NewPlaceholder(), time.Second)
	rec := env.do(t, http.MethodGet, "/api/themes", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	got := decode[struct {
		Themes []map[string]any `json:"themes"`
	}](t, rec)
	if len(got.Themes) != 1 || got.Themes[0]["slug"] != "noir" {
		t.Fatalf("unexpected themes %s", rec.Body.String())
	}
	if _, leaked := got.Themes[0]["prompt_template"]; leaked {
		t.Fatalf("public list must not expose templates")
	}
}

func TestAdminThemesAuthorization(t *testing.T) {
	env := newTestEnv(t, image.NewPlaceholder(), time.Second)
	user := token(t, "user-1", "rex@example.com")

	rec := env.do(t, http.MethodGet, "/api/admin/themes", "", nil, "")
	if rec.Code != http.StatusUnauthorized || errorMessage(t, rec) != "Login required" {
		t.Fatalf("anonymous: %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/admin/themes", user, nil, "")
	if rec.Code != http.StatusForbidden || errorMessage(t, rec) != "Forbidden" {
		t.Fatalf("non-admin: %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/admin/themes", token(t, "admin-1", "ADMIN@example.COM"), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		Themes []domain.Theme `json:"themes"`
	}](t, rec)
	if len(got.Themes) != 2 {
		t.Fatalf("admin list should include inactive themes, got %d", len(got.Themes))
	}
}

func TestAdminThemeLifecycle(t *testing.T) {
	env := newTestEnv(t, image.NewPlaceholder(), time.Second)
	admin := token(t, "admin-1", adminEmail)
	jsonBody := func(s string) *bytes.Buffer { return bytes.NewBufferString(s) }

	rec := env.do(t, http.MethodPost, "/api/admin/themes", admin, jsonBody(`{"slug":"retro-80s","name":"Retro 80s","prompt_template":"A neon {{THEME_NAME}} poster"}`), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		Theme domain.Theme `json:"theme"`
	}](t, rec).Theme
	if !created.IsActive || created.AccessTier != domain.AccessTierFree || created.SortOrder != 0 {
		t.Fatalf("defaults not applied: %+v", created)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{name: "duplicate slug", method: http.MethodPost, path: "/api/admin/themes", body: `{"slug":"noir","name":"Noir 2","prompt_template":"Another noir poster"}`, wantCode: http.StatusConflict, wantMsg: "Slug already exists"},
		{name: "uppercase slug", method: http.MethodPut, path: "/api/admin/themes/" + created.ID, body: `{"slug":"Retro"}`, wantCode: http.StatusBadRequest, wantMsg: domain.SlugPatternMessage},
		{name: "fractional sort order", method: http.MethodPut, path: "/api/admin/themes/" + created.ID, body: `{"sort_order":1.5}`, wantCode: http.StatusBadRequest, wantMsg: "sort_order must be an integer"},
		{name: "bad tier", method: http.MethodPut, path: "/api/admin/themes/" + created.ID, body: `{"access_tier":"gold"}`, wantCode: http.StatusBadRequest, wantMsg: "access_tier must be one of free, pro"},
		{name: "wrong type", method: http.MethodPut, path: "/api/admin/themes/" + created.ID, body: `{"is_active":"yes"}`, wantCode: http.StatusBadRequest, wantMsg: "is_active has an invalid type"},
		{name: "empty patch", method: http.MethodPut, path: "/api/admin/themes/" + created.ID, body: `{}`, wantCode: http.StatusBadRequest, wantMsg: "No fields to update"},
		{name: "invalid id", method: http.MethodPut, path: "/api/admin/themes/123", body: `{"name":"Whatever"}`, wantCode: http.StatusBadRequest, wantMsg: "Invalid id"},
		{name: "unknown id", method: http.MethodPut, path: "/api/admin/themes/9b3c8a52-4f7e-4d11-9a0e-2f4f8f5a1c09", body: `{"name":"Whatever"}`, wantCode: http.StatusNotFound, wantMsg: "Not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, admin, jsonBody(tc.body), "application/json")
			if rec.Code != tc.wantCode || errorMessage(t, rec) != tc.wantMsg {
				t.Fatalf("got %d %s, want %d %q", rec.Code, rec.Body.String(), tc.wantCode, tc.wantMsg)
			}
		})
	}

	rec = env.do(t, http.MethodPut, "/api/admin/themes/"+created.ID, admin, jsonBody(`{"name":"Retro Eighties","sort_order":3}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	updated := decode[struct {
		Theme domain.Theme `json:"theme"`
	}](t, rec).Theme
	if updated.Name != "Retro Eighties" || updated.SortOrder != 3 || updated.Slug != "retro-80s" {
		t.Fatalf("partial update wrote the wrong fields: %+v", updated)
	}

	rec = env.do(t, http.MethodDelete, "/api/admin/themes/"+created.ID, admin, nil, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodDelete, "/api/admin/themes/"+created.ID, admin, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServeFileRequiresValidSignature(t *testing.T) {
	env := newTestEnv(t, image.NewPlaceholder(), time.Second)

	rec := env.do(t, http.MethodGet, "/storage/generated/user-1/x.png?expires=9999999999&sig=deadbeef", "", nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/storage/generated/user-1/x.png", "", nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unsigned request: status = %d, want 403", rec.Code)
	}
}

func TestHealthAndDocs(t *testing.T) {
	env := newTestEnv(t, image.NewPlaceholder(), time.Second)
	for _, path := range []string{"/healthz", "/readyz", "/api/openapi.json"} {
		rec := env.do(t, http.MethodGet, path, "", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
	var doc map[string]any
	rec := env.do(t, http.MethodGet, "/api/openapi.json", "", nil, "")
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil || doc["paths"] == nil {
		t.Fatalf("openapi document invalid: %v", err)
	}
}
