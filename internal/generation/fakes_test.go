package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"posterstudio/internal/domain"
	image "posterstudio/internal/providers/image"
)

type fakeThemes struct {
	active map[string]*domain.Theme
}

func (f *fakeThemes) ListActive(ctx context.Context) ([]domain.ThemeSummary, error) {
	return nil, nil
}

func (f *fakeThemes) ListAll(ctx context.Context) ([]domain.Theme, error) { return nil, nil }

func (f *fakeThemes) GetActive(ctx context.Context, id string) (*domain.Theme, error) {
	t, ok := f.active[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeThemes) Create(ctx context.Context, in domain.ThemeInput) (*domain.Theme, error) {
	return nil, nil
}

func (f *fakeThemes) Update(ctx context.Context, id string, in domain.ThemeInput) (*domain.Theme, error) {
	return nil, nil
}

func (f *fakeThemes) Delete(ctx context.Context, id string) error { return nil }

// fakeGenerations enforces the same guarded transitions as the SQL layer.
type fakeGenerations struct {
	mu      sync.Mutex
	rows    map[string]*domain.Generation
	order   []string
	seq     int
	listArg int
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{rows: map[string]*domain.Generation{}}
}

func (f *fakeGenerations) Create(ctx context.Context, userID, themeID string, input domain.GenerationInput) (*domain.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("gen-%d", f.seq)
	tid := themeID
	g := &domain.Generation{ID: id, UserID: userID, ThemeID: &tid, Status: domain.StatusQueued, Input: input, CreatedAt: time.Now()}
	f.rows[id] = g
	f.order = append(f.order, id)
	cp := *g
	return &cp, nil
}

func (f *fakeGenerations) transition(id string, to domain.GenerationStatus, apply func(*domain.Generation)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !g.Status.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}
	g.Status = to
	apply(g)
	return nil
}

func (f *fakeGenerations) MarkGenerating(ctx context.Context, id, promptFinal, photoPath string) error {
	return f.transition(id, domain.StatusGenerating, func(g *domain.Generation) {
		g.PromptFinal = &promptFinal
		g.DogPhotoPath = &photoPath
	})
}

func (f *fakeGenerations) MarkSucceeded(ctx context.Context, id, resultPath string, width, height int) error {
	return f.transition(id, domain.StatusSucceeded, func(g *domain.Generation) {
		g.ResultImagePath = &resultPath
		g.ImageWidth = &width
		g.ImageHeight = &height
	})
}

func (f *fakeGenerations) MarkFailed(ctx context.Context, id, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.transition(id, domain.StatusFailed, func(g *domain.Generation) {
		g.Error = &message
	})
}

func (f *fakeGenerations) GetForUser(ctx context.Context, id, userID string) (*domain.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.rows[id]
	if !ok || g.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGenerations) ListForUser(ctx context.Context, userID string, limit int) ([]domain.GenerationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listArg = limit
	var out []domain.GenerationSummary
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		g := f.rows[f.order[i]]
		if g.UserID != userID {
			continue
		}
		out = append(out, domain.GenerationSummary{ID: g.ID, Status: g.Status, ResultImagePath: g.ResultImagePath, CreatedAt: g.CreatedAt})
	}
	return out, nil
}

func (f *fakeGenerations) get(id string) domain.Generation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeGenerations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type storedObject struct {
	data        []byte
	contentType string
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]storedObject
	putErr  map[string]error
	signErr error
	signed  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]storedObject{}, putErr: map[string]error{}}
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.putErr[bucket]; err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = storedObject{data: data, contentType: contentType}
	return nil
}

func (f *fakeStore) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signed = append(f.signed, bucket+"/"+key)
	return fmt.Sprintf("https://files.test/%s/%s?ttl=%d", bucket, key, int(ttl.Seconds())), nil
}

func (f *fakeStore) object(path string) (storedObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[path]
	return o, ok
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []image.Request
	generate func(ctx context.Context, req image.Request) (*image.Result, error)
}

func (f *fakeProvider) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.generate(ctx, req)
}

func (f *fakeProvider) calls() []image.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]image.Request(nil), f.requests...)
}
