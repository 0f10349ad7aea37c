package httpapi

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"posterstudio/internal/domain"
)

// memoryThemes and memoryGenerations stand in for the Postgres repositories.
type memoryThemes struct {
	mu     sync.Mutex
	themes map[string]*domain.Theme
}

func newMemoryThemes(seed ...domain.Theme) *memoryThemes {
	m := &memoryThemes{themes: map[string]*domain.Theme{}}
	for i := range seed {
		t := seed[i]
		m.themes[t.ID] = &t
	}
	return m
}

func (m *memoryThemes) ListActive(ctx context.Context) ([]domain.ThemeSummary, error) {
	all, _ := m.ListAll(ctx)
	out := make([]domain.ThemeSummary, 0, len(all))
	for _, t := range all {
		if t.IsActive {
			out = append(out, domain.ThemeSummary{ID: t.ID, Name: t.Name, Slug: t.Slug})
		}
	}
	return out, nil
}

func (m *memoryThemes) ListAll(ctx context.Context) ([]domain.Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Theme, 0, len(m.themes))
	for _, t := range m.themes {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}

func (m *memoryThemes) GetActive(ctx context.Context, id string) (*domain.Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.themes[id]
	if !ok || !t.IsActive {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryThemes) slugTaken(slug, except string) bool {
	for id, t := range m.themes {
		if id != except && t.Slug == slug {
			return true
		}
	}
	return false
}

func (m *memoryThemes) Create(ctx context.Context, in domain.ThemeInput) (*domain.Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slugTaken(*in.Slug, "") {
		return nil, domain.ErrConflict
	}
	now := time.Now()
	t := &domain.Theme{
		ID:             uuid.NewString(),
		Slug:           *in.Slug,
		Name:           *in.Name,
		PromptTemplate: *in.PromptTemplate,
		IsActive:       *in.IsActive,
		AccessTier:     *in.AccessTier,
		SortOrder:      *in.SortOrder,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.themes[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *memoryThemes) Update(ctx context.Context, id string, in domain.ThemeInput) (*domain.Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.themes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if in.Slug != nil {
		if m.slugTaken(*in.Slug, id) {
			return nil, domain.ErrConflict
		}
		t.Slug = *in.Slug
	}
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.PromptTemplate != nil {
		t.PromptTemplate = *in.PromptTemplate
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if in.AccessTier != nil {
		t.AccessTier = *in.AccessTier
	}
	if in.SortOrder != nil {
		t.SortOrder = *in.SortOrder
	}
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

func (m *memoryThemes) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.themes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.themes, id)
	return nil
}

type memoryGenerations struct {
	mu    sync.Mutex
	rows  map[string]*domain.Generation
	order []string
}

func newMemoryGenerations() *memoryGenerations {
	return &memoryGenerations{rows: map[string]*domain.Generation{}}
}

func (m *memoryGenerations) Create(ctx context.Context, userID, themeID string, input domain.GenerationInput) (*domain.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := themeID
	now := time.Now()
	g := &domain.Generation{ID: uuid.NewString(), UserID: userID, ThemeID: &tid, Status: domain.StatusQueued, Input: input, CreatedAt: now, UpdatedAt: now}
	m.rows[g.ID] = g
	m.order = append(m.order, g.ID)
	cp := *g
	return &cp, nil
}

func (m *memoryGenerations) move(id string, to domain.GenerationStatus, apply func(*domain.Generation)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !g.Status.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}
	g.Status = to
	g.UpdatedAt = time.Now()
	apply(g)
	return nil
}

func (m *memoryGenerations) MarkGenerating(ctx context.Context, id, promptFinal, photoPath string) error {
	return m.move(id, domain.StatusGenerating, func(g *domain.Generation) {
		g.PromptFinal, g.DogPhotoPath = &promptFinal, &photoPath
	})
}

func (m *memoryGenerations) MarkSucceeded(ctx context.Context, id, resultPath string, width, height int) error {
	return m.move(id, domain.StatusSucceeded, func(g *domain.Generation) {
		g.ResultImagePath, g.ImageWidth, g.ImageHeight = &resultPath, &width, &height
	})
}

func (m *memoryGenerations) MarkFailed(ctx context.Context, id, message string) error {
	return m.move(id, domain.StatusFailed, func(g *domain.Generation) {
		g.Error = &message
	})
}

func (m *memoryGenerations) GetForUser(ctx context.Context, id, userID string) (*domain.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.rows[id]
	if !ok || g.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memoryGenerations) ListForUser(ctx context.Context, userID string, limit int) ([]domain.GenerationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.GenerationSummary{}
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		g := m.rows[m.order[i]]
		if g.UserID == userID {
			out = append(out, domain.GenerationSummary{ID: g.ID, Status: g.Status, ResultImagePath: g.ResultImagePath, CreatedAt: g.CreatedAt})
		}
	}
	return out, nil
}

func (m *memoryGenerations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memoryGenerations) only() domain.Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[m.order[0]]
}
