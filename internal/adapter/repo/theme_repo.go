package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"posterstudio/internal/domain"
	"posterstudio/internal/infra"
	"posterstudio/internal/sqlinline"
)

// ThemeRepositoryPG implements domain.ThemeRepository.
type ThemeRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewThemeRepository creates a theme repository backed by PostgreSQL.
func NewThemeRepository(sql infra.SQLExecutor) *ThemeRepositoryPG {
	return &ThemeRepositoryPG{sql: sql}
}

// ListActive returns the public projection of active themes in display order.
func (r *ThemeRepositoryPG) ListActive(ctx context.Context) ([]domain.ThemeSummary, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListActiveThemes)
	if err != nil {
		return nil, fmt.Errorf("list active themes: %w", err)
	}
	defer rows.Close()

	themes := make([]domain.ThemeSummary, 0)
	for rows.Next() {
		var t domain.ThemeSummary
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		themes = append(themes, t)
	}
	return themes, rows.Err()
}

// ListAll returns every theme, active or not.
func (r *ThemeRepositoryPG) ListAll(ctx context.Context) ([]domain.Theme, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListAllThemes)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	defer rows.Close()

	themes := make([]domain.Theme, 0)
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		themes = append(themes, *t)
	}
	return themes, rows.Err()
}

// GetActive loads an active theme. Inactive and unknown ids both yield ErrNotFound.
func (r *ThemeRepositoryPG) GetActive(ctx context.Context, id string) (*domain.Theme, error) {
	return scanTheme(r.sql.QueryRow(ctx, sqlinline.QSelectActiveThemeByID, id))
}

// Create inserts a validated theme. Duplicate slugs yield ErrConflict.
func (r *ThemeRepositoryPG) Create(ctx context.Context, in domain.ThemeInput) (*domain.Theme, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertTheme,
		deref(in.Slug),
		deref(in.Name),
		deref(in.PromptTemplate),
		in.IsActive != nil && *in.IsActive,
		string(tierOrDefault(in.AccessTier)),
		intOrZero(in.SortOrder),
	)
	t, err := scanTheme(row)
	if err != nil && infra.IsUniqueViolation(err) {
		return nil, domain.ErrConflict
	}
	return t, err
}

// Update writes only the supplied fields.
func (r *ThemeRepositoryPG) Update(ctx context.Context, id string, in domain.ThemeInput) (*domain.Theme, error) {
	var tier *string
	if in.AccessTier != nil {
		s := string(*in.AccessTier)
		tier = &s
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateTheme,
		id, in.Slug, in.Name, in.PromptTemplate, in.IsActive, tier, in.SortOrder)
	t, err := scanTheme(row)
	if err != nil && infra.IsUniqueViolation(err) {
		return nil, domain.ErrConflict
	}
	return t, err
}

// Delete removes a theme; generations keep their row with a null theme_id.
func (r *ThemeRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteTheme, id)
	if err != nil {
		return fmt.Errorf("delete theme: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanTheme(row pgx.Row) (*domain.Theme, error) {
	var (
		t    domain.Theme
		tier string
	)
	if err := row.Scan(
		&t.ID,
		&t.Slug,
		&t.Name,
		&t.PromptTemplate,
		&t.IsActive,
		&tier,
		&t.SortOrder,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan theme: %w", err)
	}
	t.AccessTier = domain.AccessTier(tier)
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func tierOrDefault(t *domain.AccessTier) domain.AccessTier {
	if t == nil {
		return domain.AccessTierFree
	}
	return *t
}

var _ domain.ThemeRepository = (*ThemeRepositoryPG)(nil)
