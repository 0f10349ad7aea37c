package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"posterstudio/internal/domain"
	"posterstudio/internal/infra"
	"posterstudio/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository. Status
// updates name their expected previous status in SQL, so a write that lost a
// race affects no row and reports ErrInvalidTransition.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create inserts a queued generation.
func (r *GenerationRepositoryPG) Create(ctx context.Context, userID, themeID string, input domain.GenerationInput) (*domain.Generation, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode generation input: %w", err)
	}
	g := &domain.Generation{
		UserID:  userID,
		ThemeID: &themeID,
		Status:  domain.StatusQueued,
		Input:   input,
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGeneration, userID, themeID, raw)
	if err := row.Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert generation: %w", err)
	}
	return g, nil
}

func (r *GenerationRepositoryPG) MarkGenerating(ctx context.Context, id, promptFinal, photoPath string) error {
	return r.transition(ctx, sqlinline.QMarkGenerationGenerating, id, promptFinal, photoPath)
}

func (r *GenerationRepositoryPG) MarkSucceeded(ctx context.Context, id, resultPath string, width, height int) error {
	return r.transition(ctx, sqlinline.QMarkGenerationSucceeded, id, resultPath, width, height)
}

func (r *GenerationRepositoryPG) MarkFailed(ctx context.Context, id, message string) error {
	return r.transition(ctx, sqlinline.QMarkGenerationFailed, id, message)
}

func (r *GenerationRepositoryPG) transition(ctx context.Context, query, id string, args ...any) error {
	tag, err := r.sql.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update generation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("generation %s: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

// GetForUser loads a generation owned by userID. Rows owned by someone else
// are indistinguishable from missing ones.
func (r *GenerationRepositoryPG) GetForUser(ctx context.Context, id, userID string) (*domain.Generation, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationForUser, id, userID)
	var (
		g      domain.Generation
		status string
		input  []byte
	)
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.ThemeID,
		&status,
		&input,
		&g.PromptFinal,
		&g.DogPhotoPath,
		&g.ResultImagePath,
		&g.ImageWidth,
		&g.ImageHeight,
		&g.Error,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select generation: %w", err)
	}
	g.Status = domain.GenerationStatus(status)
	if len(input) > 0 {
		if err := json.Unmarshal(input, &g.Input); err != nil {
			return nil, fmt.Errorf("decode generation input: %w", err)
		}
	}
	return &g, nil
}

// ListForUser returns the newest generations first.
func (r *GenerationRepositoryPG) ListForUser(ctx context.Context, userID string, limit int) ([]domain.GenerationSummary, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerationsForUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	items := make([]domain.GenerationSummary, 0, limit)
	for rows.Next() {
		var (
			item   domain.GenerationSummary
			status string
		)
		if err := rows.Scan(&item.ID, &status, &item.ResultImagePath, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		item.Status = domain.GenerationStatus(status)
		items = append(items, item)
	}
	return items, rows.Err()
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
