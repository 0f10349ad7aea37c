package domain

import "context"

type ThemeRepository interface {
	ListActive(ctx context.Context) ([]ThemeSummary, error)
	ListAll(ctx context.Context) ([]Theme, error)
	GetActive(ctx context.Context, id string) (*Theme, error)
	Create(ctx context.Context, in ThemeInput) (*Theme, error)
	Update(ctx context.Context, id string, in ThemeInput) (*Theme, error)
	Delete(ctx context.Context, id string) error
}

// GenerationRepository scopes every read by owner and guards every status
// write with the expected previous status.
type GenerationRepository interface {
	Create(ctx context.Context, userID, themeID string, input GenerationInput) (*Generation, error)
	MarkGenerating(ctx context.Context, id, promptFinal, photoPath string) error
	MarkSucceeded(ctx context.Context, id, resultPath string, width, height int) error
	MarkFailed(ctx context.Context, id, message string) error
	GetForUser(ctx context.Context, id, userID string) (*Generation, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]GenerationSummary, error)
}
