// Package generation runs the photo-to-poster lifecycle inline within one
// request: upload, prompt rendering, provider call and result storage.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"posterstudio/internal/domain"
	"posterstudio/internal/infra"
	"posterstudio/internal/prompt"
	image "posterstudio/internal/providers/image"
	"posterstudio/internal/storage"
)

const (
	DefaultHardTimeout = 55 * time.Second
	// failureWriteTimeout bounds the detached write that records a failure.
	failureWriteTimeout = 10 * time.Second

	// ProviderAspect is the ratio sent to the provider; the prompt itself
	// describes the orientation with prompt.DefaultAspect.
	ProviderAspect = "4:5"
)

type Options struct {
	HardTimeout time.Duration
}

// Upload is the reference photo submitted by the user.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type StartRequest struct {
	UserID  string
	ThemeID string
	Input   domain.GenerationInput
	Photo   Upload
}

type Service struct {
	themes   domain.ThemeRepository
	gens     domain.GenerationRepository
	store    storage.Store
	provider image.Generator
	logger   zerolog.Logger
	tracer   trace.Tracer
	opts     Options
	newID    func() string
}

func NewService(themes domain.ThemeRepository, gens domain.GenerationRepository, store storage.Store, provider image.Generator, logger zerolog.Logger, opts Options) *Service {
	if opts.HardTimeout <= 0 {
		opts.HardTimeout = DefaultHardTimeout
	}
	return &Service{
		themes:   themes,
		gens:     gens,
		store:    store,
		provider: provider,
		logger:   infra.Component(logger, "generation"),
		tracer:   otel.Tracer("posterstudio/generation"),
		opts:     opts,
		newID:    func() string { return uuid.NewString() },
	}
}

// Start validates the theme, records a queued generation and runs it to a
// terminal state. Failures after the row exists are written to the row
// before the error is returned. Exceeding the hard timeout returns
// domain.ErrTimeout.
func (s *Service) Start(ctx context.Context, req StartRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "generation.start", trace.WithAttributes(
		attribute.String("theme.id", req.ThemeID),
	))
	defer span.End()

	if err := req.Input.Validate(); err != nil {
		return "", err
	}
	if len(req.Photo.Data) == 0 {
		return "", domain.NewValidationError("dogPhoto", "Upload required")
	}

	theme, err := s.themes.GetActive(ctx, req.ThemeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidTheme
		}
		return "", fmt.Errorf("load theme: %w", err)
	}

	gen, err := s.gens.Create(ctx, req.UserID, theme.ID, req.Input)
	if err != nil {
		return "", fmt.Errorf("create generation: %w", err)
	}
	span.SetAttributes(attribute.String("generation.id", gen.ID))
	log := s.logger.With().Str("generation_id", gen.ID).Str("theme", theme.Slug).Logger()
	log.Info().Msg("generation queued")

	runCtx, cancel := context.WithTimeout(ctx, s.opts.HardTimeout)
	defer cancel()

	// Storage clients do not all honour ctx, so the steps run in their own
	// goroutine and the deadline is enforced here.
	done := make(chan error, 1)
	go func() {
		done <- s.run(runCtx, gen.ID, req, theme)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-runCtx.Done():
		select {
		case runErr = <-done:
		default:
			runErr = runCtx.Err()
		}
	}
	if runErr == nil {
		log.Info().Msg("generation succeeded")
		return gen.ID, nil
	}

	if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		runErr = domain.ErrTimeout
	}
	if succeeded := s.recordFailure(ctx, log, gen.ID, req.UserID, runErr); succeeded {
		// mark_succeeded committed just as the deadline fired
		log.Info().Err(runErr).Msg("generation succeeded at the deadline")
		return gen.ID, nil
	}
	span.RecordError(runErr)
	span.SetStatus(codes.Error, runErr.Error())
	return "", runErr
}

func (s *Service) run(ctx context.Context, genID string, req StartRequest, theme *domain.Theme) error {
	uploadPath := storage.UploadPath(req.UserID, s.newID(),
		storage.GuessExtension(req.Photo.Filename, req.Photo.ContentType, req.Photo.Data))
	contentType := req.Photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.step(ctx, "upload_photo", func(ctx context.Context) error {
		return s.store.Put(ctx, storage.BucketUploads, uploadPath, req.Photo.Data, contentType)
	}); err != nil {
		return err
	}

	var referenceURL string
	if err := s.step(ctx, "sign_reference", func(ctx context.Context) error {
		var err error
		referenceURL, err = s.store.SignedURL(ctx, storage.BucketUploads, uploadPath, storage.ReferenceURLTTL)
		return err
	}); err != nil {
		return err
	}

	promptFinal := prompt.Render(theme.PromptTemplate, prompt.Vars{
		Aspect:    prompt.DefaultAspect,
		ThemeName: theme.Name,
		ThemeSlug: theme.Slug,
	})

	if err := s.step(ctx, "mark_generating", func(ctx context.Context) error {
		return s.gens.MarkGenerating(ctx, genID, promptFinal, uploadPath)
	}); err != nil {
		return err
	}

	var result *image.Result
	if err := s.step(ctx, "provider_generate", func(ctx context.Context) error {
		var err error
		result, err = s.provider.Generate(ctx, image.Request{
			Prompt:            promptFinal,
			Aspect:            ProviderAspect,
			ReferenceImageURL: referenceURL,
		})
		return err
	}); err != nil {
		return err
	}

	resultPath := storage.GeneratedPath(req.UserID, genID)
	if err := s.step(ctx, "store_result", func(ctx context.Context) error {
		return s.store.Put(ctx, storage.BucketGenerated, resultPath, result.Data, result.ContentType)
	}); err != nil {
		return err
	}

	return s.step(ctx, "mark_succeeded", func(ctx context.Context) error {
		return s.gens.MarkSucceeded(ctx, genID, resultPath, result.Width, result.Height)
	})
}

func (s *Service) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "generation."+name)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// recordFailure writes the failure on a context detached from the request
// so it survives the hard timeout and client disconnects. It reports true
// when the row had already reached succeeded, in which case nothing is
// written.
func (s *Service) recordFailure(ctx context.Context, log zerolog.Logger, genID, userID string, cause error) bool {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	message := cause.Error()
	if errors.Is(cause, domain.ErrTimeout) {
		message = domain.ErrTimeout.Error()
	}
	err := s.gens.MarkFailed(writeCtx, genID, message)
	if errors.Is(err, domain.ErrInvalidTransition) {
		row, getErr := s.gens.GetForUser(writeCtx, genID, userID)
		if getErr == nil && row.Status == domain.StatusSucceeded {
			return true
		}
	}
	log.Warn().Err(cause).Msg("generation failed")
	if err != nil {
		log.Error().Err(err).Msg("record generation failure")
	}
	return false
}
