package generation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"posterstudio/internal/domain"
	"posterstudio/internal/storage"
)

const (
	DefaultListLimit = 25
	MaxListLimit     = 100

	signConcurrency = 8
)

// View is a generation row plus a short-lived URL for its result.
type View struct {
	*domain.Generation
	SignedURL *string `json:"signedUrl"`
}

// GalleryItem is one entry of a user's gallery.
type GalleryItem struct {
	domain.GenerationSummary
	Thumb *string `json:"thumb"`
}

// Get returns the caller's generation. Rows owned by other users are
// reported as domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id string) (*View, error) {
	gen, err := s.gens.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	view := &View{Generation: gen}
	if gen.Status == domain.StatusSucceeded && gen.ResultImagePath != nil {
		url, err := s.store.SignedURL(ctx, storage.BucketGenerated, *gen.ResultImagePath, storage.ViewURLTTL)
		if err != nil {
			return nil, err
		}
		view.SignedURL = &url
	}
	return view, nil
}

// List returns the caller's most recent generations. Thumbnails are signed
// concurrently; a failed signature leaves Thumb empty.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]GalleryItem, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	rows, err := s.gens.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]GalleryItem, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for i, row := range rows {
		items[i] = GalleryItem{GenerationSummary: row}
		if row.Status != domain.StatusSucceeded || row.ResultImagePath == nil {
			continue
		}
		g.Go(func() error {
			url, err := s.store.SignedURL(gctx, storage.BucketGenerated, *row.ResultImagePath, storage.ViewURLTTL)
			if err != nil {
				s.logger.Warn().Err(err).Str("generation_id", row.ID).Msg("sign gallery thumbnail")
				return nil
			}
			items[i].Thumb = &url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
