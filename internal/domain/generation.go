package domain

import (
	"time"
	"unicode/utf8"
)

type GenerationStatus string

const (
	StatusDraft      GenerationStatus = "draft"
	StatusQueued     GenerationStatus = "queued"
	StatusGenerating GenerationStatus = "generating"
	StatusSucceeded  GenerationStatus = "succeeded"
	StatusFailed     GenerationStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s GenerationStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransitionTo encodes the forward-only lifecycle. queued→failed covers
// failures before the provider is reached.
func (s GenerationStatus) CanTransitionTo(next GenerationStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusQueued
	case StatusQueued:
		return next == StatusGenerating || next == StatusFailed
	case StatusGenerating:
		return next == StatusSucceeded || next == StatusFailed
	default:
		return false
	}
}

const (
	TitleMaxLen    = 120
	SubtitleMaxLen = 200
	ContactMaxLen  = 200
)

// GenerationInput holds the optional poster text the user typed.
type GenerationInput struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Contact  string `json:"contact,omitempty"`
}

func (in GenerationInput) Validate() error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"title", in.Title, TitleMaxLen},
		{"subtitle", in.Subtitle, SubtitleMaxLen},
		{"contact", in.Contact, ContactMaxLen},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > f.max {
			return NewValidationError(f.name, "%s must be at most %d characters", f.name, f.max)
		}
	}
	return nil
}

// Generation is one request/result record, owned by UserID.
type Generation struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	ThemeID         *string          `json:"theme_id"`
	Status          GenerationStatus `json:"status"`
	Input           GenerationInput  `json:"input"`
	PromptFinal     *string          `json:"prompt_final"`
	DogPhotoPath    *string          `json:"dog_photo_path"`
	ResultImagePath *string          `json:"result_image_path"`
	ImageWidth      *int             `json:"image_width"`
	ImageHeight     *int             `json:"image_height"`
	Error           *string          `json:"error"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// GenerationSummary is a gallery row.
type GenerationSummary struct {
	ID              string           `json:"id"`
	Status          GenerationStatus `json:"status"`
	ResultImagePath *string          `json:"result_image_path"`
	CreatedAt       time.Time        `json:"created_at"`
}
