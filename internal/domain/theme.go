package domain

import (
	"regexp"
	"time"
	"unicode/utf8"
)

type AccessTier string

const (
	AccessTierFree AccessTier = "free"
	AccessTierPro  AccessTier = "pro"
)

func (t AccessTier) Valid() bool {
	return t == AccessTierFree || t == AccessTierPro
}

const (
	SlugMinLen     = 2
	SlugMaxLen     = 64
	NameMinLen     = 2
	NameMaxLen     = 120
	TemplateMinLen = 10
	TemplateMaxLen = 20000
)

// SlugPatternMessage is returned when a slug contains anything but a-z, 0-9 and '-'.
const SlugPatternMessage = "Slug must be lowercase letters/numbers/hyphens"

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Theme is an admin-curated prompt template users pick from.
type Theme struct {
	ID             string     `json:"id"`
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	PromptTemplate string     `json:"prompt_template"`
	IsActive       bool       `json:"is_active"`
	AccessTier     AccessTier `json:"access_tier"`
	SortOrder      int        `json:"sort_order"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ThemeSummary is the public projection of an active theme.
type ThemeSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ThemeInput carries admin writes. Nil fields are absent: on create they take
// defaults, on update they are left untouched.
type ThemeInput struct {
	Slug           *string
	Name           *string
	PromptTemplate *string
	IsActive       *bool
	AccessTier     *AccessTier
	SortOrder      *int
}

// ValidateSlug checks length first, then the character set.
func ValidateSlug(slug string) error {
	n := utf8.RuneCountInString(slug)
	if n < SlugMinLen {
		return NewValidationError("slug", "slug must be at least %d characters", SlugMinLen)
	}
	if n > SlugMaxLen {
		return NewValidationError("slug", "slug must be at most %d characters", SlugMaxLen)
	}
	if !slugPattern.MatchString(slug) {
		return &ValidationError{Field: "slug", Message: SlugPatternMessage}
	}
	return nil
}

// ValidateForCreate requires slug, name and prompt_template and applies the
// defaults for the rest.
func (in *ThemeInput) ValidateForCreate() error {
	if in.Slug == nil {
		return NewValidationError("slug", "slug is required")
	}
	if in.Name == nil {
		return NewValidationError("name", "name is required")
	}
	if in.PromptTemplate == nil {
		return NewValidationError("prompt_template", "prompt_template is required")
	}
	if err := in.ValidateForUpdate(); err != nil {
		return err
	}
	if in.IsActive == nil {
		active := true
		in.IsActive = &active
	}
	if in.AccessTier == nil {
		tier := AccessTierFree
		in.AccessTier = &tier
	}
	if in.SortOrder == nil {
		order := 0
		in.SortOrder = &order
	}
	return nil
}

// ValidateForUpdate validates only the supplied fields.
func (in *ThemeInput) ValidateForUpdate() error {
	if in.Slug != nil {
		if err := ValidateSlug(*in.Slug); err != nil {
			return err
		}
	}
	if in.Name != nil {
		if err := checkLength("name", *in.Name, NameMinLen, NameMaxLen); err != nil {
			return err
		}
	}
	if in.PromptTemplate != nil {
		if err := checkLength("prompt_template", *in.PromptTemplate, TemplateMinLen, TemplateMaxLen); err != nil {
			return err
		}
	}
	if in.AccessTier != nil && !in.AccessTier.Valid() {
		return NewValidationError("access_tier", "access_tier must be one of free, pro")
	}
	return nil
}

// Empty reports whether no field was supplied.
func (in ThemeInput) Empty() bool {
	return in.Slug == nil && in.Name == nil && in.PromptTemplate == nil &&
		in.IsActive == nil && in.AccessTier == nil && in.SortOrder == nil
}

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen {
		return NewValidationError(field, "%s must be at least %d characters", field, minLen)
	}
	if n > maxLen {
		return NewValidationError(field, "%s must be at most %d characters", field, maxLen)
	}
	return nil
}
