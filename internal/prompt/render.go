// Package prompt turns a theme template into the final provider prompt.
package prompt

import "strings"

const (
	DefaultAspect = "4:5 portrait"
	DefaultStyle  = "cinematic, gritty, high-end, clean composition, symmetrical balance, space reserved for typography overlay later, no text"

	// NoTextClause is appended when the rendered prompt does not already ask for no text.
	NoTextClause = "Absolutely no text, no typography, no letters, no logos, no watermarks, no signage."
)

// Vars are the values substituted into a template. Empty Aspect and Style
// fall back to the defaults.
type Vars struct {
	Aspect    string
	Style     string
	ThemeName string
	ThemeSlug string
}

// Render replaces {{ASPECT}}, {{STYLE}}, {{THEME_NAME}} and {{THEME_SLUG}}
// everywhere in template. Other {{TOKENS}} are left as written.
func Render(template string, vars Vars) string {
	aspect := vars.Aspect
	if aspect == "" {
		aspect = DefaultAspect
	}
	style := vars.Style
	if style == "" {
		style = DefaultStyle
	}

	out := strings.NewReplacer(
		"{{ASPECT}}", aspect,
		"{{STYLE}}", style,
		"{{THEME_NAME}}", vars.ThemeName,
		"{{THEME_SLUG}}", vars.ThemeSlug,
	).Replace(template)

	if !strings.Contains(strings.ToLower(out), "no text") {
		out += "\n\n" + NoTextClause + "\n"
	}
	return out
}
