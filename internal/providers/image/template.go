package image

import (
	"encoding/json"
	"errors"
	"strings"
)

var errInvalidTemplate = errors.New("invalid JSON in PROVIDER_REQUEST_TEMPLATE_JSON")

// requestTemplate is the parsed request body template. Placeholders are
// substituted inside string values only, so the rendered body is valid JSON
// whatever the prompt contains.
type requestTemplate struct {
	root any
}

func parseRequestTemplate(raw string) (*requestTemplate, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, errInvalidTemplate
	}
	return &requestTemplate{root: root}, nil
}

func (t *requestTemplate) render(vars map[string]string) ([]byte, error) {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return json.Marshal(renderValue(t.root, strings.NewReplacer(pairs...)))
}

func renderValue(value any, r *strings.Replacer) any {
	switch v := value.(type) {
	case string:
		return r.Replace(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = renderValue(item, r)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = renderValue(item, r)
		}
		return out
	default:
		return v
	}
}
