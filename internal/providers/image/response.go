package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// payload is an image body before dimensions are known.
type payload struct {
	data        []byte
	contentType string
}

// responseDecoder turns a successful provider response into image bytes.
type responseDecoder interface {
	decode(ctx context.Context, header http.Header, body []byte) (*payload, error)
}

type fetchFunc func(ctx context.Context, rawURL string) (*payload, error)

var errFieldMissing = errors.New("field missing")

func newResponseDecoder(mode ResponseMode, opts Options, fetch fetchFunc) responseDecoder {
	b64 := jsonBase64Decoder{field: opts.Base64Field, contentTypeField: opts.ContentTypeField}
	link := jsonURLDecoder{field: opts.URLField, fetch: fetch}
	switch mode {
	case ResponseModeImage:
		return rawImageDecoder{}
	case ResponseModeJSONBase64:
		return b64
	case ResponseModeJSONURL:
		return link
	default:
		return autoDecoder{base64: b64, url: link}
	}
}

type rawImageDecoder struct{}

func (rawImageDecoder) decode(_ context.Context, header http.Header, body []byte) (*payload, error) {
	return imagePayload(header.Get("Content-Type"), body)
}

func imagePayload(contentType string, body []byte) (*payload, error) {
	if len(body) == 0 {
		return nil, errors.New("provider returned an empty image body")
	}
	ct := mediaType(contentType)
	if !strings.HasPrefix(ct, "image/") {
		ct = mediaType(http.DetectContentType(body))
	}
	return &payload{data: body, contentType: ct}, nil
}

type jsonBase64Decoder struct {
	field            string
	contentTypeField string
}

func (d jsonBase64Decoder) decode(_ context.Context, _ http.Header, body []byte) (*payload, error) {
	doc, err := parseJSON(body)
	if err != nil {
		return nil, err
	}
	p, err := d.fromDoc(doc)
	if errors.Is(err, errFieldMissing) {
		return nil, fmt.Errorf("provider response missing %q", d.field)
	}
	return p, err
}

func (d jsonBase64Decoder) fromDoc(doc any) (*payload, error) {
	raw, ok := lookupString(doc, d.field)
	if !ok {
		return nil, errFieldMissing
	}
	declared := ""
	if d.contentTypeField != "" {
		declared, _ = lookupString(doc, d.contentTypeField)
	}
	if strings.HasPrefix(raw, "data:") {
		meta, encoded, found := strings.Cut(raw, ",")
		if !found {
			return nil, errors.New("provider returned a malformed data URL")
		}
		if declared == "" {
			declared = strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
		}
		raw = encoded
	}
	data, err := decodeBase64(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", d.field, err)
	}
	return imagePayload(declared, data)
}

type jsonURLDecoder struct {
	field string
	fetch fetchFunc
}

func (d jsonURLDecoder) decode(ctx context.Context, _ http.Header, body []byte) (*payload, error) {
	doc, err := parseJSON(body)
	if err != nil {
		return nil, err
	}
	p, err := d.fromDoc(ctx, doc)
	if errors.Is(err, errFieldMissing) {
		return nil, fmt.Errorf("provider response missing %q", d.field)
	}
	return p, err
}

func (d jsonURLDecoder) fromDoc(ctx context.Context, doc any) (*payload, error) {
	link, ok := lookupString(doc, d.field)
	if !ok {
		return nil, errFieldMissing
	}
	return d.fetch(ctx, link)
}

// autoDecoder accepts raw images and JSON carrying either base64 or a URL.
type autoDecoder struct {
	base64 jsonBase64Decoder
	url    jsonURLDecoder
}

func (d autoDecoder) decode(ctx context.Context, header http.Header, body []byte) (*payload, error) {
	ct := mediaType(header.Get("Content-Type"))
	if strings.HasPrefix(ct, "image/") {
		return imagePayload(ct, body)
	}
	// octet-stream and other generic types: trust the bytes
	if sniffed := mediaType(http.DetectContentType(body)); strings.HasPrefix(sniffed, "image/") {
		return imagePayload(sniffed, body)
	}
	if !looksLikeJSON(ct, body) {
		return nil, fmt.Errorf("unexpected provider content type %q", ct)
	}
	doc, err := parseJSON(body)
	if err != nil {
		return nil, err
	}
	p, err := d.base64.fromDoc(doc)
	if !errors.Is(err, errFieldMissing) {
		return p, err
	}
	p, err = d.url.fromDoc(ctx, doc)
	if !errors.Is(err, errFieldMissing) {
		return p, err
	}
	return nil, fmt.Errorf("provider response missing %q and %q", d.base64.field, d.url.field)
}

func looksLikeJSON(ct string, body []byte) bool {
	if strings.Contains(ct, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func parseJSON(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode provider json: %w", err)
	}
	return doc, nil
}

// lookupString resolves a dotted path such as "data.0.b64_json"; numeric
// segments index arrays.
func lookupString(doc any, path string) (string, bool) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return "", false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}
			cur = node[idx]
		default:
			return "", false
		}
	}
	s, ok := cur.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func decodeBase64(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if data, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mt)
}
