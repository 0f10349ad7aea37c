// Package image is the adapter around the third-party image generation
// provider. The provider's wire format is configuration, so the adapter is a
// JSON template on the way out and a configurable decoder on the way back.
package image

import "context"

// Request is one generation call.
type Request struct {
	Prompt            string
	Aspect            string
	ReferenceImageURL string
}

// Result is the generated image.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Generator is the contract implemented by the provider adapter and the
// offline placeholder.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
