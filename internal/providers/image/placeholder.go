package image

import (
	"bytes"
	"context"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
)

const (
	PlaceholderWidth  = 1024
	PlaceholderHeight = 1280
)

// Placeholder produces a fixed 4:5 gradient with a soft vignette so the full
// flow works without provider credentials. The image has no text.
type Placeholder struct {
	once sync.Once
	png  []byte
	err  error
}

func NewPlaceholder() *Placeholder {
	return &Placeholder{}
}

func (p *Placeholder) Generate(ctx context.Context, _ Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.once.Do(func() {
		p.png, p.err = renderPlaceholder()
	})
	if p.err != nil {
		return nil, p.err
	}
	return &Result{
		Data:        append([]byte(nil), p.png...),
		ContentType: "image/png",
		Width:       PlaceholderWidth,
		Height:      PlaceholderHeight,
	}, nil
}

func renderPlaceholder() ([]byte, error) {
	w, h := float64(PlaceholderWidth), float64(PlaceholderHeight)
	dc := gg.NewContext(PlaceholderWidth, PlaceholderHeight)

	base := gg.NewLinearGradient(0, 0, 0, h)
	base.AddColorStop(0, color.RGBA{R: 20, G: 18, B: 28, A: 255})
	base.AddColorStop(1, color.RGBA{R: 60, G: 44, B: 108, A: 255})
	dc.SetFillStyle(base)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	// Darkening grows linearly with distance from the centre, up to 90% at the corners.
	cx, cy := w/2, h/2
	vignette := gg.NewRadialGradient(cx, cy, 0, cx, cy, math.Hypot(cx, cy))
	vignette.AddColorStop(0, color.RGBA{A: 0})
	vignette.AddColorStop(1, color.RGBA{A: 230})
	dc.SetFillStyle(vignette)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ Generator = (*Placeholder)(nil)
