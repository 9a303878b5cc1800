// Package render composes design preview images: the design text centered
// over a solid background of the design color, with a contrast-chosen text
// color, plus a proportionally scaled thumbnail.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/printforge/printforge/internal/domain"
)

// Canvas and output constants.
const (
	PreviewWidth  = 600
	PreviewHeight = 600

	// ThumbnailMaxSize bounds both thumbnail dimensions; aspect ratio is
	// preserved.
	ThumbnailMaxSize = 200

	// DefaultFontSize is used when the payload carries no fontSize.
	DefaultFontSize = 48.0
)

// =============================================================================
// Interface Definition
// =============================================================================

// Renderer produces preview and thumbnail artifacts from a design payload.
type Renderer interface {
	// RenderPreview composes the full-size preview as PNG bytes.
	RenderPreview(data domain.DesignData) ([]byte, error)

	// Thumbnail derives a thumbnail (PNG) from preview bytes, bounded to
	// ThumbnailMaxSize on each side with aspect ratio preserved.
	Thumbnail(preview []byte) ([]byte, error)
}

// =============================================================================
// Implementation
// =============================================================================

// ImageRenderer implements Renderer with embedded typefaces. The five
// whitelisted catalog font names map to bundled faces so rendering never
// depends on fonts installed on the host.
type ImageRenderer struct {
	fonts map[string]*opentype.Font
}

// NewImageRenderer parses the embedded typefaces once.
func NewImageRenderer() (*ImageRenderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	italic, err := opentype.Parse(goitalic.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse italic font: %w", err)
	}

	return &ImageRenderer{
		fonts: map[string]*opentype.Font{
			"Bebas-Bold":         bold,
			"Montserrat-Regular": regular,
			"Montserrat-Bold":    bold,
			"Pacifico-Regular":   italic,
			"Roboto-Regular":     regular,
		},
	}, nil
}

// RenderPreview composes the preview: solid background of the payload
// color, text centered in the requested face and size, text color chosen
// dark-on-light or light-on-dark by relative luminance.
func (r *ImageRenderer) RenderPreview(data domain.DesignData) ([]byte, error) {
	bg, err := ParseHexColor(data.Color())
	if err != nil {
		return nil, err
	}

	fnt, ok := r.fonts[data.Font()]
	if !ok {
		return nil, fmt.Errorf("no typeface for font %q", data.Font())
	}

	size, ok := data.FontSize()
	if !ok {
		size = DefaultFontSize
	}

	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	canvas := imaging.New(PreviewWidth, PreviewHeight, bg)

	textColor := color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	if IsLightColor(data.Color()) {
		textColor = color.NRGBA{A: 0xFF}
	}

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(textColor),
		Face: face,
	}

	// Center the text on the canvas: horizontal by advance width,
	// vertical by placing the baseline so ascent and descent balance.
	text := data.Text()
	metrics := face.Metrics()
	textWidth := drawer.MeasureString(text)
	x := (fixed.I(PreviewWidth) - textWidth) / 2
	y := (fixed.I(PreviewHeight)-(metrics.Ascent+metrics.Descent))/2 + metrics.Ascent
	drawer.Dot = fixed.Point26_6{X: x, Y: y}
	drawer.DrawString(text)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail derives a proportionally scaled copy of the preview.
func (r *ImageRenderer) Thumbnail(preview []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(preview))
	if err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}

	thumb := imaging.Fit(img, ThumbnailMaxSize, ThumbnailMaxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// Color Helpers
// =============================================================================

// ParseHexColor parses a #RRGGBB color string.
func ParseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) != 7 || hex[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid hex color: %q", hex)
	}

	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color: %q", hex)
	}

	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xFF,
	}, nil
}

// IsLightColor reports whether a background color is light, using the
// relative luminance L = (0.299R + 0.587G + 0.114B) / 255 with a 0.5
// threshold. Light backgrounds get dark text and vice versa. Unparseable
// colors count as dark.
func IsLightColor(hex string) bool {
	c, err := ParseHexColor(hex)
	if err != nil {
		return false
	}

	luminance := (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
	return luminance > 0.5
}
