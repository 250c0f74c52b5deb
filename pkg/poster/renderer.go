package poster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"converse/pkg/domain"
)

// Canvas dimensions for every rendered poster.
const (
	CanvasWidth  = 800
	CanvasHeight = 1100
)

// Renderer composes the final poster image from the saved editor session.
type Renderer struct {
	fontPath string
}

// NewRenderer builds a renderer. fontPath may be empty, in which case the
// built-in face is used for the caption.
func NewRenderer(fontPath string) *Renderer {
	return &Renderer{fontPath: fontPath}
}

// Render draws the session's image and caption onto the poster canvas and
// returns the encoded PNG.
func (r *Renderer) Render(session domain.PosterSession) ([]byte, error) {
	dc := gg.NewContext(CanvasWidth, CanvasHeight)
	dc.SetHexColor("#1a1a2e")
	dc.Clear()

	if session.CanvasImage != "" {
		img, err := decodeDataURL(session.CanvasImage)
		if err != nil {
			return nil, fmt.Errorf("decode poster image: %w", err)
		}
		w, h := int(session.ImageSize.Width), int(session.ImageSize.Height)
		if w <= 0 || h <= 0 {
			bounds := img.Bounds()
			w, h = bounds.Dx(), bounds.Dy()
		}
		scaled := scaleImage(img, w, h)
		dc.DrawImage(scaled, int(session.ImagePosition.X), int(session.ImagePosition.Y))
	}

	if session.PosterName != "" {
		size := session.TextSize
		if size <= 0 {
			size = 48
		}
		if r.fontPath != "" {
			if err := dc.LoadFontFace(r.fontPath, size); err != nil {
				return nil, fmt.Errorf("load font face: %w", err)
			}
		}
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(session.PosterName, session.TextPosition.X, session.TextPosition.Y, 0.5, 0.5)
	}

	var out bytes.Buffer
	if err := dc.EncodePNG(&out); err != nil {
		return nil, fmt.Errorf("encode poster png: %w", err)
	}
	return out.Bytes(), nil
}

func scaleImage(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// decodeDataURL accepts either a data: URL or bare base64 image bytes.
func decodeDataURL(data string) (image.Image, error) {
	payload := data
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		payload = data[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
