package poster

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"converse/pkg/domain"
)

func encodeTestImage(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRenderProducesCanvasSizedPNG(t *testing.T) {
	r := NewRenderer("")
	session := domain.PosterSession{
		CanvasImage:   encodeTestImage(t, 40, 40),
		PosterName:    "Ada Lovelace",
		TextSize:      48,
		TextPosition:  domain.Point{X: 400, Y: 1000},
		ImagePosition: domain.Point{X: 100, Y: 100},
		ImageSize:     domain.Size{Width: 600, Height: 600},
	}

	data, err := r.Render(session)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode rendered png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != CanvasWidth || bounds.Dy() != CanvasHeight {
		t.Fatalf("canvas = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), CanvasWidth, CanvasHeight)
	}

	// The background fill must survive where nothing was drawn.
	r0, g0, b0, _ := img.At(5, 5).RGBA()
	if r0>>8 != 0x1a || g0>>8 != 0x1a || b0>>8 != 0x2e {
		t.Fatalf("background = %x %x %x, want 1a 1a 2e", r0>>8, g0>>8, b0>>8)
	}

	// The scaled user image must cover its placement.
	r1, _, _, _ := img.At(300, 300).RGBA()
	if r1>>8 < 150 {
		t.Fatalf("expected user image pixel at 300,300, got red=%d", r1>>8)
	}
}

func TestRenderRejectsMalformedImage(t *testing.T) {
	r := NewRenderer("")
	_, err := r.Render(domain.PosterSession{CanvasImage: "data:image/png;base64,!!!!"})
	if err == nil {
		t.Fatal("expected error for malformed base64")
	}
}

func TestRenderWithoutImage(t *testing.T) {
	r := NewRenderer("")
	data, err := r.Render(domain.PosterSession{PosterName: "Text Only", TextSize: 36, TextPosition: domain.Point{X: 400, Y: 550}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("decode rendered png: %v", err)
	}
}
