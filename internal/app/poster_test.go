package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"converse/pkg/domain"
	"converse/pkg/payment"
)

func testCanvasImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{R: 10, G: 200, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode canvas: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func savePoster(t *testing.T, env *testEnv) string {
	t.Helper()
	sessionID, checkoutURL, err := env.app.SavePosterSession(context.Background(), PosterInput{
		CanvasImage:   testCanvasImage(t),
		PosterName:    "Ada Lovelace",
		TextSize:      48,
		TextPosition:  domain.Point{X: 400, Y: 1000},
		ImagePosition: domain.Point{X: 100, Y: 100},
		ImageSize:     domain.Size{Width: 200, Height: 200},
	})
	if err != nil {
		t.Fatalf("save poster session: %v", err)
	}
	if checkoutURL == "" {
		t.Fatal("checkout url missing")
	}
	return sessionID
}

func TestSavePosterSessionOpensCheckout(t *testing.T) {
	env := newTestEnv(t)
	sessionID := savePoster(t, env)

	session, err := env.app.GetPosterSession(sessionID)
	if err != nil {
		t.Fatalf("get poster session: %v", err)
	}
	if session.Status != domain.PosterPending {
		t.Fatalf("status = %q, want pending", session.Status)
	}
	if session.StripeSessionID != "cs_"+sessionID {
		t.Fatalf("stripe session = %q", session.StripeSessionID)
	}
	if len(env.checkout.sessions) != 1 || env.checkout.sessions[0] != sessionID {
		t.Fatalf("checkout sessions = %v", env.checkout.sessions)
	}
}

func TestCheckoutCompletedRendersAndDelivers(t *testing.T) {
	env := newTestEnv(t)
	sessionID := savePoster(t, env)
	env.events.event = payment.Event{
		Type:         payment.EventCheckoutCompleted,
		SessionID:    sessionID,
		Email:        "ada@example.com",
		CustomerName: "Ada",
	}

	if err := env.app.HandleCheckoutEvent(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	session, err := env.app.GetPosterSession(sessionID)
	if err != nil {
		t.Fatalf("get poster session: %v", err)
	}
	if session.Status != domain.PosterPaid {
		t.Fatalf("status = %q, want paid", session.Status)
	}
	if session.PosterURL == "" {
		t.Fatal("poster url missing after completion")
	}
	if len(env.objects.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(env.objects.uploads))
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0] != "ada@example.com" {
		t.Fatalf("mail recipients = %v", env.mailer.sent)
	}
}

func TestCheckoutCompletedSwallowsProcessingErrors(t *testing.T) {
	env := newTestEnv(t)
	sessionID := savePoster(t, env)
	env.objects.err = errors.New("storage down")
	env.events.event = payment.Event{
		Type:      payment.EventCheckoutCompleted,
		SessionID: sessionID,
		Email:     "ada@example.com",
	}

	if err := env.app.HandleCheckoutEvent(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("processing failures must not surface: %v", err)
	}
	session, _ := env.app.GetPosterSession(sessionID)
	if session.Status != domain.PosterPending {
		t.Fatalf("status = %q, want still pending", session.Status)
	}
}

func TestCheckoutExpiredMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	sessionID := savePoster(t, env)
	env.events.event = payment.Event{
		Type:      payment.EventCheckoutExpired,
		SessionID: sessionID,
	}

	if err := env.app.HandleCheckoutEvent(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	session, _ := env.app.GetPosterSession(sessionID)
	if session.Status != domain.PosterFailed {
		t.Fatalf("status = %q, want failed", session.Status)
	}
}

func TestHandleCheckoutEventBadSignature(t *testing.T) {
	env := newTestEnv(t)
	env.events.err = errors.New("bad signature")
	if err := env.app.HandleCheckoutEvent(context.Background(), []byte("{}"), "sig"); err == nil {
		t.Fatal("expected signature error to surface")
	}
}

func TestGenerateAnimeValidation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.app.GenerateAnime(context.Background(), nil, ""); !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("empty upload error = %v", err)
	}
	oversized := make([]byte, MaxAnimeImageBytes+1)
	if _, err := env.app.GenerateAnime(context.Background(), oversized, "image/png"); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("oversized error = %v", err)
	}
	if _, err := env.app.GenerateAnime(context.Background(), []byte("%PDF-1.4"), "application/pdf"); !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("non-image error = %v", err)
	}
}

func TestGenerateAnimeUploadsResult(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.app.GenerateAnime(context.Background(), []byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
	if err != nil {
		t.Fatalf("generate anime: %v", err)
	}
	if result.URL == "" || result.FileID == "" {
		t.Fatalf("result = %+v", result)
	}
	if len(env.objects.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(env.objects.uploads))
	}
}

func TestGenerateAnimeGeneratorFailure(t *testing.T) {
	env := newTestEnv(t)
	env.stylizer.err = errors.New("model offline")
	if _, err := env.app.GenerateAnime(context.Background(), []byte{0xFF, 0xD8, 0xFF}, "image/jpeg"); !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("error = %v, want ErrGenerationUnavailable", err)
	}
}
