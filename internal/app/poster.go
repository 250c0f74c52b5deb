package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"converse/pkg/domain"
	"converse/pkg/payment"
	"converse/pkg/store"
)

// MaxAnimeImageBytes caps the upload size for anime stylization.
const MaxAnimeImageBytes = 5 << 20

const posterLinkTTL = 7 * 24 * time.Hour

// PosterInput carries the editor state submitted at checkout time.
type PosterInput struct {
	CanvasImage   string
	PosterName    string
	TextSize      float64
	TextPosition  domain.Point
	ImagePosition domain.Point
	ImageSize     domain.Size
}

// AnimeResult is the stored output of an anime stylization call.
type AnimeResult struct {
	URL    string
	FileID string
}

// SavePosterSession persists the editor state and opens a hosted checkout
// for it. The returned URL is where the client redirects for payment.
func (a *App) SavePosterSession(ctx context.Context, in PosterInput) (string, string, error) {
	if strings.TrimSpace(in.CanvasImage) == "" {
		return "", "", fmt.Errorf("canvas image required")
	}
	sessionID := uuid.NewString()
	now := time.Now().UTC()
	session := domain.PosterSession{
		SessionID:     sessionID,
		CanvasImage:   in.CanvasImage,
		PosterName:    strings.TrimSpace(in.PosterName),
		TextSize:      in.TextSize,
		TextPosition:  in.TextPosition,
		ImagePosition: in.ImagePosition,
		ImageSize:     in.ImageSize,
		Status:        domain.PosterPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.CreatePosterSession(session); err != nil {
		return "", "", fmt.Errorf("save poster session: %w", err)
	}
	checkout, err := a.checkout.CreateCheckout(ctx, sessionID, session.PosterName)
	if err != nil {
		return "", "", fmt.Errorf("create checkout: %w", err)
	}
	if err := a.store.SetPosterCheckout(sessionID, checkout.ID); err != nil {
		return "", "", fmt.Errorf("link checkout: %w", err)
	}
	return sessionID, checkout.URL, nil
}

// GetPosterSession returns the poster session state for polling.
func (a *App) GetPosterSession(sessionID string) (domain.PosterSession, error) {
	session, ok, err := a.store.GetPosterSession(sessionID)
	if err != nil {
		return domain.PosterSession{}, fmt.Errorf("load poster session: %w", err)
	}
	if !ok {
		return domain.PosterSession{}, ErrPosterSessionNotFound
	}
	return session, nil
}

// HandleCheckoutEvent verifies and processes one webhook delivery. A
// signature failure is the only error returned; once the payload is
// authenticated, processing failures are logged and swallowed so the
// processor never retries a delivery we have already seen.
func (a *App) HandleCheckoutEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := a.events.VerifyEvent(payload, signature)
	if err != nil {
		return err
	}
	switch event.Type {
	case payment.EventCheckoutCompleted:
		a.completePoster(ctx, event)
	case payment.EventCheckoutExpired:
		a.expirePoster(event)
	}
	return nil
}

func (a *App) completePoster(ctx context.Context, event payment.Event) {
	logger := slog.With("session_id", event.SessionID, "event", event.Type)
	if event.SessionID == "" {
		logger.Warn("checkout event without session id")
		return
	}
	session, ok, err := a.store.GetPosterSession(event.SessionID)
	if err != nil || !ok {
		logger.Error("poster session lookup failed", "found", ok, "error", err)
		return
	}
	if session.Status == domain.PosterPaid {
		logger.Info("poster already processed")
		return
	}
	rendered, err := a.renderer.Render(session)
	if err != nil {
		logger.Error("poster render failed", "error", err)
		return
	}
	key := fmt.Sprintf("posters/%s.png", session.SessionID)
	if err := a.objects.Upload(ctx, key, rendered, "image/png"); err != nil {
		logger.Error("poster upload failed", "error", err)
		return
	}
	url, err := a.objects.ShareURL(ctx, key, posterLinkTTL)
	if err != nil {
		logger.Error("poster share url failed", "error", err)
		return
	}
	if err := a.store.MarkPosterPaid(session.SessionID, event.Email, url); err != nil {
		logger.Error("poster status update failed", "error", err)
		return
	}
	if event.Email == "" {
		logger.Warn("checkout without customer email, skipping mail")
		return
	}
	if err := a.mailer.SendPosterLink(ctx, event.Email, event.CustomerName, url); err != nil {
		logger.Error("poster mail failed", "error", err)
		return
	}
	logger.Info("poster delivered", "email", event.Email)
}

func (a *App) expirePoster(event payment.Event) {
	if event.SessionID == "" {
		return
	}
	if err := a.store.MarkPosterFailed(event.SessionID); err != nil {
		slog.Error("poster expiry update failed", "session_id", event.SessionID, "error", err)
	}
}

// GenerateAnime stylizes an uploaded image through the image model and
// stores the result.
func (a *App) GenerateAnime(ctx context.Context, image []byte, declaredType string) (AnimeResult, error) {
	if len(image) == 0 {
		return AnimeResult{}, ErrNotAnImage
	}
	if len(image) > MaxAnimeImageBytes {
		return AnimeResult{}, ErrImageTooLarge
	}
	contentType := declaredType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return AnimeResult{}, ErrNotAnImage
	}

	prompt := "Transform this photo into a high-quality anime style illustration. Keep the subject's pose, framing and key features recognizable."
	stylized, err := a.stylizer.StylizeImage(ctx, prompt, image, contentType)
	if err != nil {
		slog.Error("anime generation failed", "error", err)
		return AnimeResult{}, ErrGenerationUnavailable
	}

	fileID := store.NewID()
	key := fmt.Sprintf("anime/%s.png", fileID)
	if err := a.objects.Upload(ctx, key, stylized, "image/png"); err != nil {
		return AnimeResult{}, fmt.Errorf("upload stylized image: %w", err)
	}
	url, err := a.objects.ShareURL(ctx, key, posterLinkTTL)
	if err != nil {
		return AnimeResult{}, fmt.Errorf("share stylized image: %w", err)
	}
	return AnimeResult{URL: url, FileID: fileID}, nil
}
