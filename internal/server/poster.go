package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"converse/internal/app"
	"converse/pkg/domain"
)

// Webhook payloads stay small; the limit just caps abuse.
const maxWebhookBytes = 1 << 20

type savePosterRequest struct {
	CanvasImage   string       `json:"canvasImage"`
	PosterName    string       `json:"posterName"`
	TextSize      float64      `json:"textSize"`
	TextPosition  domain.Point `json:"textPosition"`
	ImagePosition domain.Point `json:"imagePosition"`
	ImageSize     domain.Size  `json:"imageSize"`
}

func (s *Server) handleSavePosterSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req savePosterRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 32<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.CanvasImage) == "" {
		writeError(w, http.StatusBadRequest, "canvasImage is required")
		return
	}
	sessionID, checkoutURL, err := s.app.SavePosterSession(r.Context(), app.PosterInput{
		CanvasImage:   req.CanvasImage,
		PosterName:    req.PosterName,
		TextSize:      req.TextSize,
		TextPosition:  req.TextPosition,
		ImagePosition: req.ImagePosition,
		ImageSize:     req.ImageSize,
	})
	if err != nil {
		slog.Error("poster session save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId":   sessionID,
		"checkoutUrl": checkoutURL,
	})
}

func (s *Server) handlePosterSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/v1/poster/session/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	session, err := s.app.GetPosterSession(sessionID)
	if err != nil {
		if errors.Is(err, app.ErrPosterSessionNotFound) {
			writeError(w, http.StatusNotFound, "poster session not found")
			return
		}
		slog.Error("poster session load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     session.Status,
		"posterUrl":  session.PosterURL,
		"posterName": session.PosterName,
	})
}

func (s *Server) handlePosterWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}
	if err := s.app.HandleCheckoutEvent(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleGenerateAnime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	// One byte past the cap distinguishes "too large" from "at the cap".
	if err := r.ParseMultipartForm(app.MaxAnimeImageBytes + 1); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, app.MaxAnimeImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable image")
		return
	}
	result, err := s.app.GenerateAnime(r.Context(), data, header.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrImageTooLarge):
			writeError(w, http.StatusBadRequest, "image must be 5MB or smaller")
		case errors.Is(err, app.ErrNotAnImage):
			writeError(w, http.StatusBadRequest, "only image uploads are supported")
		case errors.Is(err, app.ErrGenerationUnavailable):
			writeError(w, http.StatusInternalServerError, "Servers are busy. Try Again Later")
		default:
			slog.Error("anime generation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"imageUrl": result.URL,
		"fileId":   result.FileID,
	})
}
