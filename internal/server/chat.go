package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"converse/internal/app"
	"converse/pkg/domain"
)

type newChatRequest struct {
	Message       string `json:"message"`
	PersonalityID string `json:"personalityId"`
}

type chatTurnResponse struct {
	Chats domain.Turn `json:"chats"`
}

type chatHistoryResponse struct {
	Chats []domain.Turn `json:"chats"`
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req newChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	turn, err := s.app.SendMessage(r.Context(), user, req.PersonalityID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, app.ErrInvalidPersonalityID):
			writeError(w, http.StatusBadRequest, "invalid personality id")
		case errors.Is(err, app.ErrPersonalityNotFound):
			writeError(w, http.StatusNotFound, "personality not found")
		case errors.Is(err, app.ErrGenerationUnavailable):
			writeError(w, http.StatusInternalServerError, "Servers are busy. Try Again Later")
		default:
			slog.Error("chat turn failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, chatTurnResponse{Chats: turn})
}

func (s *Server) handleAllChats(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	turns, err := s.app.History(user, "")
	if err != nil {
		slog.Error("history load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, chatHistoryResponse{Chats: turns})
}

func (s *Server) handleDeleteChats(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	personalityID := r.URL.Query().Get("personalityId")
	if err := s.app.ClearHistory(user, personalityID); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPersonalityID):
			writeError(w, http.StatusBadRequest, "invalid personality id")
		case errors.Is(err, app.ErrPersonalityNotFound):
			writeError(w, http.StatusNotFound, "personality not found")
		case errors.Is(err, app.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		default:
			slog.Error("history delete failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (s *Server) handlePersonalityMessages(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	personalityID := r.URL.Query().Get("personalityId")
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "perPage", 20)
	result, err := s.app.PersonalityMessages(user, personalityID, page, perPage)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPersonalityID):
			writeError(w, http.StatusBadRequest, "invalid personality id")
		case errors.Is(err, app.ErrPersonalityNotFound):
			writeError(w, http.StatusNotFound, "personality not found")
		default:
			slog.Error("personality messages load failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": result.Conversation,
		"messages":     result.Messages,
		"pagination": map[string]any{
			"page":          result.Page,
			"perPage":       result.PerPage,
			"totalMessages": result.Total,
			"totalPages":    result.TotalPages,
		},
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
