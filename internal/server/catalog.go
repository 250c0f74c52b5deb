package server

import (
	"errors"
	"log/slog"
	"net/http"

	"converse/internal/app"
	"converse/pkg/domain"
)

type paginationMeta struct {
	Page               int   `json:"page"`
	PerPage            int   `json:"perPage"`
	TotalPages         int   `json:"totalPages"`
	TotalPersonalities int64 `json:"totalPersonalities"`
}

type personalityListResponse struct {
	Data       []domain.Personality `json:"data"`
	Pagination paginationMeta       `json:"pagination"`
}

func (s *Server) handlePersonalityByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	personality, err := s.app.GetPersonality(r.URL.Query().Get("id"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personality)
}

func (s *Server) handlePersonalityByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	personality, err := s.app.GetPersonalityByName(r.URL.Query().Get("name"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personality)
}

func (s *Server) handleAllPersonalities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := r.URL.Query()

	// A bare id lookup rides on the list endpoint, keeping the list
	// envelope with a single-item page.
	if id := query.Get("id"); id != "" {
		personality, err := s.app.GetPersonality(id)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, personalityListResponse{
			Data: []domain.Personality{personality},
			Pagination: paginationMeta{
				Page:               1,
				PerPage:            1,
				TotalPages:         1,
				TotalPersonalities: 1,
			},
		})
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "perPage", 100)
	featuredOnly := query.Get("featured") == "true"
	result, err := s.app.ListPersonalities(query.Get("search"), featuredOnly, page, perPage)
	if err != nil {
		slog.Error("personality list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, personalityListResponse{
		Data: result.Items,
		Pagination: paginationMeta{
			Page:               result.Page,
			PerPage:            result.PerPage,
			TotalPages:         result.TotalPages,
			TotalPersonalities: result.Total,
		},
	})
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidPersonalityID):
		writeError(w, http.StatusBadRequest, "invalid personality id")
	case errors.Is(err, app.ErrPersonalityNotFound):
		writeError(w, http.StatusNotFound, "personality not found")
	default:
		slog.Error("personality lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
