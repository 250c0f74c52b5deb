package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"converse/internal/app"
	"converse/pkg/domain"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Token   string `json:"token,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowAuthAttempt(r) {
		writeError(w, http.StatusTooManyRequests, "too many attempts, slow down")
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Signup(req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, app.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "name, email and password are required")
		default:
			slog.Error("signup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, authResponse{Message: "OK", Name: user.Name, Email: user.Email, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowAuthAttempt(r) {
		writeError(w, http.StatusTooManyRequests, "too many attempts, slow down")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownUser):
			writeError(w, http.StatusUnauthorized, "no account for this email")
		case errors.Is(err, app.ErrWrongPassword):
			writeError(w, http.StatusForbidden, "wrong password")
		case errors.Is(err, app.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "email and password are required")
		default:
			slog.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, authResponse{Message: "OK", Name: user.Name, Email: user.Email, Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if token := s.sessionToken(r); token != "" {
		if err := s.app.Logout(token); err != nil {
			slog.Warn("session revocation failed", "error", err)
		}
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if r.URL.Path != "/api/v1/user/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Message: "OK", Name: user.Name, Email: user.Email})
}
