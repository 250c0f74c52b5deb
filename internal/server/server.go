package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"converse/internal/app"
	"converse/internal/ratelimit"
	"converse/internal/util"
	"converse/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	SessionTTL     time.Duration
	AllowedOrigins []string
	AuthLimiter    *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	cookieName     string
	cookieDomain   string
	cookieSecure   bool
	sessionTTL     time.Duration
	allowedOrigins []string
	authLimiter    *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "auth_token"
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	s := &Server{
		app:            cfg.App,
		cookieName:     cookieName,
		cookieDomain:   cfg.CookieDomain,
		cookieSecure:   cfg.CookieSecure,
		sessionTTL:     sessionTTL,
		allowedOrigins: cfg.AllowedOrigins,
		authLimiter:    cfg.AuthLimiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = util.WithRequestLog(handler)
	handler = util.WithRequestID(handler)
	handler = util.WithCORS(s.allowedOrigins, handler)
	handler = util.WithSecurityHeaders(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/v1/", s.handleWelcome)

	s.mux.HandleFunc("/api/v1/user/signup", s.handleSignup)
	s.mux.HandleFunc("/api/v1/user/login", s.handleLogin)
	s.mux.HandleFunc("/api/v1/user/logout", s.handleLogout)
	s.mux.Handle("/api/v1/user/", s.authenticated(s.handleVerify))

	s.mux.Handle("/api/v1/chat/new", s.authenticated(s.handleNewChat))
	s.mux.Handle("/api/v1/chat/all-chats", s.authenticated(s.handleAllChats))
	s.mux.Handle("/api/v1/chat/delete", s.authenticated(s.handleDeleteChats))
	s.mux.Handle("/api/v1/chat/getPersonalityMessagesById", s.authenticated(s.handlePersonalityMessages))
	s.mux.HandleFunc("/api/v1/chat/getPersonalityById", s.handlePersonalityByID)
	s.mux.HandleFunc("/api/v1/chat/getAllPersonalities", s.handleAllPersonalities)
	s.mux.HandleFunc("/api/v1/chat/getPersonalityByName", s.handlePersonalityByName)

	s.mux.HandleFunc("/api/v1/poster/generate-anime", s.handleGenerateAnime)
	s.mux.HandleFunc("/api/v1/poster/save-session", s.handleSavePosterSession)
	s.mux.HandleFunc("/api/v1/poster/session/", s.handlePosterSession)
	s.mux.HandleFunc("/api/v1/poster/webhook", s.handlePosterWebhook)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var welcomeMessages = []string{
	"Welcome! Pick a personality and start chatting.",
	"Hello there! Who would you like to talk to today?",
	"Great to see you. The conversation is waiting.",
	"Welcome back! Your favorite personalities missed you.",
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	// The trailing-slash pattern also catches unknown /api/v1 paths.
	if r.URL.Path != "/api/v1/" && r.URL.Path != "/api/v1" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": welcomeMessages[rand.Intn(len(welcomeMessages))],
	})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

// authenticated resolves the session cookie to a user before running next.
// An absent cookie is a client error; only a token that fails verification
// is treated as unauthorized.
func (s *Server) authenticated(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.cookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusBadRequest, "token not received")
			return
		}
		user, err := s.app.Verify(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// sessionToken returns the raw cookie value, empty when absent.
func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Domain:   s.cookieDomain,
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		Domain:   s.cookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// allowAuthAttempt applies the per-IP limiter to credential endpoints.
func (s *Server) allowAuthAttempt(r *http.Request) bool {
	if s.authLimiter == nil {
		return true
	}
	return s.authLimiter.Allow(util.ClientIP(r, s.trustedProxies))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
