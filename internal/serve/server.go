// Package serve exposes the chat registry over a local HTTP API with a
// websocket state feed.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/togpt/togpt/internal/chat"
	"github.com/togpt/togpt/internal/preferences"
	"github.com/togpt/togpt/internal/search"
)

// PreferenceStore is the subset of preferences.Store the server needs.
type PreferenceStore interface {
	Preferences() preferences.Preferences
	Update(ctx context.Context, p preferences.Partial) error
	Error() string
}

type Options struct {
	Registry    *chat.Registry
	Preferences PreferenceStore
	// Searcher may be nil when search is not configured.
	Searcher search.Searcher
	// Token enables bearer authentication on /api when set.
	Token string
	// AllowedOrigins lists browser origins besides the server's own host
	// that may call /api, e.g. "http://localhost:5173".
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server serves the JSON API, the event feed and the theme script.
type Server struct {
	reg      *chat.Registry
	prefs    PreferenceStore
	searcher search.Searcher
	token    string
	origins  []string
	logger   *slog.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		reg:      opts.Registry,
		prefs:    opts.Preferences,
		searcher: opts.Searcher,
		token:    strings.TrimSpace(opts.Token),
		origins:  opts.AllowedOrigins,
		logger:   opts.Logger,
	}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /theme.js", s.handleTheme)

	mux.HandleFunc("GET /api/state", s.auth(s.handleState))
	mux.HandleFunc("GET /api/events", s.auth(s.handleEvents))

	mux.HandleFunc("GET /api/chats", s.auth(s.handleListChats))
	mux.HandleFunc("POST /api/chats", s.auth(s.handleCreateChat))
	mux.HandleFunc("DELETE /api/chats", s.auth(s.handleClearChats))
	mux.HandleFunc("GET /api/chats/{id}", s.auth(s.handleGetChat))
	mux.HandleFunc("DELETE /api/chats/{id}", s.auth(s.handleDeleteChat))
	mux.HandleFunc("POST /api/chats/{id}/activate", s.auth(s.handleActivateChat))
	mux.HandleFunc("PUT /api/search-term", s.auth(s.handleSetSearchTerm))

	mux.HandleFunc("POST /api/messages", s.auth(s.handleSendMessage))
	mux.HandleFunc("PUT /api/messages/{id}", s.auth(s.handleEditMessage))
	mux.HandleFunc("POST /api/messages/{id}/continue", s.auth(s.handleContinue))
	mux.HandleFunc("DELETE /api/active/messages", s.auth(s.handleClearMessages))
	mux.HandleFunc("POST /api/stop", s.auth(s.handleStop))

	mux.HandleFunc("PUT /api/model", s.auth(s.handleSetModel))
	mux.HandleFunc("POST /api/model/notice/dismiss", s.auth(s.handleDismissNotice))

	mux.HandleFunc("GET /api/preferences", s.auth(s.handleGetPreferences))
	mux.HandleFunc("PATCH /api/preferences", s.auth(s.handlePatchPreferences))

	mux.HandleFunc("GET /api/search", s.auth(s.handleSearch))
	return mux
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.originAllowed(r) {
			writeError(w, http.StatusForbidden, "cross-origin request rejected")
			return
		}
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// authorized accepts the token as a bearer header or, for websocket clients
// that cannot set headers, as a token query parameter.
func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q == s.token
	}
	value := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, prefix)) == s.token
}

// originAllowed rejects browser requests from pages served elsewhere.
// Requests without an Origin header (curl, the CLI) pass.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.origins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeRegistryError maps registry sentinel errors to status codes.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrChatNotFound), errors.Is(err, chat.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrNoActiveChat):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// detached keeps a generation running when the HTTP client goes away.
// Generations are stopped explicitly through /api/stop.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
