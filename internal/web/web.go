package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"kcevents/internal/archive"
	"kcevents/internal/config"
	appLog "kcevents/internal/log"
	"kcevents/internal/metrics"
	"kcevents/internal/model"
	"kcevents/internal/output"
)

// Options carries the optional collaborators of the preview server.
type Options struct {
	// StaticDir is served at "/" when set, typically the site's public/ dir.
	StaticDir string
	Archive   archive.Store
	Metrics   *metrics.Recorder
}

// Server previews the generated artifacts the way the static site reads
// them. It is a local development helper, not part of the build.
type Server struct {
	cfg  *config.Config
	opts Options
	mux  *http.ServeMux

	// The parsed document is cached until events.json changes on disk.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, opts Options) *Server {
	s := &Server{
		cfg:  cfg,
		opts: opts,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="kcevents", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, opts Options) error {
	s := NewServer(cfg, opts)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "static_dir", opts.StaticDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/events.ics", s.handleCalendar)
	if s.opts.Metrics != nil {
		s.mux.Handle("/metrics", s.opts.Metrics.Handler())
	}
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves StaticDir from disk. /api/* never falls through
// to it so that a missing handler is a 404, not HTML.
func (s *Server) staticFileServer() http.Handler {
	if s.opts.StaticDir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}

	fileServer := http.FileServer(http.Dir(s.opts.StaticDir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	model.EventsDocument
	Fallback bool `json:"fallback"`
}

// eventsCache holds the last parsed document and the mtime it was read at.
type eventsCache struct {
	resp    eventsResponse
	modTime time.Time
	size    int64
}

// handleEvents returns the current events.json after running it through the
// same validation the site depends on. An invalid or missing file is a 503,
// which is what the site's retry state would show.
//
// GET /api/events?limit=N
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.Output.Events

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusServiceUnavailable, "events document not generated yet")
			return
		}
		appLog.Error("api events: stat failed", err, "path", path)
		writeError(w, http.StatusInternalServerError, "failed to read events document")
		return
	}

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()

	var resp eventsResponse
	if ec != nil && ec.modTime.Equal(info.ModTime()) && ec.size == info.Size() {
		resp = ec.resp
	} else {
		doc, err := output.Read(path)
		if err != nil {
			appLog.Error("api events: invalid document", err, "path", path)
			writeError(w, http.StatusServiceUnavailable, "events document is invalid")
			return
		}
		resp = eventsResponse{EventsDocument: doc, Fallback: doc.IsFallback()}

		s.eventsMu.Lock()
		s.eventsCache = &eventsCache{resp: resp, modTime: info.ModTime(), size: info.Size()}
		s.eventsMu.Unlock()
	}

	if limit := parseIntDefault(r.URL.Query().Get("limit"), 0); limit > 0 && limit < len(resp.Events) {
		resp.Events = resp.Events[:limit]
	}
	writeJSON(w, http.StatusOK, resp)
}

// historyEntry is a JSON-friendly view of an archived snapshot.
type historyEntry struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	EventCount  int       `json:"event_count"`
	Fallback    bool      `json:"fallback"`
	Note        string    `json:"note,omitempty"`
}

// handleHistory lists archived runs, newest first.
//
// GET /api/history?limit=20
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.Archive == nil {
		writeError(w, http.StatusNotFound, "archive is not configured")
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	if limit <= 0 {
		limit = 20
	}

	snaps, err := s.opts.Archive.Recent(r.Context(), limit)
	if err != nil {
		appLog.Error("api history: query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	out := make([]historyEntry, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, historyEntry{
			RunID:       snap.RunID,
			GeneratedAt: snap.GeneratedAt,
			EventCount:  snap.EventCount,
			Fallback:    snap.Fallback,
			Note:        snap.Note,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCalendar serves the generated ICS feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Output.Calendar == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	// http.ServeFile maps a missing file to 404 and other failures to 500.
	http.ServeFile(w, r, s.cfg.Output.Calendar)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
