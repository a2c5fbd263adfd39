// Package httpapi implements the coal-mine HTTP API: form-encoded query
// parameters in, a JSON envelope out, modeled on the source's single WSGI
// application function but routed and middleware-chained the way the
// teacher's gateway package does it.
package httpapi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/opswatch/coalmine/internal/lifecycle"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// requestID returns the correlation id attached to ctx by
// accessLogMiddleware, or "" if none is present (e.g. in a test that calls a
// handler directly).
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

const urlPrefix = "/coal-mine/v1/canary/"

// Server is the HTTP API server.
type Server struct {
	service *lifecycle.Service
	authKey string
	log     *slog.Logger
	server  *http.Server
}

// New constructs a Server bound to addr. An empty authKey disables auth
// entirely, per spec.md §6.
func New(service *lifecycle.Service, addr, authKey string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{service: service, authKey: authKey, log: log.With("component", "httpapi")}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.route)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.recoverMiddleware(s.accessLogMiddleware(mux)),
		ReadTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts the server; it blocks until Shutdown is called or
// the listener fails.
func (s *Server) ListenAndServe() error {
	s.log.Info("http api listening", "address", s.server.Addr)
	if s.authKey == "" {
		s.log.Warn("server authentication DISABLED")
	}
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

var shortcutPattern = regexp.MustCompile(`^/([a-z]{8})$`)

// route rewrites the /{id} trigger shortcut the way the source's
// application() function does, then dispatches to the command handler.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	command := ""
	shortcut := false

	if m := shortcutPattern.FindStringSubmatch(path); m != nil {
		command = "trigger"
		shortcut = true
		q := r.URL.Query()
		q.Set("id", m[1])
		r.URL.RawQuery = q.Encode()
	} else if len(path) > len(urlPrefix) && path[:len(urlPrefix)] == urlPrefix {
		command = path[len(urlPrefix):]
	}

	handler, ok := handlers[command]
	if command == "" || !ok {
		writeError(w, http.StatusNotFound, "404 Not Found")
		return
	}

	if !shortcut && command != "trigger" && s.authKey != "" {
		q := r.URL.Query()
		given := q.Get("auth_key")
		q.Del("auth_key")
		r.URL.RawQuery = q.Encode()
		if !compareTokens(given, s.authKey) {
			writeError(w, http.StatusUnauthorized, "401 Unauthorized")
			return
		}
	}

	handler(s, w, r)
}

// compareTokens hashes both inputs before a constant-time comparison, so an
// empty supplied key still costs a comparison instead of short-circuiting
// on length, per the teacher's compareTokens helper.
func compareTokens(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// recoverMiddleware turns a panicking handler into a 500 instead of
// crashing the process.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic in handler", "recovered", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

var authKeyPattern = regexp.MustCompile(`\bauth_key=[^&]*`)

// accessLogMiddleware logs each request with the auth_key redacted, the way
// the source's LogbookWSGIRequestHandler.log_message does. Every request is
// tagged with a correlation id, carried in the request context so handler-
// level error logging can be tied back to the same access-log line, and
// echoed on the response for callers that want to report it back.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		rw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		redacted := authKeyPattern.ReplaceAllString(r.URL.RawQuery, "auth_key=<key>")
		s.log.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"query", redacted,
			"status", rw.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
