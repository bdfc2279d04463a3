package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	raven "github.com/getsentry/raven-go"
	"github.com/gorilla/mux"

	"github.com/pgsleuth/pgsleuth/deadlock"
	"github.com/pgsleuth/pgsleuth/input/tracker"
	"github.com/pgsleuth/pgsleuth/state"
	"github.com/pgsleuth/pgsleuth/templates"
	"github.com/pgsleuth/pgsleuth/util"
)

// EventSource - Where raw error events come from (the issue tracker in
// production, a stub in tests)
type EventSource interface {
	GetEvent(eventID string) (tracker.Event, error)
}

type ResultCache interface {
	Get(key string) (string, bool)
	Put(key string, value string)
}

type ExplanationProvider interface {
	Enabled() bool
	Explain(ctx context.Context, info *state.DeadlockInfo) (string, error)
}

type TemplateStore interface {
	CreateVersion(name string, body string) (templates.Template, error)
	GetLatest(name string) (templates.Template, error)
	ListVersions(name string) ([]templates.Template, error)
	Delete(name string) error
}

type Server struct {
	Logger       *util.Logger
	Analyzer     *deadlock.Analyzer
	Events       EventSource
	Cache        ResultCache
	Explainer    ExplanationProvider
	Templates    TemplateStore
	SentryClient *raven.Client
}

// Handler - The full route table
func (server *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/analyze", server.handleAnalyze).Methods("POST")
	router.HandleFunc("/api/lock-compatibility", server.handleLockCompatibility).Methods("GET")
	router.HandleFunc("/api/templates", server.handleTemplateCreate).Methods("POST")
	router.HandleFunc("/api/templates/{name}", server.handleTemplateGet).Methods("GET")
	router.HandleFunc("/api/templates/{name}/versions", server.handleTemplateVersions).Methods("GET")
	router.HandleFunc("/api/templates/{name}", server.handleTemplateDelete).Methods("DELETE")
	router.Use(server.recoveryMiddleware)
	return router
}

func (server *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				server.Logger.PrintError("Panic in %s %s: %v", r.Method, r.URL.Path, rec)
				if server.SentryClient != nil {
					server.SentryClient.CaptureMessage("http handler panic",
						map[string]string{"method": r.Method, "path": r.URL.Path})
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// Serve - Starts the HTTP server bound to the given context's lifetime
func Serve(ctx context.Context, logger *util.Logger, addr string, handler http.Handler) {
	s := &http.Server{
		BaseContext: func(net.Listener) context.Context { return ctx },
		Addr:        addr,
		Handler:     handler,
	}
	lc := net.ListenConfig{}
	l, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		logger.PrintError("Error starting HTTP server on %s: %v", addr, err)
		return
	}
	logger.PrintInfo("Listening on %s", addr)
	go func() {
		err := s.Serve(l)
		if err != http.ErrServerClosed {
			logger.PrintError("Error running HTTP server on %s: %v", addr, err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Close()
	}()
}
