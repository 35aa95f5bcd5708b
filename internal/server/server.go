package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ivlev/story2video/internal/export"
	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/session"
)

// Server exposes one session over HTTP and streams its events over a websocket.
type Server struct {
	session  *session.Session
	sink     export.Sink
	router   *mux.Router
	upgrader websocket.Upgrader

	// runCtx outlives individual requests; runs started over HTTP use it.
	runCtx context.Context
}

func New(runCtx context.Context, sess *session.Session, sink export.Sink) *Server {
	s := &Server{
		session: sess,
		sink:    sink,
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		runCtx: runCtx,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/options", s.handleOptions).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/continue", s.handleContinue).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/edit", s.handleEditStart).Methods(http.MethodPost)
	api.HandleFunc("/edit", s.handleEditSave).Methods(http.MethodPut)
	api.HandleFunc("/edit", s.handleEditCancel).Methods(http.MethodDelete)
	api.HandleFunc("/playback", s.handlePlaybackState).Methods(http.MethodGet)
	api.HandleFunc("/playback/{command}", s.handlePlaybackCommand).Methods(http.MethodPost)
	api.HandleFunc("/scenes/{number:[0-9]+}/image", s.handleSceneImage).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// commandStatus maps a session command error to an HTTP status.
func commandStatus(err error) int {
	var serr *session.StateError
	if errors.As(err, &serr) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
