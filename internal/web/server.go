package web

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Refresher triggers an immediate sync; satisfied by syncer.Syncer.
type Refresher interface {
	Run(ctx context.Context) error
}

// Server exposes the generated calendar for subscription, a liveness
// endpoint, and a manual refresh trigger.
type Server struct {
	srv *http.Server
}

// NewServer builds the HTTP server around the calendar file at icsPath.
func NewServer(listen, icsPath string, refresher Refresher) *Server {
	return &Server{
		srv: &http.Server{
			Handler:      NewRouter(icsPath, refresher),
			Addr:         listen,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// NewRouter registers all endpoints.
func NewRouter(icsPath string, refresher Refresher) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	r.HandleFunc("/edt.ics", func(w http.ResponseWriter, req *http.Request) {
		if _, err := os.Stat(icsPath); err != nil {
			http.Error(w, "calendar not generated yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		http.ServeFile(w, req, icsPath)
	}).Methods("GET")

	r.HandleFunc("/api/refresh", func(w http.ResponseWriter, req *http.Request) {
		if err := refresher.Run(req.Context()); err != nil {
			log.Errorf("manual refresh failed: %v", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods("POST")

	r.Use(loggingMiddleware)

	return r
}

// Run starts the server and blocks until ctx is canceled or the listener
// fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("serving calendar on http://%s/edt.ics", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.Debugf("%s %s", req.Method, req.URL.Path)
		next.ServeHTTP(w, req)
	})
}
