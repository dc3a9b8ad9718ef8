// Package sse implements the daemon's single external transport: an HTTP
// Server-Sent-Events endpoint streaming every fabric Update, plus a health
// check and a prometheus metrics endpoint.
//
// Grounded on original_source/src/service.rs (the try_handle/WriteSSE loop,
// combined-channel keep-alive timer); router composition on the teacher's
// internal/api/chi_router.go middleware stack, scaled down to this
// service's single data endpoint.
package sse

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/logging"
	"github.com/hostwatch/daemon/internal/model"
)

// keepAliveInterval is the idle threshold after which the stream emits an
// SSE comment line so intermediaries and clients don't time the
// connection out, per spec section 5's 10s keep-alive requirement.
const keepAliveInterval = 10 * time.Second

// eventsRateLimit bounds how often a single client IP may (re)open the
// stream endpoint; the stream itself is long-lived, so this guards
// against reconnect storms rather than steady-state traffic.
const eventsRateLimit = 20

// Server is the SSE HTTP front end. AdminWS is optional; when set, its
// Handler is mounted at /admin/ws alongside the SSE and health endpoints.
type Server struct {
	fab     *fabric.Fabric
	adminWS func(http.ResponseWriter, *http.Request)
}

// NewServer builds an SSE server over fab.
func NewServer(fab *fabric.Fabric) *Server {
	return &Server{fab: fab}
}

// WithAdminWS mounts an admin websocket handler at /admin/ws.
func (s *Server) WithAdminWS(handler func(http.ResponseWriter, *http.Request)) *Server {
	s.adminWS = handler
	return s
}

// Router builds the chi handler tree: CORS-any-origin (spec section 6 has
// no subscriber authentication, so any origin may connect), per-IP rate
// limiting on the stream endpoint, a liveness check, and prometheus
// metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(eventsRateLimit, time.Minute))
		r.Get("/events", s.handleEvents)
	})

	if s.adminWS != nil {
		r.Get("/admin/ws", s.adminWS)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	rx, err := s.fab.Subscribe()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer rx.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	// seenSources tracks, per this connection, which source keys have
	// already emitted a frame: the first is "replace", every subsequent
	// one "diff", independent of the Update's own Scope.
	seenSources := make(map[string]bool)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-rx.Updates():
			ticker.Reset(keepAliveInterval)
			overlay := "diff"
			if !seenSources[u.Source] {
				overlay = "replace"
				seenSources[u.Source] = true
			}
			if err := writeUpdate(w, u, overlay); err != nil {
				logging.Debug().Err(err).Msg("sse client write failed")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(":\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeUpdate(w http.ResponseWriter, u model.Update, overlay string) error {
	frame, err := u.MarshalSSE(overlay)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}
