// Package adminws exposes a read-only websocket stream of worker-tree
// health snapshots, distinct from the spec-mandated SSE transport in
// internal/sse: it carries no Update data, only periodic liveness
// information useful to an operator's dashboard.
//
// Generalized from the teacher's internal/websocket/hub.go register/
// unregister client hub: the broadcast payload becomes a fabric.Health
// snapshot instead of a playback event, and clients are read-only (no
// inbound message handling beyond ping/pong keep-alive).
package adminws

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/logging"
	"github.com/hostwatch/daemon/internal/worker"
)

// broadcastInterval is how often the hub polls the fabric for a fresh
// Health snapshot and fans it out to every connected client.
const broadcastInterval = 5 * time.Second

// Hub maintains the set of connected admin clients and periodically
// broadcasts a fabric.Health snapshot to all of them.
type Hub struct {
	fab *fabric.Fabric

	mu      sync.Mutex
	clients map[*client]bool
}

// NewHub builds a Hub reporting health for fab.
func NewHub(fab *fabric.Fabric) *Hub {
	return &Hub{fab: fab, clients: make(map[*client]bool)}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", n).Msg("admin websocket client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", n).Msg("admin websocket client disconnected")
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			logging.Warn().Msg("admin websocket client send buffer full, dropping client")
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// Run periodically snapshots fabric health and broadcasts it, until
// cancelled. Intended to be spawned via worker.Spawn.
func (h *Hub) Run(self worker.WorkerSelf) error {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-self.Cancelled():
			return nil
		case <-ticker.C:
		}
		if err := self.Tick(); err != nil {
			return err
		}
		payload, err := json.Marshal(h.fab.Health())
		if err != nil {
			logging.Warn().Err(err).Msg("failed to marshal fabric health snapshot")
			continue
		}
		h.broadcast(payload)
	}
}

// Service adapts the Hub into a suture.Service (supervisor.Tree accepts any
// value with a matching Serve method, so no direct suture import is needed
// here): it spawns Run as an internal/worker.Worker and terminates it when
// ctx is cancelled.
type Service struct {
	Hub *Hub
}

func (s Service) Serve(ctx context.Context) error {
	w := worker.Spawn("admin-health-broadcast", s.Hub.Run)
	<-ctx.Done()
	_ = w.Terminate()
	return ctx.Err()
}
