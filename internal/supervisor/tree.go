// Package supervisor builds the daemon's top-level crash-isolation tree:
// suture supervisors wrapping the event fabric and the HTTP transport so a
// panic or repeated failure in one does not take the other down with it.
//
// This is a coarser-grained layer than internal/worker: internal/worker
// governs cooperative cancellation *within* a single source or the fabric's
// own poll/dispatch loops, while this tree governs restart policy for the
// handful of long-lived top-level services a running daemon has.
//
// Generalized from the teacher's internal/supervisor/tree.go: the
// data/messaging/api three-layer split becomes a core/transport two-layer
// split (this daemon has no persistence layer to isolate), but the
// suture.Spec construction, sutureslog wiring, and Serve surface are
// carried unchanged.
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds the restart-policy parameters for every supervisor in
// the tree.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns suture's own recommended defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the daemon's supervisor hierarchy: a root supervisor holding a
// core layer (the event fabric and the admin health broadcaster) and a
// transport layer (the SSE/admin HTTP server).
type Tree struct {
	root      *suture.Supervisor
	core      *suture.Supervisor
	transport *suture.Supervisor
}

// NewTree builds the supervisor tree, logging lifecycle events through
// logger via sutureslog.
func NewTree(logger *zerolog.Logger, cfg TreeConfig) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg = DefaultTreeConfig()
	}

	handler := &sutureslog.Handler{Logger: zerologToSlog(logger)}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}

	root := suture.New("hostwatchd", rootSpec)
	core := suture.New("core", childSpec)
	transport := suture.New("transport", childSpec)
	root.Add(core)
	root.Add(transport)

	return &Tree{root: root, core: core, transport: transport}
}

// AddCoreService adds a service to the core layer (event fabric, admin
// health broadcaster).
func (t *Tree) AddCoreService(svc suture.Service) suture.ServiceToken {
	return t.core.Add(svc)
}

// AddTransportService adds a service to the transport layer (the HTTP
// server).
func (t *Tree) AddTransportService(svc suture.Service) suture.ServiceToken {
	return t.transport.Add(svc)
}

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
