// Command hostwatchd runs the host monitoring daemon: it loads a config
// file named by its single positional argument, starts the configured
// systemd/journal sources, and serves the merged event stream over SSE.
//
// Usage: hostwatchd <config-path>
//
// Wiring order follows the teacher's cmd/server/main.go: load config,
// initialize logging, construct the data sources and the event fabric,
// build the HTTP router, then hand everything to a supervisor tree and
// block on signal-driven shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostwatch/daemon/internal/adminws"
	"github.com/hostwatch/daemon/internal/config"
	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/logging"
	"github.com/hostwatch/daemon/internal/source/journal"
	"github.com/hostwatch/daemon/internal/source/systemd"
	"github.com/hostwatch/daemon/internal/sse"
	"github.com/hostwatch/daemon/internal/supervisor"
)

// listenAddr is the SSE/admin HTTP bind address. The spec names no
// configuration surface for it (section 6 scopes external interfaces to
// the CLI's single positional config-path argument), so it is fixed,
// matching original_source/src/service.rs's own 127.0.0.1:3000 bind.
const listenAddr = "127.0.0.1:3000"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hostwatchd <config-path>")
		return 1
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logging.Init(logging.DefaultConfig())

	fab := buildFabric(cfg)

	adminHub := adminws.NewHub(fab)
	sseServer := sse.NewServer(fab).WithAdminWS(adminHub.Handler)

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      sseServer.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the /events stream is long-lived
		IdleTimeout:  60 * time.Second,
	}

	log := logging.Logger()
	tree := supervisor.NewTree(&log, supervisor.DefaultTreeConfig())
	tree.AddCoreService(supervisor.FabricService{Fabric: fab})
	tree.AddCoreService(adminws.Service{Hub: adminHub})
	tree.AddTransportService(supervisor.HTTPService{Server: httpServer})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", listenAddr).Int("sources", len(cfg.Sources)).Msg("hostwatchd starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree exited with error")
		return 1
	}
	return 0
}

// buildFabric constructs a data source (poller and/or pusher) for every
// configured source and wires them into a new event fabric. Each systemd
// source is run both as a pull source (periodic systemctl poll) and a push
// source (DBus PropertiesChanged signals), per internal/source/systemd's
// package doc; each journal source is push-only.
func buildFabric(cfg config.Config) *fabric.Fabric {
	var pull []fabric.PullSource
	var push []fabric.PushSource

	for _, src := range cfg.Sources {
		switch src.Kind {
		case config.SourceSystemd:
			pull = append(pull, systemd.NewPoller(src.Systemd))
			push = append(push, systemd.NewPusher(src.Systemd))
		case config.SourceJournal:
			push = append(push, journal.NewFollower(src.Journal))
		}
	}

	ingestCapacity := len(pull) + len(push) + 8
	return fabric.New(cfg.Poll.Interval, ingestCapacity, pull, push)
}
