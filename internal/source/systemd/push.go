package systemd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/hostwatch/daemon/internal/config"
	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/filter"
	"github.com/hostwatch/daemon/internal/logging"
	"github.com/hostwatch/daemon/internal/metrics"
	"github.com/hostwatch/daemon/internal/model"
	"github.com/hostwatch/daemon/internal/worker"
)

// dbusCallTimeout mirrors dbus_common.rs's DBUS_CALL_TIMEOUT. Nothing in
// this file references it: the one synchronous bus call, AddMatch in
// Subscribe, is made without a timeout.
const dbusCallTimeout = 60 * time.Second

// Pusher is the push-mode systemd data source: it subscribes to
// PropertiesChanged signals on the systemd1 unit interface instead of
// polling, so a unit's transition is reported the instant DBus sees it.
//
// Grounded on original_source/src/dbus_common.rs (bus call/timeout/error
// conventions) and systemd_common.rs (state mapping, unit-type filtering,
// reused here for the signal payload).
type Pusher struct {
	id     fabric.SourceID
	user   bool
	engine *filter.Engine
}

// NewPusher builds a Pusher from a parsed systemd source config.
func NewPusher(cfg *config.SystemdConfig) *Pusher {
	return &Pusher{
		id:     fabric.SourceID{ID: cfg.ID, Type: string(config.SourceSystemd)},
		user:   cfg.User,
		engine: filter.NewSystemd(cfg.Filters),
	}
}

func (p *Pusher) Source() fabric.SourceID { return p.id }

// Subscribe implements fabric.PushSource: it opens a DBus connection
// (system or session bus per the `user` config flag), adds a match rule
// for systemd1 unit property changes, and spawns a worker translating
// each signal into a Partial Update on sink.
func (p *Pusher) Subscribe(sink chan<- model.Update) (fabric.Subscription, error) {
	conn, err := p.connect()
	if err != nil {
		return nil, fmt.Errorf("connecting to dbus: %w", err)
	}

	rule := "type='signal',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged'"
	call := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
	if call.Err != nil {
		conn.Close()
		return nil, fmt.Errorf("adding dbus match rule: %w", call.Err)
	}

	signals := make(chan *dbus.Signal, 32)
	conn.Signal(signals)

	w := worker.Spawn("systemd-push-"+p.id.ID, func(self worker.WorkerSelf) error {
		defer conn.Close()
		for {
			select {
			case <-self.Cancelled():
				return nil
			case sig, ok := <-signals:
				if !ok {
					return nil
				}
				if err := self.Tick(); err != nil {
					return err
				}
				p.handleSignal(sig, sink)
			}
		}
	})

	return w, nil
}

func (p *Pusher) connect() (*dbus.Conn, error) {
	if p.user {
		return dbus.ConnectSessionBus()
	}
	return dbus.ConnectSystemBus()
}

func (p *Pusher) handleSignal(sig *dbus.Signal, sink chan<- model.Update) {
	if len(sig.Body) < 2 {
		return
	}
	iface, _ := sig.Body[0].(string)
	if iface != "org.freedesktop.systemd1.Unit" {
		return
	}
	changed, _ := sig.Body[1].(map[string]dbus.Variant)

	unit := unitNameFromPath(string(sig.Path))
	if unit == "" || shouldIgnoreUnit(unit) {
		return
	}

	attrs := model.Attributes{}
	for k, v := range changed {
		attrs[k] = v.Value()
	}
	active, _ := attrs["ActiveState"].(string)

	rec, ok := p.engine.Run(filter.Record{ID: unit, Attrs: attrs})
	if !ok {
		return
	}

	u := model.Update{
		Source: p.id.ID,
		Scope:  model.ScopePartial,
		Typ:    p.id.Type,
		Time:   model.Now(),
		Data: model.NewStateData(map[string]model.Status{
			unit: {State: stateOfActiveState(active), Attrs: rec.Attrs},
		}),
	}

	select {
	case sink <- u:
	default:
		metrics.UpdatesDropped.WithLabelValues("ingest").Inc()
		logging.Warn().Str("source", p.id.ID).Msg("dropped push update, ingest queue full")
	}
}

// unitNameFromPath recovers a unit name from a systemd1 unit object path
// (e.g. "/org/freedesktop/systemd1/unit/sshd_2eservice"), reversing the
// bus-path escaping systemd applies to non-alphanumeric bytes.
func unitNameFromPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return dbusUnescape(path[i+1:])
}

func dbusUnescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '_' && i+2 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
