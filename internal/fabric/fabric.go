// Package fabric implements the event fabric: the component that owns
// every configured source's worker, fans its output into a single ingest
// queue, dispatches each Update to every live subscriber, and keeps a
// snapshot store so a newly-joined subscriber is primed with current state
// instead of waiting for the next poll cycle.
//
// Grounded on original_source/src/system_monitor.rs: SystemMonitor's
// ThreadState (NotRunning/Running/Ended) becomes the state field below,
// poll_loop/run_loop become pollLoop/dispatchLoop spawned on
// internal/worker, and StateSnapshot becomes snapshotStore.
package fabric

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hostwatch/daemon/internal/logging"
	"github.com/hostwatch/daemon/internal/metrics"
	"github.com/hostwatch/daemon/internal/model"
	"github.com/hostwatch/daemon/internal/worker"
)

// subscriberQueueSlack is added to the pull-source count when sizing a new
// subscriber's queue, so the initial snapshot burst (one Update per pull
// source) plus a couple of early live updates never drops before the
// reader has had a chance to drain it.
const subscriberQueueSlack = 8

// ErrEnded is returned by Subscribe once the fabric has torn down.
var ErrEnded = errors.New("fabric: already ended")

type fabricState int

const (
	stateNotRunning fabricState = iota
	stateRunning
	stateEnded
)

// Fabric is the event fabric described in spec section 4.5. The zero value
// is not usable; construct with New.
type Fabric struct {
	mu    sync.Mutex
	state fabricState

	pollInterval time.Duration
	pullSources  []PullSource
	pushSources  []PushSource

	ingestCh chan model.Update
	store    *snapshotStore
	registry *subscriberRegistry

	pushSubs       []Subscription
	pollWorker     *worker.Worker
	dispatchWorker *worker.Worker
}

// New constructs a fabric. It starts NotRunning: no goroutines run, and no
// source is touched, until the first Subscribe call.
func New(pollInterval time.Duration, ingestCapacity int, pull []PullSource, push []PushSource) *Fabric {
	if ingestCapacity <= 0 {
		ingestCapacity = 64
	}
	return &Fabric{
		pollInterval: pollInterval,
		pullSources:  pull,
		pushSources:  push,
		ingestCh:     make(chan model.Update, ingestCapacity),
		store:        newSnapshotStore(),
		registry:     newSubscriberRegistry(),
		state:        stateNotRunning,
	}
}

// Subscribe registers a new subscriber, lazily starting the fabric's poll
// and dispatch workers (and every push source's subscription) on the very
// first call. The returned Receiver is primed with the current snapshot of
// every source, in registry order, before any live update is delivered.
func (f *Fabric) Subscribe() (*Receiver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case stateEnded:
		return nil, ErrEnded
	case stateNotRunning:
		if err := f.start(); err != nil {
			return nil, err
		}
	}

	queueCap := len(f.pullSources) + subscriberQueueSlack
	id, ch, err := f.registry.reserve(queueCap)
	if err != nil {
		return nil, err
	}
	for _, u := range f.store.values() {
		ch <- u // queue sized so the initial burst never drops
	}
	// Only now does dispatch's try-send see this subscriber, so every
	// snapshot above is guaranteed to land before any live update.
	f.registry.insert(id, ch)
	metrics.SubscribersConnected.Inc()
	return &Receiver{id: id, ch: ch, fabric: f}, nil
}

// start transitions NotRunning -> Running: every push source is subscribed
// and the poll/dispatch workers are spawned. Called with f.mu held. If any
// push source fails to subscribe, whatever already succeeded is torn down
// and the fabric remains NotRunning, matching the original's try_bind
// rollback-on-error behavior.
func (f *Fabric) start() error {
	subs := make([]Subscription, 0, len(f.pushSources))
	for _, src := range f.pushSources {
		sub, err := src.Subscribe(f.ingestCh)
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			return fmt.Errorf("subscribing push source %s: %w", src.Source().ID, err)
		}
		subs = append(subs, sub)
	}

	f.pushSubs = subs
	f.pollWorker = worker.Spawn("fabric-poll", f.pollLoop)
	f.dispatchWorker = worker.Spawn("fabric-dispatch", f.dispatchLoop)
	f.state = stateRunning
	return nil
}

// Close tears the fabric down: push subscriptions are closed first (no
// more writes into ingestCh from push sources), then the poll and dispatch
// workers are cancelled and joined. Idempotent.
func (f *Fabric) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != stateRunning {
		f.state = stateEnded
		return nil
	}

	for _, sub := range f.pushSubs {
		sub.Close()
	}
	f.pushSubs = nil

	var firstErr error
	if f.pollWorker != nil {
		if err := f.pollWorker.Terminate(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if f.dispatchWorker != nil {
		if err := f.dispatchWorker.Terminate(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.state = stateEnded
	return firstErr
}

// SubscriberCount reports the number of currently live subscribers.
func (f *Fabric) SubscriberCount() int {
	return f.registry.count()
}

// SourceHealth reports one source's worker-hierarchy identity for the
// admin health stream: the poll/dispatch workers are internal and not
// named per-source, so this reports configured sources rather than
// individual goroutines.
type SourceHealth struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Kind string `json:"kind"` // "pull" or "push"
}

// Health is a point-in-time summary of the fabric's worker tree, for the
// read-only admin websocket stream. It deliberately carries no per-update
// data (that is what the SSE transport is for).
type Health struct {
	Running         bool           `json:"running"`
	SubscriberCount int            `json:"subscriber_count"`
	IngestQueueLen  int            `json:"ingest_queue_len"`
	Sources         []SourceHealth `json:"sources"`
}

// Health snapshots the fabric's current state for the admin stream.
func (f *Fabric) Health() Health {
	f.mu.Lock()
	running := f.state == stateRunning
	f.mu.Unlock()

	sources := make([]SourceHealth, 0, len(f.pullSources)+len(f.pushSources))
	for _, s := range f.pullSources {
		id := s.Source()
		sources = append(sources, SourceHealth{ID: id.ID, Type: id.Type, Kind: "pull"})
	}
	for _, s := range f.pushSources {
		id := s.Source()
		sources = append(sources, SourceHealth{ID: id.ID, Type: id.Type, Kind: "push"})
	}

	return Health{
		Running:         running,
		SubscriberCount: f.registry.count(),
		IngestQueueLen:  len(f.ingestCh),
		Sources:         sources,
	}
}

// pollLoop iterates every pull source once per pollInterval, wrapping each
// result (or error) into a Snapshot-scoped Update and offering it to the
// ingest queue without blocking.
func (f *Fabric) pollLoop(self worker.WorkerSelf) error {
	ticker := time.NewTicker(f.pollInterval)
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

		for _, src := range f.pullSources {
			id := src.Source()
			start := time.Now()
			data, err := src.Poll()
			metrics.PollDuration.WithLabelValues(id.ID).Observe(time.Since(start).Seconds())

			if err != nil {
				data = model.NewErrorData(model.Failure{ID: id.ID, Error: err.Error()})
			}
			u := model.Update{
				Source: id.ID,
				Scope:  model.ScopeSnapshot,
				Typ:    id.Type,
				Time:   model.Now(),
				Data:   data,
			}

			select {
			case f.ingestCh <- u:
			default:
				metrics.UpdatesDropped.WithLabelValues("ingest").Inc()
				logging.Warn().Str("source", id.ID).Msg("dropped poll result, ingest queue full")
			}
		}
		metrics.IngestQueueDepth.Set(float64(len(f.ingestCh)))
	}
}

// dispatchLoop drains the ingest queue, replaces the snapshot store entry
// for each Snapshot-scoped Update, and fans every Update out to every live
// subscriber.
func (f *Fabric) dispatchLoop(self worker.WorkerSelf) error {
	for {
		select {
		case <-self.Cancelled():
			return nil
		case u := <-f.ingestCh:
			if err := self.Tick(); err != nil {
				return err
			}
			if u.Scope == model.ScopeSnapshot {
				f.store.update(u)
			}
			f.registry.dispatch(u)
			metrics.IngestQueueDepth.Set(float64(len(f.ingestCh)))
		}
	}
}
