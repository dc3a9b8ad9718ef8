package fabric

import "github.com/hostwatch/daemon/internal/model"

// SourceID identifies a configured data source: its globally unique id (the
// key under the config document's "sources" map) and its module type
// ("systemd", "journal", ...).
type SourceID struct {
	ID   string
	Type string
}

// PullSource is polled by the fabric at the configured interval. Poll
// returns the source's current data, or an error which the fabric wraps
// into a Snapshot-scoped Failure Update — the source itself never needs to
// know about Update envelopes.
type PullSource interface {
	Source() SourceID
	Poll() (model.Data, error)
}

// PushSource emits Updates on its own schedule. Subscribe spawns whatever
// background work the source needs (a subprocess follower, a DBus signal
// loop) and wires its output directly into sink — the same channel the
// fabric's poll loop feeds. The returned Subscription's Close stops that
// background work; the fabric calls it once at teardown.
type PushSource interface {
	Source() SourceID
	Subscribe(sink chan<- model.Update) (Subscription, error)
}

// Subscription is a handle to a push source's background worker.
type Subscription interface {
	Close() error
}
