package model

import (
	"time"

	json "github.com/goccy/go-json"
)

// State is the coarse lifecycle state a pull source reports for a unit.
type State int

const (
	StateActive State = iota
	StateInactive
	StateError
	StateUnknown
)

var stateNames = [...]string{"Active", "Inactive", "Error", "Unknown"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Attributes is the free-form attribute bag attached to a Status or Event,
// carried through the filter pipeline.
type Attributes map[string]any

// Status is a point-in-time snapshot of a single monitored unit.
type Status struct {
	State State      `json:"state"`
	Attrs Attributes `json:"attrs"`
}

// Failure reports a source-level error. ID groups ongoing/recurring
// failures for UI roll-up; ephemeral failures leave it empty.
type Failure struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// Event is a single log-line-shaped occurrence emitted by a push source.
type Event struct {
	ID       string     `json:"id,omitempty"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message,omitempty"`
	Attrs    Attributes `json:"attrs"`
}

// Time is the {sec, ms} wire encoding of a point in time, matching the
// original Rust Encodable impl exactly rather than using RFC3339.
type Time struct {
	Sec int64 `json:"sec"`
	Ms  int64 `json:"ms"`
}

// Now returns the current time in wire form.
func Now() Time {
	return FromGoTime(time.Now().UTC())
}

// FromGoTime converts a time.Time into the wire Time representation.
func FromGoTime(t time.Time) Time {
	return Time{
		Sec: t.Unix(),
		Ms:  int64(t.Nanosecond() / 1_000_000),
	}
}

// DataKind tags which variant a Data value holds, mirroring the Rust
// Data enum's external [tag, payload] encoding.
type DataKind string

const (
	DataKindState   DataKind = "State"
	DataKindEvent   DataKind = "Event"
	DataKindMetrics DataKind = "Metrics"
	DataKindError   DataKind = "Error"
)

// ComputedMetric is a single named metric value computed over a span.
type ComputedMetric struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// Metrics is a batch of computed metrics plus the span they were computed
// over, carried by a Data value of kind Metrics. No current data source
// emits this variant; it is kept in the type system because the spec's
// Data union names it, ready for a future metrics-producing source.
type Metrics struct {
	Values []ComputedMetric `json:"values"`
	SpanMs int64            `json:"span_ms"`
}

// Data is the polymorphic payload of an Update. Exactly one of the typed
// fields is populated, selected by Kind.
type Data struct {
	Kind    DataKind
	State   map[string]Status
	Event   *Event
	Metrics *Metrics
	Error   *Failure
}

// NewStateData builds a Data carrying a State snapshot.
func NewStateData(states map[string]Status) Data {
	return Data{Kind: DataKindState, State: states}
}

// NewEventData builds a Data carrying a single Event.
func NewEventData(e Event) Data {
	return Data{Kind: DataKindEvent, Event: &e}
}

// NewMetricsData builds a Data carrying a Metrics batch.
func NewMetricsData(m Metrics) Data {
	return Data{Kind: DataKindMetrics, Metrics: &m}
}

// NewErrorData builds a Data carrying a Failure.
func NewErrorData(f Failure) Data {
	return Data{Kind: DataKindError, Error: &f}
}

// MarshalJSON encodes Data as the two-element [tag, payload] tuple the SSE
// wire format requires.
func (d Data) MarshalJSON() ([]byte, error) {
	var payload any
	switch d.Kind {
	case DataKindState:
		payload = d.State
	case DataKindEvent:
		payload = d.Event
	case DataKindMetrics:
		payload = d.Metrics
	case DataKindError:
		payload = d.Error
	default:
		payload = nil
	}
	return json.Marshal([2]any{d.Kind, payload})
}

// Scope distinguishes a full-state Snapshot update (cached and replayed to
// new subscribers) from a Partial update (merged into the live stream only).
type Scope int

const (
	ScopeSnapshot Scope = iota
	ScopePartial
)

func (s Scope) String() string {
	if s == ScopeSnapshot {
		return "replace"
	}
	return "diff"
}

func (s Scope) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Update is the envelope the fabric dispatches to every subscriber.
type Update struct {
	Source string
	Scope  Scope
	Typ    string
	Time   Time
	Data   Data
}

// sseFrame is the exact shape of an SSE data payload per spec section 6:
// {key, overlay, data: {source, type, time, data}}.
type sseFrame struct {
	Key     string `json:"key"`
	Overlay string `json:"overlay"`
	Data    struct {
		Source string `json:"source"`
		Type   string `json:"type"`
		Time   Time   `json:"time"`
		Data   Data   `json:"data"`
	} `json:"data"`
}

// MarshalSSE renders an Update as the JSON frame the SSE emitter writes to
// the wire, keyed by source id. overlay is "replace" or "diff" and is the
// caller's responsibility: per spec section 6 it tracks whether this is the
// first frame seen for Source on the connection, not the Update's Scope —
// a Scope-derived overlay would make every systemd poll "replace" (it's
// always Snapshot-scoped) and the first journal event "diff" (it's always
// Partial-scoped), which is backwards from the spec's first-message rule.
func (u Update) MarshalSSE(overlay string) ([]byte, error) {
	var f sseFrame
	f.Key = u.Source
	f.Overlay = overlay
	f.Data.Source = u.Source
	f.Data.Type = u.Typ
	f.Data.Time = u.Time
	f.Data.Data = u.Data
	return json.Marshal(f)
}
