// Package notify defines the boundary to the desktop notification sink
// named in spec section 1 as an external collaborator specified only at
// its interface ("desktop-notification presentation" is explicitly out of
// scope): this package owns translating Updates into summary/body/urgency
// notifications, not the DBus org.freedesktop.Notifications wire protocol
// itself.
package notify

import (
	"fmt"

	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/model"
	"github.com/hostwatch/daemon/internal/worker"
)

// Urgency mirrors the desktop notification urgency levels the (external)
// presentation layer expects.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Notifier presents a single notification. Implementations that actually
// speak to a notification daemon live outside this module.
type Notifier interface {
	Notify(summary, body string, urgency Urgency) error
}

// NoopNotifier discards every notification; it is the default sink when
// no backend is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(summary, body string, urgency Urgency) error { return nil }

// Sink adapts a Notifier into a fabric subscriber: every Failure and
// Warning-or-more-severe Event reaching it is forwarded as a notification.
type Sink struct {
	notifier Notifier
}

// NewSink builds a Sink over n. A nil Notifier is replaced with
// NoopNotifier.
func NewSink(n Notifier) *Sink {
	if n == nil {
		n = NoopNotifier{}
	}
	return &Sink{notifier: n}
}

// Run drains rx until cancelled, translating qualifying Updates into
// notifications. Intended to be spawned via worker.Spawn/SpawnAnon.
func (s *Sink) Run(self worker.WorkerSelf, rx *fabric.Receiver) error {
	for {
		select {
		case <-self.Cancelled():
			return nil
		case u := <-rx.Updates():
			if err := self.Tick(); err != nil {
				return nil
			}
			s.handle(u)
		}
	}
}

func (s *Sink) handle(u model.Update) {
	switch u.Data.Kind {
	case model.DataKindError:
		if u.Data.Error != nil {
			_ = s.notifier.Notify(fmt.Sprintf("%s failed", u.Source), u.Data.Error.Error, UrgencyCritical)
		}
	case model.DataKindEvent:
		e := u.Data.Event
		if e != nil && e.Severity.AtLeastAsSevere(model.SeverityWarning) {
			_ = s.notifier.Notify(fmt.Sprintf("%s: %s", u.Source, e.Severity), e.Message, urgencyForSeverity(e.Severity))
		}
	}
}

func urgencyForSeverity(sev model.Severity) Urgency {
	switch {
	case sev <= model.SeverityAlert:
		return UrgencyCritical
	case sev <= model.SeverityWarning:
		return UrgencyNormal
	default:
		return UrgencyLow
	}
}
