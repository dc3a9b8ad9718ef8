package notify

import (
	"testing"

	"github.com/hostwatch/daemon/internal/model"
)

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) Notify(summary, body string, urgency Urgency) error {
	r.calls = append(r.calls, summary)
	return nil
}

func TestHandleForwardsFailureAsCritical(t *testing.T) {
	rec := &recordingNotifier{}
	s := NewSink(rec)

	s.handle(model.Update{
		Source: "journal",
		Data:   model.NewErrorData(model.Failure{Error: "journalctl exited"}),
	})

	if len(rec.calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rec.calls))
	}
}

func TestHandleIgnoresBelowWarningSeverity(t *testing.T) {
	rec := &recordingNotifier{}
	s := NewSink(rec)

	s.handle(model.Update{
		Source: "journal",
		Data:   model.NewEventData(model.Event{Severity: model.SeverityInfo, Message: "routine"}),
	})

	if len(rec.calls) != 0 {
		t.Fatalf("expected no notification for an Info event, got %d", len(rec.calls))
	}
}

func TestHandleForwardsWarningOrMoreSevereEvents(t *testing.T) {
	rec := &recordingNotifier{}
	s := NewSink(rec)

	s.handle(model.Update{
		Source: "systemd.system",
		Data:   model.NewEventData(model.Event{Severity: model.SeverityError, Message: "unit crashed"}),
	})

	if len(rec.calls) != 1 {
		t.Fatalf("expected 1 notification for an Error event, got %d", len(rec.calls))
	}
}

func TestNewSinkDefaultsNilNotifierToNoop(t *testing.T) {
	s := NewSink(nil)
	if _, ok := s.notifier.(NoopNotifier); !ok {
		t.Fatalf("expected nil Notifier to default to NoopNotifier, got %T", s.notifier)
	}
}
