package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwatch/daemon/internal/config"
	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/filter"
	"github.com/hostwatch/daemon/internal/model"
)

func newTestFollower(filters []config.JournalFilter) *Follower {
	return &Follower{
		id:     fabric.SourceID{ID: "journal", Type: "journal"},
		engine: filter.NewJournal(filters),
	}
}

func TestHandleLineEmitsFilteredEvent(t *testing.T) {
	f := newTestFollower(nil)
	sink := make(chan model.Update, 1)

	f.handleLine([]byte(`{"PRIORITY":"3","MESSAGE":"disk full","_PID":"123","SYSLOG_IDENTIFIER":"kernel"}`), sink)

	select {
	case u := <-sink:
		require.Equal(t, model.DataKindEvent, u.Data.Kind)
		assert.Equal(t, "disk full", u.Data.Event.Message)
		assert.Equal(t, model.SeverityError, u.Data.Event.Severity)
		_, hasUnderscore := u.Data.Event.Attrs["_PID"]
		assert.False(t, hasUnderscore)
	default:
		t.Fatal("expected an emitted update")
	}
}

func TestHandleLineBadJSONRecoversAsInfoEvent(t *testing.T) {
	f := newTestFollower(nil)
	sink := make(chan model.Update, 1)

	f.handleLine([]byte(`not json`), sink)

	select {
	case u := <-sink:
		require.Equal(t, model.DataKindEvent, u.Data.Kind)
		assert.Equal(t, model.SeverityInfo, u.Data.Event.Severity)
	default:
		t.Fatal("expected a recovered Info event")
	}
}

func TestHandleLineDroppedByFilterEmitsNothing(t *testing.T) {
	level := model.SeverityError
	f := newTestFollower([]config.JournalFilter{{Level: &level}})
	sink := make(chan model.Update, 1)

	f.handleLine([]byte(`{"PRIORITY":"6","MESSAGE":"routine"}`), sink)

	select {
	case u := <-sink:
		t.Fatalf("expected the below-threshold record to be dropped, got %+v", u)
	default:
	}
}
