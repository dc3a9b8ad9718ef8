package fabric_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/model"
)

type fakePull struct {
	id   fabric.SourceID
	mu   sync.Mutex
	n    int
	fail bool
}

func (p *fakePull) Source() fabric.SourceID { return p.id }

func (p *fakePull) Poll() (model.Data, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	if p.fail {
		return model.Data{}, errors.New("boom")
	}
	return model.NewStateData(map[string]model.Status{
		p.id.ID: {State: model.StateActive},
	}), nil
}

type fakePush struct {
	id       fabric.SourceID
	stopCh   chan struct{}
	panicAt  int
	sink     chan<- model.Update
	started  chan struct{}
	wg       sync.WaitGroup
}

func (p *fakePush) Source() fabric.SourceID { return p.id }

func (p *fakePush) Subscribe(sink chan<- model.Update) (fabric.Subscription, error) {
	p.sink = sink
	p.stopCh = make(chan struct{})
	p.started = make(chan struct{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if p.panicAt > 0 {
				if r := recover(); r != nil {
					sink <- model.Update{
						Source: p.id.ID,
						Scope:  model.ScopePartial,
						Typ:    p.id.Type,
						Time:   model.Now(),
						Data:   model.NewErrorData(model.Failure{ID: p.id.ID, Error: "panicked"}),
					}
				}
			}
		}()
		close(p.started)
		i := 0
		for {
			select {
			case <-p.stopCh:
				return
			default:
			}
			i++
			if p.panicAt > 0 && i > p.panicAt {
				panic("push source exploded")
			}
			sink <- model.Update{
				Source: p.id.ID,
				Scope:  model.ScopePartial,
				Typ:    p.id.Type,
				Time:   model.Now(),
				Data:   model.NewEventData(model.Event{Message: "tick"}),
			}
			time.Sleep(time.Millisecond)
		}
	}()
	<-p.started
	return &fakeSubscription{stop: p.stopCh, wg: &p.wg}, nil
}

type fakeSubscription struct {
	stop    chan struct{}
	wg      *sync.WaitGroup
	once    sync.Once
}

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

func waitForCount(t *testing.T, ch <-chan model.Update, n int, timeout time.Duration) []model.Update {
	t.Helper()
	out := make([]model.Update, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case u := <-ch:
			out = append(out, u)
		case <-deadline:
			t.Fatalf("timed out waiting for %d updates, got %d", n, len(out))
		}
	}
	return out
}

func TestFirstSubscriberReceivesSnapshotFromEveryPullSource(t *testing.T) {
	a := &fakePull{id: fabric.SourceID{ID: "systemd.system", Type: "systemd"}}
	b := &fakePull{id: fabric.SourceID{ID: "journal", Type: "journal"}}
	f := fabric.New(10*time.Millisecond, 16, []fabric.PullSource{a, b}, nil)
	defer f.Close()

	rx, err := f.Subscribe()
	require.NoError(t, err)
	defer rx.Close()

	updates := waitForCount(t, rx.Updates(), 2, time.Second)
	seen := map[string]bool{}
	for _, u := range updates {
		assert.Equal(t, model.ScopeSnapshot, u.Scope)
		seen[u.Source] = true
	}
	assert.True(t, seen["systemd.system"])
	assert.True(t, seen["journal"])
}

func TestPartialUpdatesDoNotPrimeNewSubscriber(t *testing.T) {
	push := &fakePush{id: fabric.SourceID{ID: "journal", Type: "journal"}}
	f := fabric.New(time.Hour, 16, nil, []fabric.PushSource{push})
	defer f.Close()

	rx, err := f.Subscribe()
	require.NoError(t, err)
	defer rx.Close()

	waitForCount(t, rx.Updates(), 3, time.Second)

	rx2, err := f.Subscribe()
	require.NoError(t, err)
	defer rx2.Close()

	select {
	case u := <-rx2.Updates():
		t.Fatalf("expected no primed snapshot for a Partial-only source, got %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriberDropDeregisters(t *testing.T) {
	a := &fakePull{id: fabric.SourceID{ID: "systemd.system", Type: "systemd"}}
	f := fabric.New(5*time.Millisecond, 16, []fabric.PullSource{a}, nil)
	defer f.Close()

	rx, err := f.Subscribe()
	require.NoError(t, err)
	require.Equal(t, 1, f.SubscriberCount())

	rx.Close()
	assert.Eventually(t, func() bool { return f.SubscriberCount() == 0 }, time.Second, time.Millisecond)
}

func TestNoFabricStallOnSlowSubscriber(t *testing.T) {
	a := &fakePull{id: fabric.SourceID{ID: "systemd.system", Type: "systemd"}}
	f := fabric.New(2*time.Millisecond, 16, []fabric.PullSource{a}, nil)
	defer f.Close()

	slow, err := f.Subscribe()
	require.NoError(t, err)
	defer slow.Close()
	// Never drain `slow` — its queue will fill and subsequent poll results
	// must still reach `fast` instead of blocking the dispatcher.

	fast, err := f.Subscribe()
	require.NoError(t, err)
	defer fast.Close()

	waitForCount(t, fast.Updates(), 10, 2*time.Second)
}

func TestPushSourceFailureEmitsFailureAndLeavesOtherSourceAlive(t *testing.T) {
	flaky := &fakePush{id: fabric.SourceID{ID: "flaky", Type: "journal"}, panicAt: 3}
	stable := &fakePull{id: fabric.SourceID{ID: "systemd.system", Type: "systemd"}}
	f := fabric.New(5*time.Millisecond, 16, []fabric.PullSource{stable}, []fabric.PushSource{flaky})
	defer f.Close()

	rx, err := f.Subscribe()
	require.NoError(t, err)
	defer rx.Close()

	var sawFailure, sawStable bool
	deadline := time.After(2 * time.Second)
	for !sawFailure || !sawStable {
		select {
		case u := <-rx.Updates():
			if u.Source == "flaky" && u.Data.Kind == model.DataKindError {
				sawFailure = true
			}
			if u.Source == "systemd.system" {
				sawStable = true
			}
		case <-deadline:
			t.Fatalf("timed out: sawFailure=%v sawStable=%v", sawFailure, sawStable)
		}
	}
}

func TestClosingFabricEndsSubsequentSubscribe(t *testing.T) {
	f := fabric.New(time.Hour, 4, nil, nil)
	rx, err := f.Subscribe()
	require.NoError(t, err)
	rx.Close()
	require.NoError(t, f.Close())

	_, err = f.Subscribe()
	assert.ErrorIs(t, err, fabric.ErrEnded)
}
