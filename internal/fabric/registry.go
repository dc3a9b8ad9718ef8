package fabric

import (
	"errors"
	"math"
	"sync"

	"github.com/hostwatch/daemon/internal/metrics"
	"github.com/hostwatch/daemon/internal/model"
)

// maxSubscriberID guards against the id space wrapping in a long-running
// daemon; it is far more headroom than any real subscriber count will ever
// reach, matching the original's "num_listeners > u32::MAX/2" check.
const maxSubscriberID uint32 = math.MaxUint32 / 2

var errSubscriberSpaceExhausted = errors.New("fabric: subscriber id space exhausted")

// subscriberRegistry is the fabric's mutex-guarded map of live subscriber
// queues. The critical section on the dispatch path is intentionally
// small: lock, iterate, try-send, unlock.
type subscriberRegistry struct {
	mu     sync.Mutex
	nextID uint32
	subs   map[uint32]chan model.Update
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{subs: make(map[uint32]chan model.Update)}
}

// reserve allocates the next subscriber id and its bounded queue without
// making it visible to dispatch. The caller primes the returned channel
// with any initial backlog, then calls insert to publish it — this keeps a
// concurrent dispatch from interleaving a live update ahead of the priming
// burst.
func (r *subscriberRegistry) reserve(queueCap int) (uint32, chan model.Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextID >= maxSubscriberID {
		return 0, nil, errSubscriberSpaceExhausted
	}
	id := r.nextID
	r.nextID++
	ch := make(chan model.Update, queueCap)
	return id, ch, nil
}

// insert publishes a reserved, already-primed queue so dispatch can see it.
func (r *subscriberRegistry) insert(id uint32, ch chan model.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[id] = ch
}

// remove deregisters a subscriber. Called when its Receiver is closed.
func (r *subscriberRegistry) remove(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
}

// dispatch offers u to every registered subscriber queue without blocking.
// A full queue drops the update for that subscriber only; the dispatcher
// never waits on a slow reader.
func (r *subscriberRegistry) dispatch(u model.Update) (delivered, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- u:
			delivered++
		default:
			dropped++
		}
	}
	if dropped > 0 {
		metrics.UpdatesDropped.WithLabelValues("subscriber").Add(float64(dropped))
	}
	return delivered, dropped
}

// count reports the number of live subscribers.
func (r *subscriberRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
