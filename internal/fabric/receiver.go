package fabric

import (
	"sync"

	"github.com/hostwatch/daemon/internal/metrics"
	"github.com/hostwatch/daemon/internal/model"
)

// Receiver is a subscriber's handle onto the fabric's live update stream.
// Go has no destructor, so unlike the original's Drop-deregistering
// Receiver<T>, callers MUST call Close when they stop reading — an SSE
// handler should defer it immediately after Subscribe succeeds.
type Receiver struct {
	id     uint32
	ch     <-chan model.Update
	fabric *Fabric
	once   sync.Once
}

// Updates returns the channel new Updates (and the initial snapshot burst)
// arrive on.
func (r *Receiver) Updates() <-chan model.Update {
	return r.ch
}

// Close deregisters this subscriber. Safe to call more than once.
func (r *Receiver) Close() {
	r.once.Do(func() {
		r.fabric.registry.remove(r.id)
		metrics.SubscribersConnected.Dec()
	})
}
