package fabric

import (
	"sync"

	"github.com/hostwatch/daemon/internal/model"
)

// snapshotStore holds the latest Snapshot-scoped Update per source, keyed by
// source id. A new subscriber is primed with exactly these values, in the
// order each source's first Snapshot arrived, so two subscribers that join
// at different times still see sources replayed in a stable order.
//
// Grounded on StateSnapshot in system_monitor.rs (an
// Arc<Mutex<HashMap<String,Arc<Update>>>>, cloned into every new
// subscriber's initial burst).
type snapshotStore struct {
	mu    sync.Mutex
	byID  map[string]model.Update
	order []string
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{byID: make(map[string]model.Update)}
}

// update replaces the stored Snapshot for u's source. Only Snapshot-scoped
// Updates are ever passed in; a Partial update never reaches here.
func (s *snapshotStore) update(u model.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[u.Source]; !exists {
		s.order = append(s.order, u.Source)
	}
	s.byID[u.Source] = u
}

// values returns a copy of every stored Snapshot, in first-seen order.
func (s *snapshotStore) values() []model.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Update, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
