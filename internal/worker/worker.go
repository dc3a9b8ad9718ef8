// Package worker implements the cooperative supervision primitive every
// long-running goroutine in this daemon is built on: a tree of Workers
// where cancelling a node cancels its children, failing a node also
// cancels its parent and its siblings, and where every worker must
// periodically check in via Tick or
// block via AwaitCancel so it notices cancellation promptly.
//
// This generalizes the hierarchy from original_source/worker/src/lib.rs:
// the mpsc cancellation channel becomes a closed-once chan struct{}, the
// Arc<Mutex<WorkerShared>> children list becomes a mutex-guarded slice, and
// panics inside a worker's closure are recovered into an Aborted result
// rather than unwinding the process.
package worker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrCancelled is returned by Tick when the worker has been cancelled,
// either directly or via propagation from a parent or sibling failure.
var ErrCancelled = errors.New("worker cancelled")

// FailedError wraps the error a worker's function returned.
type FailedError struct{ Err error }

func (e *FailedError) Error() string { return fmt.Sprintf("worker failed: %v", e.Err) }
func (e *FailedError) Unwrap() error { return e.Err }

// AbortedError reports a worker that ended abnormally: a panic recovered
// from its closure, or a supervision-tree bookkeeping failure.
type AbortedError struct{ Reason string }

func (e *AbortedError) Error() string { return fmt.Sprintf("worker aborted: %s", e.Reason) }

type workerState int

const (
	stateRunning workerState = iota
	stateEnded
	stateDetached
)

// shared is the state a Worker and its WorkerSelf handle both touch:
// the cancellation signal and the list of children that must be
// terminated when this worker fails.
type shared struct {
	mu        sync.Mutex
	cancelCh  chan struct{}
	cancelled bool
	children  []*Worker
}

func newShared() *shared {
	return &shared{cancelCh: make(chan struct{})}
}

// signal cancels this worker's own cancellation channel, idempotently, and
// then signals every child registered beneath it (top-down).
func (s *shared) signal() {
	s.mu.Lock()
	if !s.cancelled {
		s.cancelled = true
		close(s.cancelCh)
	}
	children := append([]*Worker(nil), s.children...)
	s.mu.Unlock()
	for _, child := range children {
		child.shared.signal()
	}
}

// Worker is a handle to a spawned goroutine. The zero value is not usable;
// construct via Spawn, SpawnAnon, or a Worker/WorkerSelf's own Spawn method.
type Worker struct {
	mu     sync.Mutex
	name   string
	shared *shared
	done   chan struct{}
	result error
	state  workerState
}

// WorkerSelf is what a spawned function receives: the ability to check or
// wait on its own cancellation, and to spawn further children beneath it.
type WorkerSelf struct {
	name   string
	shared *shared
}

// Name returns the worker's name, or a generated id if spawned anonymously.
func (s WorkerSelf) Name() string { return s.name }

// Tick performs a non-blocking cancellation check. A worker's main loop
// should call this each iteration.
func (s WorkerSelf) Tick() error {
	select {
	case <-s.shared.cancelCh:
		return ErrCancelled
	default:
		return nil
	}
}

// AwaitCancel blocks until this worker is cancelled.
func (s WorkerSelf) AwaitCancel() {
	<-s.shared.cancelCh
}

// Cancelled returns the channel that closes when this worker is cancelled,
// for use directly in a select alongside other channel operations.
func (s WorkerSelf) Cancelled() <-chan struct{} {
	return s.shared.cancelCh
}

// Spawn starts a named child of this worker: if this worker fails, the
// child (and any of its siblings) is signalled to cancel.
func (s WorkerSelf) Spawn(name string, work func(WorkerSelf) error) *Worker {
	return spawn(s.shared, name, work)
}

// SpawnAnon starts an unnamed child, named after a generated id.
func (s WorkerSelf) SpawnAnon(work func(WorkerSelf) error) *Worker {
	return spawn(s.shared, "", work)
}

// Spawn starts a top-level worker with no parent.
func Spawn(name string, work func(WorkerSelf) error) *Worker {
	return spawn(nil, name, work)
}

// SpawnAnon starts a top-level, unnamed worker.
func SpawnAnon(work func(WorkerSelf) error) *Worker {
	return spawn(nil, "", work)
}

// Spawn starts a named child of w.
func (w *Worker) Spawn(name string, work func(WorkerSelf) error) *Worker {
	return spawn(w.shared, name, work)
}

// SpawnAnon starts an unnamed child of w.
func (w *Worker) SpawnAnon(work func(WorkerSelf) error) *Worker {
	return spawn(w.shared, "", work)
}

func spawn(parent *shared, name string, work func(WorkerSelf) error) *Worker {
	if name == "" {
		name = uuid.NewString()
	}
	sh := newShared()
	done := make(chan struct{})
	w := &Worker{
		name:   name,
		shared: sh,
		done:   done,
		state:  stateRunning,
	}
	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, w)
		parent.mu.Unlock()
	}

	self := WorkerSelf{name: name, shared: sh}
	go func() {
		result := runGuarded(self, work)
		w.mu.Lock()
		w.result = result
		w.mu.Unlock()
		close(done)
		if result != nil {
			propagateFailure(parent, sh)
		}
	}()

	return w
}

// runGuarded invokes work, converting a panic into an AbortedError instead
// of letting it crash the process.
func runGuarded(self WorkerSelf, work func(WorkerSelf) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AbortedError{Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return work(self)
}

// propagateFailure signals the failed worker's own children, the parent (so
// it notices via its own Tick) and every sibling (so a failed worker takes
// down its cohort, matching the original's "pop every child and signal it"
// loop).
func propagateFailure(parent *shared, self *shared) {
	self.signal()
	if parent == nil {
		return
	}
	parent.signal()
	parent.mu.Lock()
	children := parent.children
	parent.mu.Unlock()
	for _, child := range children {
		if child.shared != self {
			child.shared.signal()
		}
	}
}

// Wait blocks until the worker's function has returned and reports the
// outcome. Children the worker registered are not waited for: Wait returns
// as soon as this worker's own function has returned, whether or not its
// children have ended.
func (w *Worker) Wait() error {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == stateEnded {
		res := w.result
		return wrapResult(res)
	}
	w.state = stateEnded
	return wrapResult(w.result)
}

func wrapResult(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCancelled) {
		return ErrCancelled
	}
	var aborted *AbortedError
	if errors.As(err, &aborted) {
		return aborted
	}
	return &FailedError{Err: err}
}

// Poll performs a non-blocking check for completion. If the worker has
// finished, Poll joins it (as Wait would) and returns its outcome;
// otherwise it returns (false, nil).
func (w *Worker) Poll() (ended bool, err error) {
	select {
	case <-w.done:
		return true, w.Wait()
	default:
		return false, nil
	}
}

// Detach marks the worker as no longer owned: dropping it (letting it go
// out of scope without Wait/Terminate) will not force a termination.
func (w *Worker) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == stateRunning {
		w.state = stateDetached
	}
}

// Terminate signals cancellation and then waits for the worker to end.
func (w *Worker) Terminate() error {
	w.shared.signal()
	return w.Wait()
}

// Close implements a drop-like safety net: if the worker is still running
// and was neither waited-on nor detached, it is terminated. Callers that
// want the original's "goroutine leaks are a bug" discipline should defer
// this immediately after Spawn.
func (w *Worker) Close() error {
	w.mu.Lock()
	state := w.state
	w.mu.Unlock()
	switch state {
	case stateRunning:
		return w.Terminate()
	default:
		return nil
	}
}
