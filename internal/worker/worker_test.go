package worker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwatch/daemon/internal/worker"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestTickReturnsCancelledAfterTerminate(t *testing.T) {
	started := make(chan struct{})
	tickSawCancel := make(chan error, 1)
	w := worker.Spawn("t", func(self worker.WorkerSelf) error {
		close(started)
		self.AwaitCancel()
		tickSawCancel <- self.Tick()
		return nil
	})
	<-started
	require.NoError(t, w.Terminate())
	select {
	case err := <-tickSawCancel:
		assert.ErrorIs(t, err, worker.ErrCancelled)
	default:
		t.Fatal("worker function never observed cancellation")
	}
}

func TestWaitReturnsFailure(t *testing.T) {
	boom := errors.New("boom")
	w := worker.Spawn("failer", func(self worker.WorkerSelf) error {
		return boom
	})
	err := w.Wait()
	var failed *worker.FailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, failed.Err, boom)
}

func TestParentFailurePropagatesToChild(t *testing.T) {
	childCancelled := make(chan struct{})
	parent := worker.Spawn("parent", func(self worker.WorkerSelf) error {
		child := self.Spawn("child", func(childSelf worker.WorkerSelf) error {
			childSelf.AwaitCancel()
			close(childCancelled)
			return nil
		})
		defer child.Close()
		return errors.New("parent failed")
	})
	defer parent.Close()

	select {
	case <-childCancelled:
	case <-time.After(time.Second):
		t.Fatal("child was never cancelled after parent failed")
	}
}

func TestPollReturnsFalseThenTrue(t *testing.T) {
	release := make(chan struct{})
	w := worker.Spawn("poller", func(self worker.WorkerSelf) error {
		<-release
		return nil
	})

	ended, err := w.Poll()
	require.NoError(t, err)
	assert.False(t, ended)

	close(release)
	waitFor(t, func() bool {
		ended, err := w.Poll()
		return ended && err == nil
	})
}

func TestDetachPreventsTerminateOnClose(t *testing.T) {
	running := make(chan struct{})
	release := make(chan struct{})
	w := worker.Spawn("detached", func(self worker.WorkerSelf) error {
		close(running)
		<-release
		return nil
	})
	<-running
	w.Detach()
	require.NoError(t, w.Close())
	close(release)
}

func TestPanicIsRecoveredAsAborted(t *testing.T) {
	w := worker.Spawn("panicker", func(self worker.WorkerSelf) error {
		panic("kaboom")
	})
	err := w.Wait()
	var aborted *worker.AbortedError
	require.ErrorAs(t, err, &aborted)
}
