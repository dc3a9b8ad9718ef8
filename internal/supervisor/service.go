package supervisor

import (
	"context"
	"errors"
	"net/http"

	"github.com/hostwatch/daemon/internal/fabric"
)

// FabricService adapts *fabric.Fabric into a suture.Service: Serve blocks
// until ctx is cancelled (the fabric itself lazily starts on first
// Subscribe and has no separate "run" loop of its own to block on), then
// closes the fabric. Close leaves the fabric Ended, so Subscribe on the
// same *fabric.Fabric returns fabric.ErrEnded afterwards, including after
// a supervisor restart of this service.
//
// The fabric's own internal worker tree (poll/dispatch loops, push source
// workers) already has cooperative cancellation via internal/worker; this
// wrapper exists only to give the fabric a restart policy at the same
// level as the HTTP server.
type FabricService struct {
	Fabric *fabric.Fabric
}

func (s FabricService) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := s.Fabric.Close(); err != nil {
		return err
	}
	return ctx.Err()
}

// HTTPService adapts an *http.Server into a suture.Service.
type HTTPService struct {
	Server *http.Server
}

func (s HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = s.Server.Shutdown(context.Background())
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
