package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// ShutdownTimeout bounds graceful HTTP shutdown.
const ShutdownTimeout = 10 * time.Second

// ListenHTTP binds srv.Addr and serves until ctx is cancelled, then shuts
// down gracefully. Like ListenGRPC, a bind failure is returned directly and
// serve failures arrive on the channel, which is closed on exit.
func ListenHTTP(ctx context.Context, srv *http.Server, log logger.Logger) (chan error, error) {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Info("Starting HTTP server", logger.StringField("address", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout) //nolint:contextcheck // parent is already cancelled
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // parent is already cancelled
			log.Error("HTTP server shutdown error", logger.ErrorField(err))
		}
	}()

	return errChan, nil
}
