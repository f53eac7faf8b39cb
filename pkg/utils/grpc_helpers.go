package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// ListenGRPC binds port and serves s until ctx is cancelled, then stops
// gracefully. The bind happens synchronously so a busy port is reported as
// the returned error; later serve failures arrive on the channel, which is
// closed when the server exits.
func ListenGRPC(ctx context.Context, s *grpc.Server, port int, log logger.Logger) (chan error, error) {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Info("Starting gRPC server", logger.StringField("address", lis.Addr().String()))
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("Stopping gRPC server")
		s.GracefulStop()
	}()

	return errChan, nil
}
