package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/matchbot/internal/config"
)

// NewGRPCServer builds the admin gRPC server with logging and, when an
// admin token hash is configured, bearer-token auth. All registrars are
// attached and reflection is enabled for grpcurl.
func NewGRPCServer(cfg *config.Config, log *slog.Logger, registrars ...Registrar) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{LoggingInterceptor(log)}
	if cfg.Admin.TokenHash != "" {
		interceptors = append(interceptors, TokenAuthInterceptor(cfg.Admin.TokenHash))
	} else {
		log.Warn("ADMIN_TOKEN_HASH is empty, admin gRPC API is unauthenticated")
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	for _, r := range registrars {
		r.Register(grpcServer)
	}
	reflection.Register(grpcServer)
	return grpcServer
}

// ServeGRPC listens on the configured address and serves until ctx is done,
// then stops gracefully.
func ServeGRPC(ctx context.Context, cfg *config.Config, grpcServer *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			grpcServer.Stop()
		}
	}()

	return grpcServer.Serve(lis)
}

// LoggingInterceptor logs every admin call with its duration and outcome.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("grpc call failed", "method", info.FullMethod, "took", time.Since(start), "err", err)
		} else {
			log.Debug("grpc call", "method", info.FullMethod, "took", time.Since(start))
		}
		return resp, err
	}
}
