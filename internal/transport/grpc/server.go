package transportgrpc

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/starcoex/auth-platform/internal/transport/grpc/authv1"
	grpcinterceptors "github.com/starcoex/auth-platform/internal/transport/grpc/interceptors"
	"github.com/starcoex/auth-platform/internal/transport/grpc/server"
	"github.com/starcoex/auth-platform/internal/usecase"
)

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	AuthService *usecase.AuthService
	Metrics     *grpcinterceptors.GRPCMetrics
	Tracing     *grpcinterceptors.TracingInterceptor
	Logger      *zap.Logger
}

// NewServer wires the gRPC services and interceptors.
func NewServer(deps ServerDependencies) (*grpc.Server, error) {
	if deps.AuthService == nil {
		return nil, fmt.Errorf("auth service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	interceptors := []grpc.UnaryServerInterceptor{}
	if deps.Tracing != nil {
		interceptors = append(interceptors, deps.Tracing.Unary())
	}
	if deps.Metrics != nil {
		interceptors = append(interceptors, deps.Metrics.UnaryServerInterceptor())
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))

	authServer := server.NewAuthServer(deps.AuthService, logger)
	authv1.RegisterAuthServiceServer(srv, authServer)

	// Reflection supports grpcurl and similar tooling.
	reflection.Register(srv)

	return srv, nil
}
