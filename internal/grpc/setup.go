package grpc

import (
	"context"
	"sync"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/Belphemur/SubTranslate/internal/config"
)

var (
	serverMetrics     *grpcprom.ServerMetrics
	serverMetricsOnce sync.Once
)

func metricsInterceptors() *grpcprom.ServerMetrics {
	serverMetricsOnce.Do(func() {
		serverMetrics = grpcprom.NewServerMetrics(grpcprom.WithServerHandlingTimeHistogram())
		prometheus.MustRegister(serverMetrics)
	})
	return serverMetrics
}

// NewGRPCServer builds the gRPC server: the translation service, health and
// reflection, with Prometheus, logging and panic recovery on every call.
// Clients holding an event stream are pinged so idle proxies keep it open.
func NewGRPCServer(deps Dependencies) *grpc.Server {
	srvMetrics := metricsInterceptors()

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			srvMetrics.UnaryServerInterceptor(),
			logUnary,
			recoverUnary,
		),
		grpc.ChainStreamInterceptor(
			srvMetrics.StreamServerInterceptor(),
			logStream,
			recoverStream,
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 10 * time.Second, PermitWithoutStream: true}),
	)

	RegisterTranslationServiceServer(grpcServer, NewServer(deps))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	for _, service := range []string{ServiceName, ""} {
		healthServer.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	reflection.Register(grpcServer)
	srvMetrics.InitializeMetrics(grpcServer)

	return grpcServer
}

func logCall(method string, start time.Time, err error) {
	logger := config.GetLogger()
	event := logger.Debug()
	if code := status.Code(err); code != codes.OK && code != codes.Canceled {
		event = logger.Warn().Err(err)
	}
	event.
		Str("method", method).
		Str("code", status.Code(err).String()).
		Dur("duration", time.Since(start)).
		Msg("gRPC call")
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logCall(info.FullMethod, start, err)
	return resp, err
}

func logStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	logCall(info.FullMethod, start, err)
	return err
}

func panicError(method string, r any) error {
	logger := config.GetLogger()
	logger.Error().Interface("panic", r).Str("method", method).Msg("gRPC handler panicked")
	return status.Errorf(codes.Internal, "internal error")
}

func recoverUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(info.FullMethod, r)
		}
	}()
	return handler(ctx, req)
}

func recoverStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(info.FullMethod, r)
		}
	}()
	return handler(srv, ss)
}
