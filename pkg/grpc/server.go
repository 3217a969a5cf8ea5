// Package grpc runs the storefront's gRPC endpoint. It serves the standard
// grpc.health.v1.Health service, with one status per dependency refreshed
// from the same checks as /healthz, plus server reflection for grpcurl.
//
//	srv, err := grpc.Start(ctx, config.GRPCPort(), grpc.Checks{
//	    "database": database.Ping,
//	    "redis":    cache.Ping,
//	})
//	// ...run until signal...
//	srv.Stop()
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/metrics"
)

// CheckInterval is how often dependency statuses are refreshed.
const CheckInterval = 15 * time.Second

var (
	grpcRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "grpc_server_handled_total",
		Help:      "Total number of gRPC calls completed by method and code.",
	}, []string{"grpc_method", "grpc_code"})

	grpcRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "grpc_server_handling_seconds",
		Help:      "Histogram of gRPC response latency in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"grpc_method"})
)

func init() {
	metrics.MustRegister(grpcRequestsTotal, grpcRequestDuration)
}

// Checks maps a health service name to its probe. The overall status
// (service "") is SERVING only while every probe passes.
type Checks map[string]func(ctx context.Context) error

// ─── Interceptors ─────────────────────────────────────────────────────────────

func recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc: panic recovered",
				"method", info.FullMethod,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// observeInterceptor logs each unary call and records its metrics.
func observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	dur := time.Since(start)

	code := status.Code(err)
	grpcRequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
	grpcRequestDuration.WithLabelValues(info.FullMethod).Observe(dur.Seconds())
	logger.Debug("grpc: request",
		"method", info.FullMethod,
		"duration_ms", dur.Milliseconds(),
		"code", code.String(),
	)
	return resp, err
}

// ─── Server ──────────────────────────────────────────────────────────────────

// Server is a running gRPC server and its health watcher.
type Server struct {
	srv    *grpc.Server
	lis    net.Listener
	health *health.Server
	checks Checks
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a server on lis without serving yet.
func New(lis net.Listener, checks Checks) *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoveryInterceptor, observeInterceptor),
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(4*1024*1024),
	)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &Server{srv: srv, lis: lis, health: hs, checks: checks, done: make(chan struct{})}
}

// Start listens on port, runs one round of checks and serves in the
// background.
func Start(ctx context.Context, port string, checks Checks) (*Server, error) {
	addr := ":" + port
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen on %s: %w", addr, err)
	}
	s := New(lis, checks)
	s.Serve(ctx, CheckInterval)
	logger.Info("gRPC server started", "addr", addr)
	return s, nil
}

// Serve refreshes statuses now and then every interval, and serves RPCs
// until Stop.
func (s *Server) Serve(ctx context.Context, interval time.Duration) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.refresh(ctx)

	go func() {
		defer close(s.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.refresh(ctx)
			}
		}
	}()

	go func() {
		if err := s.srv.Serve(s.lis); err != nil {
			logger.Error("grpc: serve error", "error", err)
		}
	}()
}

func (s *Server) refresh(ctx context.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := grpc_health_v1.HealthCheckResponse_SERVING
	for _, name := range names {
		st := grpc_health_v1.HealthCheckResponse_SERVING
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.checks[name](cctx)
		cancel()
		if err != nil {
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			overall = st
			logger.Warn("grpc: health check failed", "service", name, "error", err)
		}
		s.health.SetServingStatus(name, st)
	}
	s.health.SetServingStatus("", overall)
}

// Stop marks every service NOT_SERVING and waits for in-flight RPCs.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	logger.Info("gRPC server shutting down")
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.health.Shutdown()
	s.srv.GracefulStop()
}
