package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startBuf(t *testing.T, checks Checks, interval time.Duration) grpc_health_v1.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := New(lis, checks)
	srv.Serve(context.Background(), interval)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, c grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthReflectsChecks(t *testing.T) {
	c := startBuf(t, Checks{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, time.Hour)

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, c, "database"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, c, "redis"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, c, ""))
}

func TestHealthIsRefreshed(t *testing.T) {
	var down atomic.Bool
	c := startBuf(t, Checks{
		"database": func(context.Context) error {
			if down.Load() {
				return errors.New("gone")
			}
			return nil
		},
	}, 20*time.Millisecond)

	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, c, ""))
	down.Store(true)
	assert.Eventually(t, func() bool {
		return check(t, c, "database") == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}
