package grpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestDialWithHealthServing(t *testing.T) {
	addr, _ := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := DialWithHealth(ctx, nil, addr, time.Second, nil, DefaultClientDialOptions()...)
	if err != nil {
		t.Fatalf("DialWithHealth: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close conn: %v", err)
	}
}

func TestDialWithHealthNotServing(t *testing.T) {
	addr, _ := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := DialWithHealth(ctx, nil, addr, 300*time.Millisecond, nil, DefaultClientDialOptions()...)
	if conn != nil {
		_ = conn.Close()
		t.Fatal("expected no connection")
	}
	var dialErr *DialError
	if !errors.As(err, &dialErr) {
		t.Fatalf("err = %T, want *DialError", err)
	}
	if dialErr.Stage != DialStageHealth {
		t.Fatalf("stage = %q, want %q", dialErr.Stage, DialStageHealth)
	}
}

func TestDialWithHealthConnectFailure(t *testing.T) {
	failing := DialerFunc(func(context.Context, string, ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
		return nil, fmt.Errorf("connection refused")
	})

	_, err := DialWithHealth(context.Background(), failing, "unused:1", time.Second, nil)
	var dialErr *DialError
	if !errors.As(err, &dialErr) {
		t.Fatalf("err = %T, want *DialError", err)
	}
	if dialErr.Stage != DialStageConnect {
		t.Fatalf("stage = %q, want %q", dialErr.Stage, DialStageConnect)
	}
}

func TestDialWithHealthTimeoutBoundsHealthCheck(t *testing.T) {
	addr, _ := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	start := time.Now()
	_, err := DialWithHealth(context.Background(), nil, addr, 200*time.Millisecond, nil, DefaultClientDialOptions()...)
	if err == nil {
		t.Fatal("expected an error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("dial timeout did not bound the health wait, took %v", elapsed)
	}
}

func TestDialErrorMessages(t *testing.T) {
	wrapped := &DialError{Stage: DialStageHealth, Err: fmt.Errorf("boom")}
	if !strings.Contains(wrapped.Error(), "health") {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
	if !errors.Is(wrapped, wrapped.Err) {
		t.Fatal("expected Unwrap to expose the cause")
	}

	var empty *DialError
	if empty.Error() == "" {
		t.Fatal("expected a fallback message for the nil error")
	}
	if empty.Unwrap() != nil {
		t.Fatal("expected nil unwrap for the nil error")
	}
}
