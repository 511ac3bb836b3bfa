package grpc

import (
	"context"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/passwallet/internal/platform/timeouts"
)

// WaitForHealth polls the health service until service reports SERVING or
// ctx ends. The error on timeout carries the last observed status or failure.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	client := grpc_health_v1.NewHealthClient(conn)
	pause := timeouts.HealthPoll
	last := "no response"
	for {
		callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCDial)
		response, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err != nil:
			last = err.Error()
		case response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logf("health %q is SERVING", service)
			return nil
		default:
			last = "status " + response.GetStatus().String()
		}
		logf("waiting for health %q: %s", service, last)

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for health %q (%s): %w", service, last, ctx.Err())
		case <-timer.C:
		}
		pause = min(pause*2, timeouts.HealthPollMax)
	}
}
