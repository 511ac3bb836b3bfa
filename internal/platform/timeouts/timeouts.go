// Package timeouts defines shared timeout constants used across the wallet
// binaries so the durations stay discoverable in one place.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// HealthPoll is the first pause between gRPC health checks; the pause
// doubles up to HealthPollMax.
const HealthPoll = 200 * time.Millisecond

// HealthPollMax caps the pause between gRPC health checks.
const HealthPollMax = time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// WebhookDispatch caps a single partner event dispatch.
const WebhookDispatch = 10 * time.Second

// WebhookLease holds off redelivery of a partner event while one caller
// dispatches it. It outlasts WebhookDispatch.
const WebhookLease = 30 * time.Second

// SecretStoreOp caps a single round trip to the ephemeral secret backend.
const SecretStoreOp = 2 * time.Second
