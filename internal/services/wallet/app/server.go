// Package server assembles and runs the wallet service process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	platformgrpc "github.com/louisbranch/passwallet/internal/platform/grpc"
	"github.com/louisbranch/passwallet/internal/platform/timeouts"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage/sqlstore"
)

// HealthService is the gRPC health service name reported once the wallet is ready.
const HealthService = "passwallet.v1.Wallet"

// RuntimeConfig holds the process-level settings not owned by a component.
type RuntimeConfig struct {
	GRPCPort int
	HTTPAddr string
}

// Server hosts the wallet HTTP API and the internal gRPC health endpoint.
type Server struct {
	listener     net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	httpListener net.Listener
	httpServer   *http.Server
	store        *sqlstore.Store
	redis        *redis.Client
	background   []func(context.Context)
}

// New loads component configuration from the environment, opens storage,
// and binds both listeners.
func New(ctx context.Context, cfg RuntimeConfig) (*Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, errors.New("http address is required")
	}
	components, err := loadComponentConfig()
	if err != nil {
		return nil, err
	}

	store, err := sqlstore.Open(ctx, components.storage)
	if err != nil {
		return nil, fmt.Errorf("open wallet store: %w", err)
	}
	var redisClient *redis.Client
	if components.usesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr: components.secrets.RedisAddr,
			DB:   components.secrets.RedisDB,
		})
	}
	s := &Server{store: store, redis: redisClient}

	handler, err := s.wire(components)
	if err != nil {
		s.close()
		return nil, err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		s.close()
		return nil, fmt.Errorf("listen on port %d: %w", cfg.GRPCPort, err)
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = listener.Close()
		s.close()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}

	grpcServer, healthServer := platformgrpc.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	s.listener = listener
	s.grpcServer = grpcServer
	s.health = healthServer
	s.httpListener = httpListener
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return s, nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves a wallet server until the context ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts both listeners and blocks until one fails or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.close()

	for _, start := range s.background {
		start(serverCtx)
	}

	log.Printf("wallet health gRPC listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	log.Printf("wallet HTTP API listening at %v", s.httpListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
	shutdownGRPC := func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown wallet HTTP: %v", err)
		}
	}

	select {
	case <-ctx.Done():
		shutdownHTTP()
		shutdownGRPC()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		shutdownHTTP()
		return handleErr(err)
	case err := <-httpErr:
		shutdownGRPC()
		grpcErr := <-serveErr
		if errors.Is(err, http.ErrServerClosed) {
			return handleErr(grpcErr)
		}
		if handled := handleErr(grpcErr); handled != nil {
			return handled
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func (s *Server) close() {
	if s == nil {
		return
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("close redis client: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close wallet store: %v", err)
		}
	}
}
