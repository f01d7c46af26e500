package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/emirks/werewolf-arena/internal/arena/hub"
	"github.com/emirks/werewolf-arena/internal/werewolf/agent"
	"github.com/emirks/werewolf-arena/internal/werewolf/master"
	werewolfsqlite "github.com/emirks/werewolf-arena/internal/werewolf/storage/sqlite"
)

// HealthService is the name the arena reports on the gRPC health endpoint.
const HealthService = "werewolf.arena"

// Config holds the arena server configuration.
type Config struct {
	HTTPPort int
	GRPCPort int
	DBPath   string
	LLM      agent.LLMConfig
	Master   master.Config
}

// Server hosts the arena HTTP API, the realtime hub, the gRPC health
// endpoint, and the storage lifecycle.
type Server struct {
	httpListener net.Listener
	grpcListener net.Listener
	fiberApp     *fiber.App
	grpcServer   *grpc.Server
	health       *health.Server
	store        *werewolfsqlite.Store
	hub          *hub.Hub
	sessions     *SessionManager
}

// New creates a configured arena server listening on the provided ports.
func New(cfg Config) (*Server, error) {
	httpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		return nil, fmt.Errorf("listen on http port %d: %w", cfg.HTTPPort, err)
	}
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = httpListener.Close()
		return nil, fmt.Errorf("listen on grpc port %d: %w", cfg.GRPCPort, err)
	}

	store, err := openArenaStore(cfg.DBPath)
	if err != nil {
		_ = httpListener.Close()
		_ = grpcListener.Close()
		return nil, err
	}

	h := hub.New()
	sessions := NewSessionManager(store, h, cfg.LLM, cfg.Master)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	server := &Server{
		httpListener: httpListener,
		grpcListener: grpcListener,
		fiberApp:     app,
		grpcServer:   grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler())),
		health:       health.NewServer(),
		store:        store,
		hub:          h,
		sessions:     sessions,
	}
	server.registerRoutes()

	grpc_health_v1.RegisterHealthServer(server.grpcServer, server.health)
	server.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	server.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	return server, nil
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Run creates and serves an arena server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP and gRPC servers until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("arena http listening at %v", s.httpListener.Addr())
	log.Printf("arena grpc listening at %v", s.grpcListener.Addr())

	serveErr := make(chan error, 2)
	go func() {
		serveErr <- s.fiberApp.Listener(s.httpListener)
	}()
	go func() {
		serveErr <- s.grpcServer.Serve(s.grpcListener)
	}()

	select {
	case <-ctx.Done():
		s.shutdown()
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve arena: %w", err)
	}
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.sessions != nil {
		s.sessions.Shutdown()
	}
	if s.fiberApp != nil {
		if err := s.fiberApp.Shutdown(); err != nil {
			log.Printf("shutdown http server: %v", err)
		}
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

// Close releases arena server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.fiberApp != nil {
		_ = s.fiberApp.Shutdown()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close arena store: %v", err)
		}
	}
}

func openArenaStore(path string) (*werewolfsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := werewolfsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open arena sqlite store: %w", err)
	}
	return store, nil
}
