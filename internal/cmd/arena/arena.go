// Package arena parses arena service flags and launches the service.
package arena

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/emirks/werewolf-arena/internal/arena/app"
	entrypoint "github.com/emirks/werewolf-arena/internal/platform/cmd"
	platformgrpc "github.com/emirks/werewolf-arena/internal/platform/grpc"
	"github.com/emirks/werewolf-arena/internal/werewolf/agent"
	"github.com/emirks/werewolf-arena/internal/werewolf/master"
)

// Config holds arena command configuration.
type Config struct {
	HTTPPort  int    `env:"WEREWOLF_ARENA_HTTP_PORT" envDefault:"8080"`
	GRPCPort  int    `env:"WEREWOLF_ARENA_GRPC_PORT" envDefault:"8090"`
	DBPath    string `env:"WEREWOLF_ARENA_DB_PATH" envDefault:"data/arena.db"`
	LLMURL    string `env:"WEREWOLF_ARENA_LLM_URL"`
	LLMModel  string `env:"WEREWOLF_ARENA_LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMAPIKey string `env:"WEREWOLF_ARENA_LLM_API_KEY"`

	// Check dials the health endpoint of a running arena and exits.
	Check     bool
	CheckAddr string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The arena HTTP server port")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The arena gRPC health server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite session database")
	fs.BoolVar(&cfg.Check, "check", false, "Check the health of a running arena and exit")
	fs.StringVar(&cfg.CheckAddr, "check-addr", "", "Health check address (defaults to localhost:<grpc-port>)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the arena service.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Check {
		return Check(ctx, cfg)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceArena, func(context.Context) error {
		return app.Run(ctx, appConfig(cfg))
	})
}

// Check dials a running arena's gRPC health endpoint and reports the result.
func Check(ctx context.Context, cfg Config) error {
	addr := cfg.CheckAddr
	if addr == "" {
		addr = fmt.Sprintf("localhost:%d", cfg.GRPCPort)
	}
	conn, err := platformgrpc.DialWithHealth(ctx, nil, addr, 10*time.Second, log.Printf,
		platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		return err
	}
	defer conn.Close()
	return platformgrpc.WaitForHealth(ctx, conn, app.HealthService, log.Printf)
}

func appConfig(cfg Config) app.Config {
	return app.Config{
		HTTPPort: cfg.HTTPPort,
		GRPCPort: cfg.GRPCPort,
		DBPath:   cfg.DBPath,
		LLM: agent.LLMConfig{
			ResponsesURL: cfg.LLMURL,
			APIKey:       cfg.LLMAPIKey,
			Model:        cfg.LLMModel,
		},
		Master: master.DefaultConfig(),
	}
}
