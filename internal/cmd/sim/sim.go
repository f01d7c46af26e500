// Package sim parses simulation flags and runs one offline game.
package sim

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"

	entrypoint "github.com/emirks/werewolf-arena/internal/platform/cmd"
	"github.com/emirks/werewolf-arena/internal/platform/random"
	"github.com/emirks/werewolf-arena/internal/werewolf/agent"
	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
	"github.com/emirks/werewolf-arena/internal/werewolf/master"
	"github.com/emirks/werewolf-arena/internal/werewolf/storage"
	werewolfsqlite "github.com/emirks/werewolf-arena/internal/werewolf/storage/sqlite"
)

// Config holds simulation command configuration.
type Config struct {
	Players   string `env:"WEREWOLF_ARENA_SIM_PLAYERS" envDefault:"Bela,Cora,Vera,Wren,Dina,Sage,Milo,Iris"`
	Kind      string `env:"WEREWOLF_ARENA_SIM_KIND" envDefault:"policy"`
	LLMURL    string `env:"WEREWOLF_ARENA_LLM_URL"`
	LLMModel  string `env:"WEREWOLF_ARENA_LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMAPIKey string `env:"WEREWOLF_ARENA_LLM_API_KEY"`
	DBPath    string `env:"WEREWOLF_ARENA_SIM_DB_PATH"`
	Seed      int64
	SessionID string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Players, "players", cfg.Players, "Comma-separated roster of player names")
	fs.StringVar(&cfg.Kind, "kind", cfg.Kind, "Agent kind for every player (policy or generative)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Optional SQLite path for round checkpoints")
	fs.Int64Var(&cfg.Seed, "seed", 0, "RNG seed (0 picks a random one)")
	fs.StringVar(&cfg.SessionID, "session", "sim", "Session identifier")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run plays one game to completion and logs the winner.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSim, func(context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	seed := cfg.Seed
	if seed == 0 {
		generated, err := random.NewSeed()
		if err != nil {
			return fmt.Errorf("seed rng: %w", err)
		}
		seed = generated
	}
	rng := rand.New(rand.NewSource(seed))

	var names []string
	for _, name := range strings.Split(cfg.Players, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}

	state, err := domain.Setup(domain.SetupInput{SessionID: cfg.SessionID, Names: names}, rng)
	if err != nil {
		return fmt.Errorf("set up game: %w", err)
	}

	agents, err := buildAgents(cfg, state, rng)
	if err != nil {
		return err
	}

	masterCfg := master.DefaultConfig()
	if cfg.DBPath != "" {
		store, err := werewolfsqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		defer store.Close()
		masterCfg.OnRoundComplete = func(ctx context.Context, state *domain.GameState, logs []*domain.RoundLog) error {
			return store.SaveCheckpoint(ctx, storage.Checkpoint{State: state, Logs: logs})
		}
	}

	gm, err := master.New(state, agents, master.LogNotifier{}, rng, masterCfg)
	if err != nil {
		return err
	}

	log.Printf("starting simulation with seed %d", seed)
	winner, err := gm.Run(ctx)
	if err != nil {
		return fmt.Errorf("run game: %w", err)
	}
	log.Printf("winner: %s after %d rounds", winner, len(state.Rounds))
	return nil
}

func buildAgents(cfg Config, state *domain.GameState, rng *rand.Rand) (map[string]agent.DecisionMaker, error) {
	maxTurns := master.DefaultConfig().MaxDebateTurns
	agents := make(map[string]agent.DecisionMaker, len(state.AllNames()))
	for _, name := range state.AllNames() {
		player, err := state.Player(name)
		if err != nil {
			return nil, err
		}
		switch cfg.Kind {
		case "policy":
			responder := agent.NewPolicyResponder(rand.New(rand.NewSource(rng.Int63())))
			agents[name] = agent.NewGenerative(player, responder, maxTurns)
		case "generative":
			responder := agent.NewLLMResponder(agent.LLMConfig{
				ResponsesURL: cfg.LLMURL,
				APIKey:       cfg.LLMAPIKey,
				Model:        cfg.LLMModel,
			})
			agents[name] = agent.NewGenerative(player, responder, maxTurns)
		default:
			return nil, fmt.Errorf("unknown agent kind %q", cfg.Kind)
		}
	}
	return agents, nil
}
