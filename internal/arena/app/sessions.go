// Package app wires the arena runtime: the session manager, the realtime
// hub, the HTTP and gRPC surfaces, and the storage lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/emirks/werewolf-arena/internal/arena/hub"
	perrors "github.com/emirks/werewolf-arena/internal/platform/errors"
	"github.com/emirks/werewolf-arena/internal/platform/id"
	"github.com/emirks/werewolf-arena/internal/platform/random"
	"github.com/emirks/werewolf-arena/internal/werewolf/agent"
	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
	"github.com/emirks/werewolf-arena/internal/werewolf/master"
	"github.com/emirks/werewolf-arena/internal/werewolf/storage"
)

// AgentKind selects how a rostered player is driven.
type AgentKind string

const (
	// AgentGenerative drives the player through the language model provider.
	AgentGenerative AgentKind = "generative"
	// AgentPolicy drives the player through the deterministic heuristic.
	AgentPolicy AgentKind = "policy"
	// AgentHuman routes the player's decisions through the realtime hub.
	AgentHuman AgentKind = "human"
)

// PlayerSpec describes one participant in a session.
type PlayerSpec struct {
	Name        string    `json:"name"`
	Kind        AgentKind `json:"kind"`
	Personality string    `json:"personality,omitempty"`
	// Model overrides the provider default for generative players.
	Model string `json:"model,omitempty"`
	// Role optionally pins the player's role before random assignment.
	Role string `json:"role,omitempty"`
}

// CreateSessionInput describes a new session.
type CreateSessionInput struct {
	SessionID string       `json:"session_id,omitempty"`
	Players   []PlayerSpec `json:"players"`
}

// SessionManager creates, resumes, and supervises game sessions. Each
// running session owns one orchestration goroutine.
type SessionManager struct {
	store    storage.GameStore
	hub      *hub.Hub
	llm      agent.LLMConfig
	master   master.Config
	timeouts agent.Timeouts
	logf     func(format string, args ...any)
	newSeed  func() (int64, error)
	newID    func() (string, error)

	mu      sync.Mutex
	running map[string]*runningGame
}

type runningGame struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSessionManager creates a session manager over the store and hub.
func NewSessionManager(store storage.GameStore, h *hub.Hub, llm agent.LLMConfig, cfg master.Config) *SessionManager {
	return &SessionManager{
		store:    store,
		hub:      h,
		llm:      llm,
		master:   cfg,
		timeouts: agent.DefaultTimeouts(),
		logf:     log.Printf,
		newSeed:  random.NewSeed,
		newID:    id.NewID,
		running:  make(map[string]*runningGame),
	}
}

// Create sets up a fresh game and starts its orchestration goroutine. It
// returns the session id once the initial checkpoint is stored.
func (m *SessionManager) Create(ctx context.Context, input CreateSessionInput) (string, error) {
	sessionID := input.SessionID
	if sessionID == "" {
		generated, err := m.newID()
		if err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}
		sessionID = generated
	}

	if _, err := m.store.LoadCheckpoint(ctx, sessionID); err == nil {
		return "", perrors.New(perrors.CodeSessionAlreadyExists, "session already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("check session %s: %w", sessionID, err)
	}

	seed, err := m.newSeed()
	if err != nil {
		return "", fmt.Errorf("seed session rng: %w", err)
	}
	rng := rand.New(rand.NewSource(seed))

	state, err := domain.Setup(setupInput(sessionID, input.Players), rng)
	if err != nil {
		return "", setupError(err)
	}

	agents, err := m.buildAgents(sessionID, state, input.Players, rng)
	if err != nil {
		return "", err
	}
	if err := m.launch(ctx, storage.Checkpoint{State: state}, agents, rng); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Resume loads a checkpointed session and continues it at the first
// unplayed round. The player specs describe how each survivor is driven and
// must cover the stored roster.
func (m *SessionManager) Resume(ctx context.Context, sessionID string, players []PlayerSpec) error {
	if sessionID == "" {
		return perrors.New(perrors.CodeSessionEmptyID, "session id is required")
	}
	checkpoint, err := m.store.LoadCheckpoint(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return perrors.Wrap(perrors.CodeNotFound, "session not found", err)
	}
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if checkpoint.State.Winner != "" {
		return perrors.New(perrors.CodeSessionAlreadyOver, "session already has a winner")
	}
	normalizeCheckpoint(&checkpoint)

	seed, err := m.newSeed()
	if err != nil {
		return fmt.Errorf("seed session rng: %w", err)
	}
	rng := rand.New(rand.NewSource(seed))

	agents, err := m.buildAgents(sessionID, checkpoint.State, players, rng)
	if err != nil {
		return err
	}
	return m.launch(ctx, checkpoint, agents, rng)
}

// Abort cancels a running session's orchestration goroutine.
func (m *SessionManager) Abort(sessionID string) error {
	m.mu.Lock()
	game, ok := m.running[sessionID]
	m.mu.Unlock()
	if !ok {
		return perrors.New(perrors.CodeNotFound, "session is not running")
	}
	game.cancel()
	<-game.done
	return nil
}

// Get returns the stored checkpoint for a session.
func (m *SessionManager) Get(ctx context.Context, sessionID string) (storage.Checkpoint, error) {
	checkpoint, err := m.store.LoadCheckpoint(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Checkpoint{}, perrors.Wrap(perrors.CodeNotFound, "session not found", err)
	}
	return checkpoint, err
}

// List returns stored session summaries, newest first.
func (m *SessionManager) List(ctx context.Context, limit int) ([]storage.SessionInfo, error) {
	return m.store.ListSessions(ctx, limit)
}

// Running reports whether a session currently has an orchestration
// goroutine.
func (m *SessionManager) Running(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[sessionID]
	return ok
}

// Shutdown aborts every running session and waits for their goroutines.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	games := make([]*runningGame, 0, len(m.running))
	for _, game := range m.running {
		games = append(games, game)
	}
	m.mu.Unlock()
	for _, game := range games {
		game.cancel()
		<-game.done
	}
}

// normalizeCheckpoint prepares a stored session for another run. A session
// that aborted mid-round leaves a trailing round with Success unset and
// views still pointing at it; the torn round is dropped and every surviving
// view is lined up with the round about to replay.
func normalizeCheckpoint(checkpoint *storage.Checkpoint) {
	state := checkpoint.State
	if n := len(state.Rounds); n > 0 && !state.Rounds[n-1].Success {
		state.Rounds = state.Rounds[:n-1]
	}
	if len(checkpoint.Logs) > len(state.Rounds) {
		checkpoint.Logs = checkpoint.Logs[:len(state.Rounds)]
	}
	state.ErrorMessage = ""

	resumeRound := len(state.Rounds)
	roster := state.AllNames()
	if resumeRound > 0 {
		roster = state.Rounds[resumeRound-1].Players
	}
	for _, name := range roster {
		player, err := state.Player(name)
		if err != nil || player.View == nil {
			continue
		}
		player.View.RoundNumber = resumeRound
		player.View.ClearDebate()
		player.View.CurrentPlayers = append([]string(nil), roster...)
	}
}

func (m *SessionManager) launch(ctx context.Context, checkpoint storage.Checkpoint, agents map[string]agent.DecisionMaker, rng *rand.Rand) error {
	sessionID := checkpoint.State.SessionID
	room := m.hub.Room(sessionID)

	// Round logs from before the resume point; each checkpoint write joins
	// them with whatever the master has collected since.
	prior := append([]*domain.RoundLog(nil), checkpoint.Logs...)

	cfg := m.master
	cfg.OnRoundComplete = func(ctx context.Context, state *domain.GameState, logs []*domain.RoundLog) error {
		return m.store.SaveCheckpoint(ctx, storage.Checkpoint{State: state, Logs: joinLogs(prior, logs)})
	}

	gm, err := master.New(checkpoint.State, agents, room, rng, cfg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.running[sessionID]; ok {
		m.mu.Unlock()
		return perrors.New(perrors.CodeSessionAlreadyExists, "session is already running")
	}
	// The orchestration goroutine outlives the request that started it, so
	// its context must not descend from the pooled request context.
	runCtx, cancel := context.WithCancel(context.Background())
	game := &runningGame{cancel: cancel, done: make(chan struct{})}
	m.running[sessionID] = game
	m.mu.Unlock()

	if err := m.store.SaveCheckpoint(ctx, storage.Checkpoint{State: checkpoint.State, Logs: checkpoint.Logs}); err != nil {
		cancel()
		close(game.done)
		m.mu.Lock()
		delete(m.running, sessionID)
		m.mu.Unlock()
		return fmt.Errorf("save initial checkpoint: %w", err)
	}

	go m.run(runCtx, sessionID, gm, prior, game)
	return nil
}

func joinLogs(prior, logs []*domain.RoundLog) []*domain.RoundLog {
	joined := make([]*domain.RoundLog, 0, len(prior)+len(logs))
	joined = append(joined, prior...)
	return append(joined, logs...)
}

func (m *SessionManager) run(ctx context.Context, sessionID string, gm *master.GameMaster, prior []*domain.RoundLog, game *runningGame) {
	defer func() {
		game.cancel()
		m.hub.Close(sessionID)
		m.mu.Lock()
		delete(m.running, sessionID)
		m.mu.Unlock()
		close(game.done)
	}()

	winner, err := gm.Run(ctx)
	if err != nil {
		m.logf("session %s aborted: %v", sessionID, err)
	} else {
		m.logf("session %s finished, winner: %s", sessionID, winner)
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.store.SaveCheckpoint(saveCtx, storage.Checkpoint{State: gm.State(), Logs: joinLogs(prior, gm.Logs())}); err != nil {
		m.logf("session %s final checkpoint failed: %v", sessionID, err)
	}
}

// buildAgents assembles one decision maker per rostered player. Generative
// and policy agents each get a private RNG stream so concurrent decisions
// never share one.
func (m *SessionManager) buildAgents(sessionID string, state *domain.GameState, players []PlayerSpec, rng *rand.Rand) (map[string]agent.DecisionMaker, error) {
	specs := make(map[string]PlayerSpec, len(players))
	for _, spec := range players {
		specs[spec.Name] = spec
	}

	agents := make(map[string]agent.DecisionMaker, len(state.AllNames()))
	for _, name := range state.AllNames() {
		spec, ok := specs[name]
		if !ok {
			return nil, perrors.WithMetadata(perrors.CodeSetupInvalidRole,
				"player has no agent spec", map[string]string{"player": name})
		}
		player, err := state.Player(name)
		if err != nil {
			return nil, err
		}

		kind := spec.Kind
		if kind == "" {
			kind = AgentPolicy
		}
		switch kind {
		case AgentGenerative:
			cfg := m.llm
			if spec.Model != "" {
				cfg.Model = spec.Model
			}
			agents[name] = agent.NewGenerative(player, agent.NewLLMResponder(cfg), m.master.MaxDebateTurns)
		case AgentPolicy:
			responder := agent.NewPolicyResponder(rand.New(rand.NewSource(rng.Int63())))
			agents[name] = agent.NewGenerative(player, responder, m.master.MaxDebateTurns)
		case AgentHuman:
			agents[name] = agent.NewHuman(player, m.hub.Room(sessionID), m.timeouts)
		default:
			return nil, perrors.WithMetadata(perrors.CodeSetupInvalidRole,
				"unknown agent kind", map[string]string{"player": name, "kind": string(kind)})
		}
	}
	return agents, nil
}

func setupInput(sessionID string, players []PlayerSpec) domain.SetupInput {
	input := domain.SetupInput{SessionID: sessionID}
	for _, spec := range players {
		input.Names = append(input.Names, spec.Name)
		if spec.Personality != "" {
			if input.Personalities == nil {
				input.Personalities = make(map[string]string)
			}
			input.Personalities[spec.Name] = spec.Personality
		}
		if spec.Role != "" {
			if input.FixedRoles == nil {
				input.FixedRoles = make(map[string]domain.Role)
			}
			input.FixedRoles[spec.Name] = domain.Role(spec.Role)
		}
	}
	return input
}

func setupError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTooFewPlayers):
		return perrors.Wrap(perrors.CodeSetupTooFewPlayers, "not enough players", err)
	case errors.Is(err, domain.ErrDuplicateName):
		return perrors.Wrap(perrors.CodeSetupDuplicateName, "duplicate player name", err)
	default:
		return err
	}
}
