// Package master orchestrates werewolf sessions: it owns the authoritative
// game state, drives the night and day phases, and arbitrates speaking turns
// through auction-style bidding.
package master

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/emirks/werewolf-arena/internal/werewolf/agent"
	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
)

var tracer = otel.Tracer("github.com/emirks/werewolf-arena/internal/werewolf/master")

// ErrMissingAgent indicates a rostered player without a decision maker.
var ErrMissingAgent = errors.New("player has no decision maker")

// Config tunes the orchestration loop.
type Config struct {
	// MaxDebateTurns bounds the day-phase debate length.
	MaxDebateTurns int
	// VoteTimeout bounds the whole voting phase.
	VoteTimeout time.Duration
	// AgentTimeout bounds any single generative decision.
	AgentTimeout time.Duration
	// SyntheticVotes runs a throwaway vote after every debate turn to track
	// opinion shifts. Forced off when any externally-driven player is
	// present.
	SyntheticVotes bool
	// OnRoundComplete is called after each finished round, before the next
	// begins. Used for checkpointing.
	OnRoundComplete func(ctx context.Context, state *domain.GameState, logs []*domain.RoundLog) error
}

// DefaultConfig returns the standard orchestration settings.
func DefaultConfig() Config {
	return Config{
		MaxDebateTurns: 8,
		VoteTimeout:    60 * time.Second,
		AgentTimeout:   5 * time.Minute,
		SyntheticVotes: true,
	}
}

// GameMaster runs a single session to completion. It is not safe for
// concurrent use; one game is one goroutine.
type GameMaster struct {
	state    *domain.GameState
	agents   map[string]agent.DecisionMaker
	logs     []*domain.RoundLog
	notifier Notifier
	rng      *rand.Rand
	cfg      Config
	logf     func(format string, args ...any)

	currentRound int
}

// New creates a game master over state. Every rostered player must have a
// decision maker. Resuming a checkpointed state continues at the first
// unplayed round.
func New(state *domain.GameState, agents map[string]agent.DecisionMaker, notifier Notifier, rng *rand.Rand, cfg Config) (*GameMaster, error) {
	for _, name := range state.AllNames() {
		if _, ok := agents[name]; !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrMissingAgent)
		}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.MaxDebateTurns <= 0 {
		cfg.MaxDebateTurns = DefaultConfig().MaxDebateTurns
	}
	for _, a := range agents {
		if a.Kind() == agent.KindExternal {
			cfg.SyntheticVotes = false
			break
		}
	}
	return &GameMaster{
		state:        state,
		agents:       agents,
		notifier:     notifier,
		rng:          rng,
		cfg:          cfg,
		logf:         log.Printf,
		currentRound: len(state.Rounds),
	}, nil
}

// Logs returns the per-round decision traces collected so far.
func (m *GameMaster) Logs() []*domain.RoundLog { return m.logs }

// State returns the authoritative game state.
func (m *GameMaster) State() *domain.GameState { return m.state }

func (m *GameMaster) thisRound() *domain.Round { return m.state.Rounds[m.currentRound] }

func (m *GameMaster) thisRoundLog() *domain.RoundLog { return m.logs[len(m.logs)-1] }

// Run plays rounds until a faction wins and returns the winner.
func (m *GameMaster) Run(ctx context.Context) (domain.Faction, error) {
	for m.state.Winner == "" {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		m.logf("starting round %d", m.currentRound)
		if err := m.RunRound(ctx); err != nil {
			m.state.ErrorMessage = err.Error()
			return "", fmt.Errorf("round %d: %w", m.currentRound, err)
		}

		for _, name := range m.thisRound().Players {
			player, err := m.state.Player(name)
			if err != nil {
				return "", err
			}
			if player.View != nil {
				player.View.RoundNumber = m.currentRound + 1
				player.View.ClearDebate()
			}
		}

		if m.cfg.OnRoundComplete != nil {
			if err := m.cfg.OnRoundComplete(ctx, m.state, m.logs); err != nil {
				return "", fmt.Errorf("checkpoint round %d: %w", m.currentRound, err)
			}
		}
		m.currentRound++
	}
	m.logf("game complete, winner: %s", m.state.Winner)
	m.notify(ctx, EventGameState, map[string]any{"winner": string(m.state.Winner)})
	return m.state.Winner, nil
}

// RunRound plays one full round: the night actions, their resolution, the
// debate, the vote, and the per-player summaries. The round is marked
// successful once every phase ran or a winner emerged mid-round.
func (m *GameMaster) RunRound(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "round",
		trace.WithAttributes(attribute.Int("werewolf.round", m.currentRound)))
	defer span.End()

	roster := m.state.AllNames()
	if m.currentRound > 0 {
		previous := m.state.Rounds[m.currentRound-1]
		roster = append([]string(nil), previous.Players...)
	}
	m.state.Rounds = append(m.state.Rounds, domain.NewRound(roster))
	m.logs = append(m.logs, &domain.RoundLog{})

	phases := []struct {
		name    string
		message string
		run     func(context.Context) error
	}{
		{"eliminate", "The Werewolves are picking someone to remove from the game.", m.runEliminate},
		{"protect", "The Doctor is protecting someone.", m.runProtect},
		{"unmask", "The Seer is investigating someone.", m.runUnmask},
		{"resolve_night", "", m.resolveNight},
		{"check_winner", "Checking for a winner after the night phase.", m.checkWinner},
		{"day", "The players are debating and voting.", m.runDay},
		{"exile", "", m.runExile},
		{"check_winner", "Checking for a winner after the day phase.", m.checkWinner},
		{"summaries", "The players are summarizing the debate.", m.runSummaries},
	}
	for _, phase := range phases {
		if phase.message != "" {
			m.logf("%s", phase.message)
			m.notify(ctx, EventPhaseChange, map[string]any{"message": phase.message})
		}
		phaseCtx, phaseSpan := tracer.Start(ctx, "phase."+phase.name)
		err := phase.run(phaseCtx)
		phaseSpan.End()
		if err != nil {
			return err
		}
		if m.state.Winner != "" {
			m.thisRound().Success = true
			return nil
		}
	}
	m.thisRound().Success = true
	return nil
}

// runEliminate has a randomly chosen living werewolf pick the night kill.
func (m *GameMaster) runEliminate(ctx context.Context) error {
	round := m.thisRound()
	var wolves []*domain.Player
	for _, wolf := range m.state.Werewolves {
		if round.Contains(wolf.Name) {
			wolves = append(wolves, wolf)
		}
	}
	if len(wolves) == 0 {
		return nil
	}

	actor := wolves[m.rng.Intn(len(wolves))]
	target, decisionLog, err := m.decide(ctx, m.agents[actor.Name].Eliminate)
	m.thisRoundLog().Eliminate = decisionLog
	if err != nil {
		return fmt.Errorf("eliminate by %s: %w", actor.Name, err)
	}

	round.Eliminated = target
	m.logf("%s eliminated %s", actor.Name, target)

	pronoun := "I"
	if len(wolves) > 1 {
		pronoun = "we"
	}
	for _, wolf := range wolves {
		if err := wolf.AddObservation(fmt.Sprintf(
			"During the night, %s decided to eliminate %s.", pronoun, target,
		)); err != nil {
			return err
		}
	}
	return nil
}

// runProtect has the doctor, if alive, pick who to shield.
func (m *GameMaster) runProtect(ctx context.Context) error {
	doctor := m.state.Doctor
	if !m.thisRound().Contains(doctor.Name) {
		return nil
	}
	target, decisionLog, err := m.decide(ctx, m.agents[doctor.Name].Protect)
	m.thisRoundLog().Protect = decisionLog
	if err != nil {
		return fmt.Errorf("protect by %s: %w", doctor.Name, err)
	}
	m.thisRound().Protected = target
	m.logf("%s protected %s", doctor.Name, target)
	return nil
}

// runUnmask has the seer, if alive, investigate a player and learn their
// role immediately.
func (m *GameMaster) runUnmask(ctx context.Context) error {
	seer := m.state.Seer
	if !m.thisRound().Contains(seer.Name) {
		return nil
	}
	target, decisionLog, err := m.decide(ctx, m.agents[seer.Name].Investigate)
	m.thisRoundLog().Investigate = decisionLog
	if err != nil {
		return fmt.Errorf("investigate by %s: %w", seer.Name, err)
	}
	m.thisRound().Unmasked = target

	unmasked, err := m.state.Player(target)
	if err != nil {
		return err
	}
	return seer.RevealRole(target, unmasked.Role)
}

// resolveNight applies the elimination unless the doctor protected the
// target, then announces the outcome to the surviving players.
func (m *GameMaster) resolveNight(ctx context.Context) error {
	round := m.thisRound()
	announcement := "No one was removed from the game during the night."
	if round.Eliminated != "" && round.Eliminated != round.Protected {
		announcement = fmt.Sprintf(
			"The Werewolves removed %s from the game during the night.", round.Eliminated,
		)
		if err := m.removePlayer(ctx, round.Eliminated); err != nil {
			return err
		}
	}
	return m.announce(ctx, announcement)
}

// runDay runs the debate loop and the definitive vote.
func (m *GameMaster) runDay(ctx context.Context) error {
	round := m.thisRound()
	for turn := 0; turn < m.cfg.MaxDebateTurns; turn++ {
		speaker, err := m.nextSpeaker(ctx)
		if err != nil {
			return err
		}
		if speaker == "" {
			m.logf("no one else wishes to speak, the debate concludes")
			break
		}

		dialogue, decisionLog, err := m.decide(ctx, m.agents[speaker].Debate)
		if err != nil {
			return fmt.Errorf("debate by %s: %w", speaker, err)
		}
		m.thisRoundLog().Debate = append(m.thisRoundLog().Debate, domain.PlayerDecision{
			Player: speaker, Log: decisionLog,
		})
		round.Debate = append(round.Debate, domain.DebateTurn{Speaker: speaker, Dialogue: dialogue})
		m.logf("%s: %s", speaker, dialogue)

		for _, name := range round.Players {
			player, err := m.state.Player(name)
			if err != nil {
				return err
			}
			if player.View == nil {
				return fmt.Errorf("%s: %w", name, domain.ErrViewNotInitialized)
			}
			player.View.UpdateDebate(speaker, dialogue)
		}
		m.notify(ctx, EventDebateUpdate, map[string]any{
			"speaker":  speaker,
			"dialogue": dialogue,
			"turn":     len(round.Debate),
		})

		if m.cfg.SyntheticVotes {
			if err := m.runVoting(ctx); err != nil {
				return err
			}
		}
	}

	// The definitive vote. When synthetic votes ran after every turn the
	// last one already is definitive, unless the debate never started.
	if !m.cfg.SyntheticVotes || len(round.Votes) == 0 {
		m.logf("the debate has concluded, time to vote")
		m.notify(ctx, EventVotingUpdate, map[string]any{"message": "The debate has concluded. Time to vote."})
		if err := m.runVoting(ctx); err != nil {
			return err
		}
	}
	for voter, target := range round.Votes[len(round.Votes)-1] {
		m.logf("%s voted to remove %s", voter, target)
	}
	return nil
}

// nextSpeaker auctions the next debate turn. All living players except the
// previous speaker bid concurrently; the highest bidders enter a draw in
// which players named in the latest utterance carry double weight.
func (m *GameMaster) nextSpeaker(ctx context.Context) (string, error) {
	round := m.thisRound()
	previousSpeaker, previousDialogue := "", ""
	if len(round.Debate) > 0 {
		latest := round.Debate[len(round.Debate)-1]
		previousSpeaker, previousDialogue = latest.Speaker, latest.Dialogue
	}

	var bidders []string
	for _, name := range round.Players {
		if name != previousSpeaker {
			bidders = append(bidders, name)
		}
	}
	if len(bidders) == 0 {
		return "", nil
	}

	var mu sync.Mutex
	bids := make(map[string]int, len(bidders))
	decisions := make([]domain.PlayerDecision, 0, len(bidders))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, name := range bidders {
		group.Go(func() error {
			bid, decisionLog, err := m.decideBid(groupCtx, m.agents[name].Bid)
			if err != nil {
				return fmt.Errorf("bid by %s: %w", name, err)
			}
			mu.Lock()
			bids[name] = bid
			decisions = append(decisions, domain.PlayerDecision{Player: name, Log: decisionLog})
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return "", err
	}

	round.Bids = append(round.Bids, bids)
	m.thisRoundLog().Bids = append(m.thisRoundLog().Bids, decisions)

	highest := 0
	for _, bid := range bids {
		if bid > highest {
			highest = bid
		}
	}
	if highest == 0 && len(round.Debate) > 0 {
		return "", nil
	}

	var pool []string
	for _, name := range bidders {
		if bids[name] == highest {
			pool = append(pool, name)
			if previousDialogue != "" && strings.Contains(previousDialogue, name) {
				pool = append(pool, name)
			}
		}
	}
	return pool[m.rng.Intn(len(pool))], nil
}

// runVoting collects one vote per living player. A failed or absent vote is
// recorded in the log but omitted from the tally so a single stalled player
// cannot block the game.
func (m *GameMaster) runVoting(ctx context.Context) error {
	round := m.thisRound()
	voteCtx := ctx
	if m.cfg.VoteTimeout > 0 {
		var cancel context.CancelFunc
		voteCtx, cancel = context.WithTimeout(ctx, m.cfg.VoteTimeout)
		defer cancel()
	}

	var mu sync.Mutex
	votes := make(map[string]string)
	records := make([]domain.VoteRecord, 0, len(round.Players))

	var wg sync.WaitGroup
	for _, name := range round.Players {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target, decisionLog, err := m.agents[name].Vote(voteCtx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logf("vote by %s failed: %v", name, err)
				records = append(records, domain.VoteRecord{Player: name, Log: decisionLog})
				return
			}
			votes[name] = target
			records = append(records, domain.VoteRecord{Player: name, VotedFor: target, Log: decisionLog})
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	round.Votes = append(round.Votes, votes)
	m.thisRoundLog().Votes = append(m.thisRoundLog().Votes, records)
	m.notify(ctx, EventVotingUpdate, map[string]any{"votes": votes})
	return nil
}

// runExile removes the most-voted player when they hold a strict majority of
// the votes actually cast, then announces the outcome.
func (m *GameMaster) runExile(ctx context.Context) error {
	round := m.thisRound()
	if len(round.Votes) == 0 {
		return nil
	}
	finalVotes := round.Votes[len(round.Votes)-1]

	tally := make(map[string]int)
	mostVoted, highest := "", 0
	for _, target := range finalVotes {
		tally[target]++
		if tally[target] > highest {
			mostVoted, highest = target, tally[target]
		}
	}

	announcement := "A majority vote was not reached, so no one was removed from the game."
	if 2*highest > len(finalVotes) {
		round.Exiled = mostVoted
		announcement = fmt.Sprintf("The majority voted to remove %s from the game.", mostVoted)
		if err := m.removePlayer(ctx, mostVoted); err != nil {
			return err
		}
	}
	return m.announce(ctx, announcement)
}

// runSummaries lets every surviving player write a private round summary. A
// failed summary is logged and skipped; it never fails the round.
func (m *GameMaster) runSummaries(ctx context.Context) error {
	round := m.thisRound()
	var mu sync.Mutex
	decisions := make([]domain.PlayerDecision, 0, len(round.Players))

	var wg sync.WaitGroup
	for _, name := range round.Players {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, decisionLog, err := m.decide(ctx, m.agents[name].Summarize)
			if err != nil {
				m.logf("summary by %s failed: %v", name, err)
			}
			if summary != "" {
				m.logf("%s summary: %s", name, summary)
			}
			if decisionLog != nil {
				mu.Lock()
				decisions = append(decisions, domain.PlayerDecision{Player: name, Log: decisionLog})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	m.thisRoundLog().Summaries = decisions
	return ctx.Err()
}

// checkWinner updates the winner from the surviving roster. The outcome is
// monotonic: once set it never changes.
func (m *GameMaster) checkWinner(context.Context) error {
	if m.state.Winner != "" {
		return nil
	}
	m.state.Winner = m.state.WinnerFor(m.thisRound().Players)
	if m.state.Winner != "" {
		m.logf("the winner is %s", m.state.Winner)
	}
	return nil
}

// removePlayer takes a player out of every view on the round roster, the
// removed player's own included, then out of the roster itself.
func (m *GameMaster) removePlayer(ctx context.Context, name string) error {
	round := m.thisRound()
	for _, remaining := range round.Players {
		player, err := m.state.Player(remaining)
		if err != nil {
			return err
		}
		if player.View == nil {
			continue
		}
		if err := player.View.RemovePlayer(name); err != nil {
			return fmt.Errorf("remove %s from %s view: %w", name, remaining, err)
		}
	}
	if err := round.RemovePlayer(name); err != nil {
		return err
	}
	m.notify(ctx, EventPlayerUpdate, map[string]any{"removed": name, "players": round.Players})
	return nil
}

// announce delivers a moderator announcement to every surviving player.
func (m *GameMaster) announce(ctx context.Context, announcement string) error {
	for _, name := range m.thisRound().Players {
		player, err := m.state.Player(name)
		if err != nil {
			return err
		}
		if err := player.AddAnnouncement(announcement); err != nil {
			return err
		}
	}
	m.logf("%s", announcement)
	m.notify(ctx, EventAnnouncement, map[string]any{"announcement": announcement})
	return nil
}

// decide runs a string-valued decision under the defensive agent timeout.
func (m *GameMaster) decide(ctx context.Context, op func(context.Context) (string, *domain.DecisionLog, error)) (string, *domain.DecisionLog, error) {
	if m.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.AgentTimeout)
		defer cancel()
	}
	return op(ctx)
}

func (m *GameMaster) decideBid(ctx context.Context, op func(context.Context) (int, *domain.DecisionLog, error)) (int, *domain.DecisionLog, error) {
	if m.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.AgentTimeout)
		defer cancel()
	}
	return op(ctx)
}

func (m *GameMaster) notify(ctx context.Context, kind EventKind, data map[string]any) {
	m.notifier.Notify(ctx, Event{Kind: kind, Round: m.currentRound, Data: data})
}
