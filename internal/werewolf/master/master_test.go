package master

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/emirks/werewolf-arena/internal/werewolf/agent"
	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
)

// scriptedAgent is a deterministic decision maker. Empty target fields fall
// back to the first legal option.
type scriptedAgent struct {
	player    *domain.Player
	kind      agent.Kind
	bid       int
	dialogue  string
	voteFor   string
	voteErr   error
	elimFor   string
	protects  string
	unmasks   string
	summary   string
	voteCalls int
}

func (s *scriptedAgent) Player() *domain.Player { return s.player }
func (s *scriptedAgent) Kind() agent.Kind       { return s.kind }

func (s *scriptedAgent) Bid(context.Context) (int, *domain.DecisionLog, error) {
	return s.bid, &domain.DecisionLog{}, nil
}

func (s *scriptedAgent) Debate(context.Context) (string, *domain.DecisionLog, error) {
	return s.dialogue, &domain.DecisionLog{}, nil
}

func (s *scriptedAgent) Vote(context.Context) (string, *domain.DecisionLog, error) {
	s.voteCalls++
	if s.voteErr != nil {
		return "", &domain.DecisionLog{}, s.voteErr
	}
	return s.pick(s.voteFor, s.player.VoteOptions)
}

func (s *scriptedAgent) Eliminate(context.Context) (string, *domain.DecisionLog, error) {
	return s.pick(s.elimFor, s.player.EliminateOptions)
}

func (s *scriptedAgent) Investigate(context.Context) (string, *domain.DecisionLog, error) {
	return s.pick(s.unmasks, s.player.InvestigateOptions)
}

func (s *scriptedAgent) Protect(context.Context) (string, *domain.DecisionLog, error) {
	return s.pick(s.protects, s.player.ProtectOptions)
}

func (s *scriptedAgent) Summarize(context.Context) (string, *domain.DecisionLog, error) {
	return s.summary, &domain.DecisionLog{}, nil
}

func (s *scriptedAgent) pick(target string, options func() ([]string, error)) (string, *domain.DecisionLog, error) {
	if target != "" {
		return target, &domain.DecisionLog{}, nil
	}
	opts, err := options()
	if err != nil {
		return "", nil, err
	}
	return opts[0], &domain.DecisionLog{}, nil
}

// testGame builds a six-player session: werewolves Vera and Wren, seer Sage,
// doctor Dina, villagers Bela and Cora. The roster order is Bela, Cora,
// Vera, Wren, Dina, Sage.
func testGame(t *testing.T) (*domain.GameState, map[string]agent.DecisionMaker) {
	t.Helper()
	seer := domain.NewPlayer("Sage", domain.RoleSeer, "steady")
	doctor := domain.NewPlayer("Dina", domain.RoleDoctor, "steady")
	wolves := []*domain.Player{
		domain.NewPlayer("Vera", domain.RoleWerewolf, "steady"),
		domain.NewPlayer("Wren", domain.RoleWerewolf, "steady"),
	}
	villagers := []*domain.Player{
		domain.NewPlayer("Bela", domain.RoleVillager, "steady"),
		domain.NewPlayer("Cora", domain.RoleVillager, "steady"),
	}

	state, err := domain.NewGameState("session-1", seer, doctor, wolves, villagers)
	if err != nil {
		t.Fatalf("new game state: %v", err)
	}
	names := state.AllNames()
	agents := make(map[string]agent.DecisionMaker, len(names))
	for _, name := range names {
		p, err := state.Player(name)
		if err != nil {
			t.Fatalf("player: %v", err)
		}
		otherWolf := ""
		if p.Role == domain.RoleWerewolf {
			for _, w := range wolves {
				if w.Name != p.Name {
					otherWolf = w.Name
				}
			}
		}
		p.InitializeView(0, names, otherWolf)
		agents[name] = &scriptedAgent{player: p, kind: agent.KindGenerative}
	}
	return state, agents
}

func newTestMaster(t *testing.T, state *domain.GameState, agents map[string]agent.DecisionMaker, cfg Config) *GameMaster {
	t.Helper()
	gm, err := New(state, agents, NopNotifier{}, rand.New(rand.NewSource(42)), cfg)
	if err != nil {
		t.Fatalf("new game master: %v", err)
	}
	gm.logf = func(string, ...any) {}
	return gm
}

func beginRound(gm *GameMaster) {
	roster := gm.state.AllNames()
	if gm.currentRound > 0 {
		roster = append([]string(nil), gm.state.Rounds[gm.currentRound-1].Players...)
	}
	gm.state.Rounds = append(gm.state.Rounds, domain.NewRound(roster))
	gm.logs = append(gm.logs, &domain.RoundLog{})
}

func script(t *testing.T, agents map[string]agent.DecisionMaker, name string) *scriptedAgent {
	t.Helper()
	s, ok := agents[name].(*scriptedAgent)
	if !ok {
		t.Fatalf("agent %s is not scripted", name)
	}
	return s
}

func TestNightEliminationRemovesUnprotectedTarget(t *testing.T) {
	state, agents := testGame(t)
	script(t, agents, "Vera").elimFor = "Bela"
	script(t, agents, "Wren").elimFor = "Bela"
	script(t, agents, "Dina").protects = "Dina"
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)
	ctx := context.Background()

	if err := gm.runEliminate(ctx); err != nil {
		t.Fatalf("eliminate: %v", err)
	}
	if err := gm.runProtect(ctx); err != nil {
		t.Fatalf("protect: %v", err)
	}
	if err := gm.resolveNight(ctx); err != nil {
		t.Fatalf("resolve night: %v", err)
	}

	round := gm.thisRound()
	if round.Contains("Bela") {
		t.Fatal("expected Bela removed from the round")
	}
	survivor, err := state.Player("Cora")
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	if survivor.View.Contains("Bela") {
		t.Fatal("expected Bela removed from surviving views")
	}
	want := "Moderator Announcement: The Werewolves removed Bela from the game during the night."
	found := false
	for _, obs := range survivor.Observations {
		if strings.Contains(obs, want) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected announcement, got %v", survivor.Observations)
	}

	wolf, err := state.Player("Vera")
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	foundWolfObs := false
	for _, obs := range wolf.Observations {
		if strings.Contains(obs, "During the night, we decided to eliminate Bela.") {
			foundWolfObs = true
		}
	}
	if !foundWolfObs {
		t.Fatalf("expected shared wolf observation, got %v", wolf.Observations)
	}
}

func TestNightPhasesSkipRemovedActors(t *testing.T) {
	state, agents := testGame(t)
	script(t, agents, "Vera").elimFor = "Cora"
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)
	ctx := context.Background()

	// Wren, Dina, and Sage fell in earlier rounds.
	for _, name := range []string{"Wren", "Dina", "Sage"} {
		if err := gm.removePlayer(ctx, name); err != nil {
			t.Fatalf("remove %s: %v", name, err)
		}
	}

	if err := gm.runEliminate(ctx); err != nil {
		t.Fatalf("eliminate: %v", err)
	}
	if err := gm.runProtect(ctx); err != nil {
		t.Fatalf("protect: %v", err)
	}
	if err := gm.runUnmask(ctx); err != nil {
		t.Fatalf("unmask: %v", err)
	}

	round := gm.thisRound()
	if round.Eliminated != "Cora" {
		t.Fatalf("eliminated = %q, want Cora", round.Eliminated)
	}
	if round.Protected != "" {
		t.Fatalf("expected no protection with the doctor removed, got %q", round.Protected)
	}
	if round.Unmasked != "" {
		t.Fatalf("expected no investigation with the seer removed, got %q", round.Unmasked)
	}

	wolf, err := state.Player("Vera")
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	found := false
	for _, obs := range wolf.Observations {
		if strings.Contains(obs, "During the night, I decided to eliminate Cora.") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected lone-wolf observation, got %v", wolf.Observations)
	}
}

func TestProtectionPreventsElimination(t *testing.T) {
	state, agents := testGame(t)
	script(t, agents, "Vera").elimFor = "Bela"
	script(t, agents, "Wren").elimFor = "Bela"
	script(t, agents, "Dina").protects = "Bela"
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)
	ctx := context.Background()

	if err := gm.runEliminate(ctx); err != nil {
		t.Fatalf("eliminate: %v", err)
	}
	if err := gm.runProtect(ctx); err != nil {
		t.Fatalf("protect: %v", err)
	}
	if err := gm.resolveNight(ctx); err != nil {
		t.Fatalf("resolve night: %v", err)
	}

	if !gm.thisRound().Contains("Bela") {
		t.Fatal("expected Bela to survive the night")
	}
	survivor, err := state.Player("Bela")
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	want := "No one was removed from the game during the night."
	found := false
	for _, obs := range survivor.Observations {
		if strings.Contains(obs, want) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected null announcement, got %v", survivor.Observations)
	}
}

func TestUnmaskRevealsRoleImmediately(t *testing.T) {
	state, agents := testGame(t)
	script(t, agents, "Sage").unmasks = "Vera"
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)

	if err := gm.runUnmask(context.Background()); err != nil {
		t.Fatalf("unmask: %v", err)
	}
	seer, err := state.Player("Sage")
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	if seer.PreviouslyUnmasked["Vera"] != domain.RoleWerewolf {
		t.Fatalf("expected Vera unmasked as werewolf, got %v", seer.PreviouslyUnmasked)
	}
}

func TestExileRequiresStrictMajority(t *testing.T) {
	tests := []struct {
		name      string
		votes     map[string]string
		wantExile string
	}{
		{
			name: "exactly half is not a majority",
			votes: map[string]string{
				"Vera": "Bela", "Wren": "Bela", "Sage": "Bela",
				"Dina": "Vera", "Bela": "Vera", "Cora": "Vera",
			},
			wantExile: "",
		},
		{
			name: "strict majority exiles",
			votes: map[string]string{
				"Vera": "Bela", "Wren": "Bela", "Sage": "Bela",
				"Dina": "Bela", "Bela": "Vera", "Cora": "Vera",
			},
			wantExile: "Bela",
		},
		{
			name: "majority of votes cast counts abstentions out",
			votes: map[string]string{
				"Vera": "Bela", "Wren": "Bela", "Sage": "Vera",
			},
			wantExile: "Bela",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state, agents := testGame(t)
			gm := newTestMaster(t, state, agents, DefaultConfig())
			beginRound(gm)
			gm.thisRound().Votes = append(gm.thisRound().Votes, tc.votes)

			if err := gm.runExile(context.Background()); err != nil {
				t.Fatalf("exile: %v", err)
			}
			if gm.thisRound().Exiled != tc.wantExile {
				t.Fatalf("expected exile %q, got %q", tc.wantExile, gm.thisRound().Exiled)
			}
			if tc.wantExile != "" && gm.thisRound().Contains(tc.wantExile) {
				t.Fatal("expected exiled player removed from the round")
			}
		})
	}
}

func TestVoteFailureIsOmittedFromTally(t *testing.T) {
	state, agents := testGame(t)
	for _, name := range state.AllNames() {
		script(t, agents, name).voteFor = "Bela"
	}
	script(t, agents, "Cora").voteErr = errors.New("agent stalled")
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)

	if err := gm.runVoting(context.Background()); err != nil {
		t.Fatalf("voting: %v", err)
	}
	votes := gm.thisRound().Votes[0]
	if _, ok := votes["Cora"]; ok {
		t.Fatal("expected failed vote omitted from tally")
	}
	if len(votes) != 5 {
		t.Fatalf("expected 5 counted votes, got %d", len(votes))
	}
	records := gm.thisRoundLog().Votes[0]
	foundRecord := false
	for _, record := range records {
		if record.Player == "Cora" && record.VotedFor == "" {
			foundRecord = true
		}
	}
	if !foundRecord {
		t.Fatal("expected failed vote recorded in the log")
	}
}

func TestNextSpeakerSkipsPreviousSpeaker(t *testing.T) {
	state, agents := testGame(t)
	script(t, agents, "Bela").bid = 4
	script(t, agents, "Cora").bid = 2
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)
	gm.thisRound().Debate = append(gm.thisRound().Debate, domain.DebateTurn{
		Speaker: "Bela", Dialogue: "I have my suspicions.",
	})

	speaker, err := gm.nextSpeaker(context.Background())
	if err != nil {
		t.Fatalf("next speaker: %v", err)
	}
	if speaker != "Cora" {
		t.Fatalf("expected the highest eligible bidder, got %q", speaker)
	}
	bids := gm.thisRound().Bids[0]
	if _, ok := bids["Bela"]; ok {
		t.Fatal("previous speaker must not bid")
	}
}

func TestDebateConcludesWhenNoOneBids(t *testing.T) {
	state, agents := testGame(t)
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)
	gm.thisRound().Debate = append(gm.thisRound().Debate, domain.DebateTurn{
		Speaker: "Bela", Dialogue: "I have said my piece.",
	})

	speaker, err := gm.nextSpeaker(context.Background())
	if err != nil {
		t.Fatalf("next speaker: %v", err)
	}
	if speaker != "" {
		t.Fatalf("expected no speaker on all-zero bids, got %q", speaker)
	}
}

func TestNextSpeakerFavorsMentionedPlayers(t *testing.T) {
	state, agents := testGame(t)
	script(t, agents, "Cora").bid = 4
	script(t, agents, "Dina").bid = 4
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)
	gm.thisRound().Debate = append(gm.thisRound().Debate, domain.DebateTurn{
		Speaker: "Bela", Dialogue: "I do not trust Cora at all.",
	})

	wins := map[string]int{}
	for i := 0; i < 600; i++ {
		round := gm.thisRound()
		round.Bids = nil
		gm.logs[len(gm.logs)-1].Bids = nil
		speaker, err := gm.nextSpeaker(context.Background())
		if err != nil {
			t.Fatalf("next speaker: %v", err)
		}
		wins[speaker]++
	}
	if wins["Cora"] <= wins["Dina"] {
		t.Fatalf("expected the mentioned bidder to win more often, got %v", wins)
	}
}

func TestSyntheticVotesDisabledWithExternalAgent(t *testing.T) {
	state, agents := testGame(t)
	script(t, agents, "Bela").kind = agent.KindExternal
	gm := newTestMaster(t, state, agents, DefaultConfig())

	if gm.cfg.SyntheticVotes {
		t.Fatal("expected synthetic votes forced off with an external player")
	}
}

func TestNewRequiresAgentPerPlayer(t *testing.T) {
	state, agents := testGame(t)
	delete(agents, "Cora")
	if _, err := New(state, agents, NopNotifier{}, rand.New(rand.NewSource(1)), DefaultConfig()); !errors.Is(err, ErrMissingAgent) {
		t.Fatalf("expected ErrMissingAgent, got %v", err)
	}
}

func TestWinnerIsMonotonic(t *testing.T) {
	state, agents := testGame(t)
	gm := newTestMaster(t, state, agents, DefaultConfig())
	beginRound(gm)
	state.Winner = domain.FactionVillagers

	gm.thisRound().Players = []string{"Vera", "Wren", "Bela"}
	if err := gm.checkWinner(context.Background()); err != nil {
		t.Fatalf("check winner: %v", err)
	}
	if state.Winner != domain.FactionVillagers {
		t.Fatalf("winner must not change once set, got %s", state.Winner)
	}
}

func TestRunPlaysToWerewolfWin(t *testing.T) {
	// With every decision on its default, the wolves remove Bela at night
	// and the day vote piles onto Cora, reaching parity in one round.
	state, agents := testGame(t)
	cfg := DefaultConfig()
	cfg.SyntheticVotes = false
	cfg.MaxDebateTurns = 2
	gm := newTestMaster(t, state, agents, cfg)

	winner, err := gm.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if winner != domain.FactionWerewolves {
		t.Fatalf("expected werewolves to win, got %q", winner)
	}
	if state.Winner != domain.FactionWerewolves {
		t.Fatalf("expected winner recorded in state, got %q", state.Winner)
	}
	for i, round := range state.Rounds {
		if !round.Success {
			t.Fatalf("round %d not marked successful", i)
		}
	}
	if len(gm.Logs()) != len(state.Rounds) {
		t.Fatalf("expected one log per round, got %d for %d rounds", len(gm.Logs()), len(state.Rounds))
	}
}

func TestRunPlaysToVillagerWin(t *testing.T) {
	// The doctor shadows the wolves' target and the village votes the
	// wolves out one per day.
	state, agents := testGame(t)
	script(t, agents, "Vera").elimFor = "Bela"
	script(t, agents, "Wren").elimFor = "Bela"
	script(t, agents, "Dina").protects = "Bela"
	for _, name := range state.AllNames() {
		script(t, agents, name).voteFor = "Vera"
	}
	script(t, agents, "Vera").voteFor = "Wren"

	cfg := DefaultConfig()
	cfg.SyntheticVotes = false
	cfg.MaxDebateTurns = 1
	gm := newTestMaster(t, state, agents, cfg)

	if err := gm.RunRound(context.Background()); err != nil {
		t.Fatalf("round: %v", err)
	}
	if state.Rounds[0].Exiled != "Vera" {
		t.Fatalf("expected Vera exiled, got %q", state.Rounds[0].Exiled)
	}
	gm.currentRound++

	// Exiling Vera leaves Wren; the village then converges on Wren.
	for _, name := range state.AllNames() {
		script(t, agents, name).voteFor = "Wren"
	}

	winner, err := gm.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if winner != domain.FactionVillagers {
		t.Fatalf("expected villagers to win, got %q", winner)
	}
}

func TestRunInvokesCheckpointHook(t *testing.T) {
	state, agents := testGame(t)
	checkpoints := 0
	cfg := DefaultConfig()
	cfg.SyntheticVotes = false
	cfg.MaxDebateTurns = 1
	cfg.OnRoundComplete = func(_ context.Context, s *domain.GameState, logs []*domain.RoundLog) error {
		checkpoints++
		if len(s.Rounds) != len(logs) {
			return errors.New("state and logs out of step")
		}
		return nil
	}
	gm := newTestMaster(t, state, agents, cfg)

	if _, err := gm.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if checkpoints != len(state.Rounds) {
		t.Fatalf("expected a checkpoint per round, got %d for %d rounds", checkpoints, len(state.Rounds))
	}
}
