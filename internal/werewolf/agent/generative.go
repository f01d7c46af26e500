package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
)

// Request describes one decision for a responder to produce.
type Request struct {
	Action Action
	Player *domain.Player
	// Options is the legal target set for selection actions, empty for
	// free-form actions.
	Options []string
	// DebateTurnsLeft tells the responder how much debate remains.
	DebateTurnsLeft int
}

// Response is a responder's structured answer. Only the field matching the
// requested action is meaningful.
type Response struct {
	// Target is the chosen name for target-selection actions.
	Target string
	// Bid is the numeric desire to speak for ActionBid.
	Bid int
	// Text is the free-form output for debate and summary actions.
	Text string
	// Reasoning carries the rationale behind the decision.
	Reasoning string
}

// Responder produces structured decisions for a generative agent. The LLM
// provider adapter implements it; simulations use the seeded policy
// responder.
type Responder interface {
	Respond(ctx context.Context, req Request) (Response, *domain.DecisionLog, error)
}

// Generative is a decision maker that computes answers from the player's
// private view via a responder. It never blocks on external input; the
// orchestrator may still impose a defensive timeout through the context.
type Generative struct {
	player         *domain.Player
	responder      Responder
	maxDebateTurns int
}

// NewGenerative creates a generative agent for the player.
func NewGenerative(player *domain.Player, responder Responder, maxDebateTurns int) *Generative {
	return &Generative{player: player, responder: responder, maxDebateTurns: maxDebateTurns}
}

// Player implements DecisionMaker.
func (g *Generative) Player() *domain.Player { return g.player }

// Kind implements DecisionMaker.
func (g *Generative) Kind() Kind { return KindGenerative }

// Bid signals the desire to speak next in the debate.
func (g *Generative) Bid(ctx context.Context) (int, *domain.DecisionLog, error) {
	resp, log, err := g.respond(ctx, ActionBid, nil)
	if err != nil {
		return 0, log, err
	}
	if resp.Bid < 0 || resp.Bid > MaxBid {
		return 0, log, fmt.Errorf("bid %d: %w", resp.Bid, ErrIllegalBid)
	}
	g.player.BiddingRationale = resp.Reasoning
	return resp.Bid, log, nil
}

// Debate produces the spoken contribution for this turn. An empty utterance
// is a valid decision.
func (g *Generative) Debate(ctx context.Context) (string, *domain.DecisionLog, error) {
	resp, log, err := g.respond(ctx, ActionDebate, nil)
	if err != nil {
		return "", log, err
	}
	return resp.Text, log, nil
}

// Vote chooses who to exile.
func (g *Generative) Vote(ctx context.Context) (string, *domain.DecisionLog, error) {
	options, err := g.player.VoteOptions()
	if err != nil {
		return "", nil, err
	}
	target, log, err := g.selectTarget(ctx, ActionVote, options)
	if err != nil {
		return "", log, err
	}
	if g.player.View != nil && len(g.player.View.Debate) >= g.maxDebateTurns {
		if err := g.player.AddObservation(fmt.Sprintf(
			"After the debate, I voted to remove %s from the game.", target,
		)); err != nil {
			return "", log, err
		}
	}
	return target, log, nil
}

// Eliminate chooses the night kill. Werewolves only.
func (g *Generative) Eliminate(ctx context.Context) (string, *domain.DecisionLog, error) {
	if g.player.Role != domain.RoleWerewolf {
		return "", nil, fmt.Errorf("%s eliminate: %w", g.player.Role, ErrUnsupportedAction)
	}
	options, err := g.player.EliminateOptions()
	if err != nil {
		return "", nil, err
	}
	return g.selectTarget(ctx, ActionEliminate, options)
}

// Investigate chooses who to unmask. Seer only.
func (g *Generative) Investigate(ctx context.Context) (string, *domain.DecisionLog, error) {
	if g.player.Role != domain.RoleSeer {
		return "", nil, fmt.Errorf("%s investigate: %w", g.player.Role, ErrUnsupportedAction)
	}
	options, err := g.player.InvestigateOptions()
	if err != nil {
		return "", nil, err
	}
	return g.selectTarget(ctx, ActionInvestigate, options)
}

// Protect chooses who to shield from elimination. Doctor only.
func (g *Generative) Protect(ctx context.Context) (string, *domain.DecisionLog, error) {
	if g.player.Role != domain.RoleDoctor {
		return "", nil, fmt.Errorf("%s protect: %w", g.player.Role, ErrUnsupportedAction)
	}
	options, err := g.player.ProtectOptions()
	if err != nil {
		return "", nil, err
	}
	target, log, err := g.selectTarget(ctx, ActionProtect, options)
	if err != nil {
		return "", log, err
	}
	if err := g.player.AddObservation(
		"During the night, I chose to protect " + target,
	); err != nil {
		return "", log, err
	}
	return target, log, nil
}

// Summarize appends a self-authored observation about the round. The
// returned summary may be empty.
func (g *Generative) Summarize(ctx context.Context) (string, *domain.DecisionLog, error) {
	resp, log, err := g.respond(ctx, ActionSummarize, nil)
	if err != nil {
		return "", log, err
	}
	summary := strings.Trim(resp.Text, `"`)
	if summary != "" {
		if err := g.player.AddObservation("Summary: " + summary); err != nil {
			return "", log, err
		}
	}
	return summary, log, nil
}

func (g *Generative) respond(ctx context.Context, action Action, options []string) (Response, *domain.DecisionLog, error) {
	turnsLeft := g.maxDebateTurns
	if g.player.View != nil {
		turnsLeft -= len(g.player.View.Debate)
	}
	return g.responder.Respond(ctx, Request{
		Action:          action,
		Player:          g.player,
		Options:         options,
		DebateTurnsLeft: turnsLeft,
	})
}

func (g *Generative) selectTarget(ctx context.Context, action Action, options []string) (string, *domain.DecisionLog, error) {
	if len(options) == 0 {
		return "", nil, fmt.Errorf("%s for %s: %w", action, g.player.Name, ErrNoOptions)
	}
	resp, log, err := g.respond(ctx, action, options)
	if err != nil {
		return "", log, err
	}
	if resp.Target == "" {
		return "", log, fmt.Errorf("%s for %s: %w", action, g.player.Name, ErrNoDecision)
	}
	if !containsOption(options, resp.Target) {
		return "", log, fmt.Errorf("%s for %s chose %q: %w", action, g.player.Name, resp.Target, ErrIllegalTarget)
	}
	return resp.Target, log, nil
}
