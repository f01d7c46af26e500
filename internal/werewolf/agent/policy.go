package agent

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
)

// PolicyResponder is a seeded heuristic responder for offline simulations:
// it picks uniformly among legal targets, bids low unless the player was
// mentioned in the latest utterance, and produces short canned dialogue.
type PolicyResponder struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPolicyResponder creates a policy responder over the given source.
func NewPolicyResponder(rng *rand.Rand) *PolicyResponder {
	return &PolicyResponder{rng: rng}
}

// Respond implements Responder.
func (p *PolicyResponder) Respond(_ context.Context, req Request) (Response, *domain.DecisionLog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := &domain.DecisionLog{Prompt: "policy:" + string(req.Action)}
	resp := Response{Reasoning: "policy decision"}

	switch req.Action {
	case ActionBid:
		resp.Bid = p.rng.Intn(2)
		if mentionedInLatestTurn(req.Player) {
			resp.Bid = 2 + p.rng.Intn(MaxBid-1)
		}
		log.Result = map[string]any{"bid": resp.Bid, "reasoning": resp.Reasoning}
	case ActionDebate:
		resp.Text = p.dialogue(req.Player)
		log.Result = map[string]any{"say": resp.Text, "reasoning": resp.Reasoning}
	case ActionSummarize:
		resp.Text = "Nothing stood out this round."
		log.Result = map[string]any{"summary": resp.Text, "reasoning": resp.Reasoning}
	default:
		if len(req.Options) == 0 {
			return Response{}, log, fmt.Errorf("%s: %w", req.Action, ErrNoOptions)
		}
		resp.Target = req.Options[p.rng.Intn(len(req.Options))]
		log.Result = map[string]any{req.Action.ResultKey(): resp.Target, "reasoning": resp.Reasoning}
	}
	return resp, log, nil
}

func (p *PolicyResponder) dialogue(player *domain.Player) string {
	suspects := make([]string, 0)
	if player.View != nil {
		for _, name := range player.View.CurrentPlayers {
			if name != player.Name {
				suspects = append(suspects, name)
			}
		}
	}
	if len(suspects) == 0 {
		return ""
	}
	suspect := suspects[p.rng.Intn(len(suspects))]
	lines := []string{
		"I have been watching %s closely and something feels off.",
		"%s has been far too quiet for my taste.",
		"I am not ready to accuse anyone, but %s worries me.",
	}
	return fmt.Sprintf(lines[p.rng.Intn(len(lines))], suspect)
}

func mentionedInLatestTurn(player *domain.Player) bool {
	if player.View == nil || len(player.View.Debate) == 0 {
		return false
	}
	latest := player.View.Debate[len(player.View.Debate)-1]
	if latest.Speaker == player.Name {
		return false
	}
	return strings.Contains(latest.Dialogue, player.Name)
}
