// Package agent provides the decision-maker capability behind every player:
// generative agents that compute answers from the player's game view and
// externally-driven agents that wait on a human response with a timeout.
package agent

import (
	"context"
	"errors"

	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
)

// Action identifies a decision kind requested from an agent. The values
// double as the structured-result keys for target-selection actions.
type Action string

const (
	ActionBid         Action = "bid"
	ActionDebate      Action = "debate"
	ActionVote        Action = "vote"
	ActionEliminate   Action = "remove"
	ActionInvestigate Action = "investigate"
	ActionProtect     Action = "protect"
	ActionSummarize   Action = "summarize"
)

// ResultKey returns the key under which a structured decision result holds
// this action's value.
func (a Action) ResultKey() string {
	switch a {
	case ActionDebate:
		return "say"
	case ActionSummarize:
		return "summary"
	}
	return string(a)
}

// MaxBid is the highest expressible desire to speak; bids range 0..MaxBid.
const MaxBid = 4

// Kind distinguishes how an agent produces decisions.
type Kind int

const (
	// KindGenerative computes decisions synchronously from internal policy
	// or generative reasoning.
	KindGenerative Kind = iota
	// KindExternal waits on an external participant and is subject to
	// timeouts.
	KindExternal
)

var (
	// ErrNoDecision indicates an agent produced no decision where one is
	// mandatory.
	ErrNoDecision = errors.New("agent returned no decision")
	// ErrIllegalTarget indicates a decision outside the legal option set.
	// Agents must fail explicitly instead of returning out-of-set values.
	ErrIllegalTarget = errors.New("agent returned a target outside the legal options")
	// ErrIllegalBid indicates a bid outside the 0..MaxBid range.
	ErrIllegalBid = errors.New("agent returned a bid outside the legal range")
	// ErrUnsupportedAction indicates a night action invoked on the wrong
	// role.
	ErrUnsupportedAction = errors.New("action not available for this role")
	// ErrNoOptions indicates an action with an empty legal option set.
	ErrNoOptions = errors.New("no legal options for action")
)

// DecisionMaker is the capability interface behind every player. Each
// operation returns the decision together with its raw trace. Target
// decisions are always drawn from the legal option set for the action, or
// fail explicitly.
type DecisionMaker interface {
	// Player returns the player this agent decides for.
	Player() *domain.Player
	// Kind reports whether decisions are generative or externally driven.
	Kind() Kind

	Bid(ctx context.Context) (int, *domain.DecisionLog, error)
	Debate(ctx context.Context) (string, *domain.DecisionLog, error)
	Vote(ctx context.Context) (string, *domain.DecisionLog, error)
	Eliminate(ctx context.Context) (string, *domain.DecisionLog, error)
	Investigate(ctx context.Context) (string, *domain.DecisionLog, error)
	Protect(ctx context.Context) (string, *domain.DecisionLog, error)
	Summarize(ctx context.Context) (string, *domain.DecisionLog, error)
}

func containsOption(options []string, target string) bool {
	for _, option := range options {
		if option == target {
			return true
		}
	}
	return false
}
