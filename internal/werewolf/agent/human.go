package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/emirks/werewolf-arena/internal/platform/id"
	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
)

// Timeouts bounds how long an external participant may take per action kind.
type Timeouts struct {
	Bid         time.Duration
	Debate      time.Duration
	NightAction time.Duration
	Vote        time.Duration
}

// DefaultTimeouts returns the standard per-action deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Bid:         15 * time.Second,
		Debate:      120 * time.Second,
		NightAction: 60 * time.Second,
		Vote:        60 * time.Second,
	}
}

func (t Timeouts) forAction(action Action) time.Duration {
	switch action {
	case ActionBid:
		return t.Bid
	case ActionDebate:
		return t.Debate
	case ActionVote:
		return t.Vote
	default:
		return t.NightAction
	}
}

// PendingRequest describes a decision awaited from an external participant.
type PendingRequest struct {
	ID      string
	Player  string
	Action  Action
	Prompt  string
	Options []string
	Timeout time.Duration
}

// DecisionChannel delivers pending requests to an external participant and
// returns a channel carrying at most one answer. The cancel func releases the
// request; it is safe to call after an answer arrived.
type DecisionChannel interface {
	Request(ctx context.Context, req PendingRequest) (<-chan string, func(), error)
}

// Human is a decision maker backed by an external participant. Every action
// is issued as a correlated request over a DecisionChannel; when the deadline
// passes without an answer, a safe default is chosen so the game never stalls
// on an absent participant.
type Human struct {
	player      *domain.Player
	channel     DecisionChannel
	timeouts    Timeouts
	idGenerator func() (string, error)
}

// NewHuman creates a human-driven decision maker for player.
func NewHuman(player *domain.Player, channel DecisionChannel, timeouts Timeouts) *Human {
	return &Human{
		player:      player,
		channel:     channel,
		timeouts:    timeouts,
		idGenerator: id.NewID,
	}
}

func (h *Human) Player() *domain.Player { return h.player }

func (h *Human) Kind() Kind { return KindExternal }

func (h *Human) Bid(ctx context.Context) (int, *domain.DecisionLog, error) {
	options := make([]string, 0, MaxBid+1)
	for i := 0; i <= MaxBid; i++ {
		options = append(options, fmt.Sprintf("%d", i))
	}
	prompt := fmt.Sprintf("How much do you want to speak next, 0-%d?", MaxBid)
	answer, log, err := h.await(ctx, ActionBid, prompt, options, "0")
	if err != nil {
		return 0, log, err
	}
	bid := 0
	if _, err := fmt.Sscanf(answer, "%d", &bid); err != nil || bid < 0 || bid > MaxBid {
		return 0, log, fmt.Errorf("bid %q from %s: %w", answer, h.player.Name, ErrIllegalBid)
	}
	return bid, log, nil
}

func (h *Human) Debate(ctx context.Context) (string, *domain.DecisionLog, error) {
	answer, log, err := h.await(ctx, ActionDebate, "Say your contribution to the debate.", nil, "")
	return answer, log, err
}

func (h *Human) Vote(ctx context.Context) (string, *domain.DecisionLog, error) {
	options, err := h.player.VoteOptions()
	if err != nil {
		return "", nil, err
	}
	return h.selectTarget(ctx, ActionVote, "Who do you vote to remove from the game?", options)
}

func (h *Human) Eliminate(ctx context.Context) (string, *domain.DecisionLog, error) {
	if h.player.Role != domain.RoleWerewolf {
		return "", nil, fmt.Errorf("%s as %s: %w", ActionEliminate, h.player.Role, ErrUnsupportedAction)
	}
	options, err := h.player.EliminateOptions()
	if err != nil {
		return "", nil, err
	}
	return h.selectTarget(ctx, ActionEliminate, "Who do you want to eliminate tonight?", options)
}

func (h *Human) Investigate(ctx context.Context) (string, *domain.DecisionLog, error) {
	if h.player.Role != domain.RoleSeer {
		return "", nil, fmt.Errorf("%s as %s: %w", ActionInvestigate, h.player.Role, ErrUnsupportedAction)
	}
	options, err := h.player.InvestigateOptions()
	if err != nil {
		return "", nil, err
	}
	return h.selectTarget(ctx, ActionInvestigate, "Whose role do you want to learn tonight?", options)
}

func (h *Human) Protect(ctx context.Context) (string, *domain.DecisionLog, error) {
	if h.player.Role != domain.RoleDoctor {
		return "", nil, fmt.Errorf("%s as %s: %w", ActionProtect, h.player.Role, ErrUnsupportedAction)
	}
	options, err := h.player.ProtectOptions()
	if err != nil {
		return "", nil, err
	}
	target, log, err := h.selectTarget(ctx, ActionProtect, "Who do you want to protect tonight?", options)
	if err != nil {
		return "", log, err
	}
	if err := h.player.AddObservation("During the night, I chose to protect " + target); err != nil {
		return "", log, err
	}
	return target, log, nil
}

// Summarize is a no-op for human players; they keep their own notes.
func (h *Human) Summarize(ctx context.Context) (string, *domain.DecisionLog, error) {
	return "", nil, nil
}

func (h *Human) selectTarget(ctx context.Context, action Action, prompt string, options []string) (string, *domain.DecisionLog, error) {
	if len(options) == 0 {
		return "", nil, fmt.Errorf("%s for %s: %w", action, h.player.Name, ErrNoOptions)
	}
	answer, log, err := h.await(ctx, action, prompt, options, options[0])
	if err != nil {
		return "", log, err
	}
	if !containsOption(options, answer) {
		return "", log, fmt.Errorf("%s target %q for %s: %w", action, answer, h.player.Name, ErrIllegalTarget)
	}
	return answer, log, nil
}

// await issues the request and blocks until an answer, the per-action
// deadline, or ctx cancellation. A deadline yields fallback; cancellation is
// an error.
func (h *Human) await(ctx context.Context, action Action, prompt string, options []string, fallback string) (string, *domain.DecisionLog, error) {
	requestID, err := h.idGenerator()
	if err != nil {
		return "", nil, fmt.Errorf("generate request id: %w", err)
	}
	timeout := h.timeouts.forAction(action)
	req := PendingRequest{
		ID:      requestID,
		Player:  h.player.Name,
		Action:  action,
		Prompt:  prompt,
		Options: options,
		Timeout: timeout,
	}

	answers, cancel, err := h.channel.Request(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("request %s from %s: %w", action, h.player.Name, err)
	}
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	log := &domain.DecisionLog{Prompt: prompt}
	select {
	case answer, ok := <-answers:
		if !ok {
			return "", log, fmt.Errorf("%s from %s: %w", action, h.player.Name, ErrNoDecision)
		}
		log.RawResponse = answer
		log.Result = map[string]any{action.ResultKey(): answer}
		return answer, log, nil
	case <-timer.C:
		log.Result = map[string]any{
			action.ResultKey(): fallback,
			"reasoning":        fmt.Sprintf("no answer within %s, default applied", timeout),
		}
		return fallback, log, nil
	case <-ctx.Done():
		return "", log, ctx.Err()
	}
}
