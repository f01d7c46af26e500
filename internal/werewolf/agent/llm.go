package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
)

const (
	defaultResponsesURL = "https://api.openai.com/v1/responses"
	defaultRetries      = 3

	// Constrained target selection runs cooler than free-form dialogue.
	constrainedTemperature = 0.5
	freeFormTemperature    = 1.0
	temperatureStep        = 0.2
)

// LLMConfig configures the language-model responder.
type LLMConfig struct {
	// ResponsesURL is the OpenAI-responses-style endpoint.
	ResponsesURL string
	// APIKey is sent as a bearer token. It is never echoed in errors or
	// decision logs.
	APIKey string
	// Model names the model to invoke.
	Model string
	// Retries bounds how often a malformed or out-of-set answer is retried.
	Retries    int
	HTTPClient *http.Client
}

// LLMResponder produces decisions by prompting a language model. Answers for
// target-selection actions are validated against the legal option set and
// retried with a raised temperature until they conform or the retry budget
// runs out.
type LLMResponder struct {
	cfg LLMConfig
}

// NewLLMResponder creates a responder with defaults filled in.
func NewLLMResponder(cfg LLMConfig) *LLMResponder {
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		cfg.ResponsesURL = defaultResponsesURL
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &LLMResponder{cfg: cfg}
}

// Respond implements Responder.
func (l *LLMResponder) Respond(ctx context.Context, req Request) (Response, *domain.DecisionLog, error) {
	prompt := buildPrompt(req)
	temperature := freeFormTemperature
	if len(req.Options) > 0 || req.Action == ActionBid {
		temperature = constrainedTemperature
	}

	var rawResponses []string
	for attempt := 0; attempt < l.cfg.Retries; attempt++ {
		raw, err := l.invoke(ctx, prompt, temperature)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, failedLog(prompt, rawResponses), ctx.Err()
			}
			rawResponses = append(rawResponses, err.Error())
			temperature = bumpTemperature(temperature)
			continue
		}
		rawResponses = append(rawResponses, raw)

		result, ok := parseResult(raw)
		if !ok {
			temperature = bumpTemperature(temperature)
			continue
		}
		log := &domain.DecisionLog{Prompt: prompt, RawResponse: raw, Result: result}
		resp, ok := extractResponse(req, result)
		if !ok {
			temperature = bumpTemperature(temperature)
			continue
		}
		return resp, log, nil
	}

	return Response{}, failedLog(prompt, rawResponses),
		fmt.Errorf("%s for %s: %w", req.Action, req.Player.Name, ErrNoDecision)
}

func (l *LLMResponder) invoke(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       l.cfg.Model,
		"input":       prompt,
		"temperature": temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.ResponsesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if l.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)
	}

	res, err := l.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, readErr := io.ReadAll(io.LimitReader(res.Body, 4096))
		if readErr != nil {
			return "", fmt.Errorf("read error body: %w", readErr)
		}
		return "", fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	outputText := strings.TrimSpace(payload.OutputText)
	if outputText == "" {
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if text := strings.TrimSpace(content.Text); text != "" {
					return text, nil
				}
			}
		}
		return "", fmt.Errorf("response missing output text")
	}
	return outputText, nil
}

// parseResult extracts the first JSON object embedded in the raw model
// output.
func parseResult(raw string) (map[string]any, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return nil, false
	}
	return result, true
}

// extractResponse validates the structured result against the request.
func extractResponse(req Request, result map[string]any) (Response, bool) {
	resp := Response{Reasoning: stringValue(result["reasoning"])}
	switch req.Action {
	case ActionBid:
		bid, ok := intValue(result["bid"])
		if !ok || bid < 0 || bid > MaxBid {
			return Response{}, false
		}
		resp.Bid = bid
	case ActionDebate:
		resp.Text = stringValue(result["say"])
	case ActionSummarize:
		resp.Text = stringValue(result["summary"])
	default:
		target := stringValue(result[req.Action.ResultKey()])
		if !containsOption(req.Options, target) {
			return Response{}, false
		}
		resp.Target = target
	}
	return resp, true
}

func buildPrompt(req Request) string {
	p := req.Player
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the %s, in a game of Werewolf.\n", p.Name, p.Role)
	if p.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", p.Personality)
	}
	if p.Role == domain.RoleWerewolf {
		if wolfContext := p.WerewolfContext(); wolfContext != "" {
			fmt.Fprintf(&b, "%s\n", wolfContext)
		}
	}
	if p.View != nil {
		fmt.Fprintf(&b, "Round %d. Remaining players: %s.\n",
			p.View.RoundNumber, strings.Join(p.View.CurrentPlayers, ", "))
		if len(p.View.Debate) > 0 {
			b.WriteString("Debate so far:\n")
			for _, turn := range p.View.Debate {
				fmt.Fprintf(&b, "%s: %s\n", turn.Speaker, turn.Dialogue)
			}
		}
	}
	if observations := domain.GroupObservations(p.Observations); len(observations) > 0 {
		b.WriteString("Your private observations:\n")
		b.WriteString(strings.Join(observations, "\n"))
		b.WriteString("\n")
	}
	if p.BiddingRationale != "" {
		fmt.Fprintf(&b, "Your last bidding rationale: %s\n", p.BiddingRationale)
	}
	fmt.Fprintf(&b, "Debate turns left: %d.\n", req.DebateTurnsLeft)

	switch req.Action {
	case ActionBid:
		fmt.Fprintf(&b, "How much do you want to speak next, 0-%d? ", MaxBid)
		b.WriteString(`Answer as JSON {"bid": <number>, "reasoning": "..."}.`)
	case ActionDebate:
		b.WriteString(`Say your contribution to the debate. Answer as JSON {"say": "...", "reasoning": "..."}.`)
	case ActionSummarize:
		b.WriteString(`Summarize this round for your private notes. Answer as JSON {"summary": "...", "reasoning": "..."}.`)
	default:
		fmt.Fprintf(&b, "Choose one of: %s. ", strings.Join(req.Options, ", "))
		fmt.Fprintf(&b, `Answer as JSON {"%s": "<name>", "reasoning": "..."}.`, req.Action.ResultKey())
	}
	return b.String()
}

func failedLog(prompt string, rawResponses []string) *domain.DecisionLog {
	return &domain.DecisionLog{
		Prompt:      prompt,
		RawResponse: strings.Join(rawResponses, "-------"),
	}
}

func bumpTemperature(temperature float64) float64 {
	temperature += temperatureStep
	if temperature > 1.0 {
		return 1.0
	}
	return temperature
}

func stringValue(value any) string {
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

func intValue(value any) (int, bool) {
	switch typed := value.(type) {
	case float64:
		return int(typed), true
	case int:
		return typed, true
	case json.Number:
		n, err := typed.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		return n, err == nil
	}
	return 0, false
}
