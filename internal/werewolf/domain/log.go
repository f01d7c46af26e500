package domain

// DecisionLog is the raw trace of a single agent decision: the prompt that
// was issued, the raw response, and the structured result. Game logic never
// reads these; they exist for post-hoc analysis.
type DecisionLog struct {
	Prompt      string         `json:"prompt"`
	RawResponse string         `json:"raw_response,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
}

// PlayerDecision pairs a player name with the trace of one decision.
type PlayerDecision struct {
	Player string       `json:"player"`
	Log    *DecisionLog `json:"log,omitempty"`
}

// VoteRecord traces one cast (or forfeited) vote. VotedFor is empty when the
// vote was not received.
type VoteRecord struct {
	Player   string       `json:"player"`
	VotedFor string       `json:"voted_for,omitempty"`
	Log      *DecisionLog `json:"log,omitempty"`
}

// RoundLog is the audit trail parallel to a Round. The master only writes to
// it; external log consumers only read.
type RoundLog struct {
	// Eliminate, Investigate and Protect trace the single-actor night
	// actions.
	Eliminate   *DecisionLog `json:"eliminate,omitempty"`
	Investigate *DecisionLog `json:"investigate,omitempty"`
	Protect     *DecisionLog `json:"protect,omitempty"`

	// Bids holds one trace set per debate turn, one entry per bidder.
	Bids [][]PlayerDecision `json:"bids,omitempty"`

	// Debate holds one trace per spoken turn.
	Debate []PlayerDecision `json:"debate,omitempty"`

	// Votes holds one trace set per voting round.
	Votes [][]VoteRecord `json:"votes,omitempty"`

	// Summaries holds one trace per player end-of-round summary.
	Summaries []PlayerDecision `json:"summaries,omitempty"`
}
