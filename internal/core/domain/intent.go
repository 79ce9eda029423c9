package domain

// IntentClarity is the result of analyzing one user message for ambiguity.
// It is ephemeral: consumed by the turn orchestrator and discarded, never
// persisted on its own.
type IntentClarity struct {
	Message                 string   `json:"message"`
	ClarityScore            float64  `json:"clarity_score"`
	AmbiguousElements       []string `json:"ambiguous_elements"`
	SuggestedClarifications []string `json:"suggested_clarifications"`
	Confidence              float64  `json:"confidence"`
}
