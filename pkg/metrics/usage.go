package metrics

import "time"

// TokenUsage captures LLM token counts used to satisfy a request.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens"`
}

// IsZero reports whether usage data is absent.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// RoutingSample records how a single routing decision was made.
type RoutingSample struct {
	Source     string        `json:"source"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency"`
	Accepted   bool          `json:"accepted"`
	Usage      TokenUsage    `json:"usage,omitzero"`
}
