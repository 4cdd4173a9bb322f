package llm

// EstimateCost returns the estimated cost in USD for a model and token
// counts, based on the descriptor's per-1M pricing. Models without
// pricing cost 0.
func EstimateCost(model ModelDescriptor, usage *Usage) float64 {
	if usage == nil || model.Pricing == nil {
		return 0
	}
	inputCost := float64(usage.PromptTokens) / 1_000_000.0 * model.Pricing.InputPerMillion
	outputCost := float64(usage.CompletionTokens) / 1_000_000.0 * model.Pricing.OutputPerMillion
	return inputCost + outputCost
}

// EstimateTokens provides a rough token count estimation for the given
// text, approximating 1 token per 4 characters.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}

// EstimateUsage fills in a usage estimate for providers that do not
// report token counts.
func EstimateUsage(prompt, completion string) *Usage {
	in := EstimateTokens(prompt)
	out := EstimateTokens(completion)
	return &Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}
