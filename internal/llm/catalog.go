package llm

// Built-in model catalog. Pricing is USD per 1M tokens; descriptors
// carry the parameter surface each provider actually accepts so
// validation can warn about ignored parameters before a call is made.

func openAIModels() []ModelDescriptor {
	accepted := []string{"temperature", "top_p", "max_tokens", "stop", "presence_penalty", "frequency_penalty"}
	return []ModelDescriptor{
		{
			ID:       "gpt-4o",
			Name:     "GPT-4o",
			Provider: "openai",
			Capabilities: Capabilities{
				Streaming:       true,
				FunctionCalling: true,
				Vision:          true,
				JSONMode:        true,
				ContextTokens:   128_000,
			},
			DefaultParams: GenerationParams{Temperature: Float64(0.7), MaxTokens: Int(4096)},
			AcceptedParams: accepted,
			Pricing:        &Pricing{InputPerMillion: 2.50, OutputPerMillion: 10.00},
		},
		{
			ID:       "gpt-4o-mini",
			Name:     "GPT-4o mini",
			Provider: "openai",
			Capabilities: Capabilities{
				Streaming:       true,
				FunctionCalling: true,
				Vision:          true,
				JSONMode:        true,
				ContextTokens:   128_000,
			},
			DefaultParams: GenerationParams{Temperature: Float64(0.7), MaxTokens: Int(4096)},
			AcceptedParams: accepted,
			Pricing:        &Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.60},
		},
		{
			ID:       "gpt-3.5-turbo",
			Name:     "GPT-3.5 Turbo",
			Provider: "openai",
			Capabilities: Capabilities{
				Streaming:     true,
				JSONMode:      true,
				ContextTokens: 16_385,
			},
			DefaultParams: GenerationParams{Temperature: Float64(0.7), MaxTokens: Int(4096)},
			AcceptedParams: accepted,
			Pricing:        &Pricing{InputPerMillion: 0.50, OutputPerMillion: 1.50},
		},
	}
}

func googleModels() []ModelDescriptor {
	accepted := []string{"temperature", "top_p", "top_k", "max_tokens", "stop"}
	return []ModelDescriptor{
		{
			ID:       "gemini-2.0-flash",
			Name:     "Gemini 2.0 Flash",
			Provider: "google",
			Capabilities: Capabilities{
				Streaming:     true,
				Vision:        true,
				JSONMode:      true,
				ContextTokens: 1_048_576,
			},
			DefaultParams: GenerationParams{Temperature: Float64(0.7), TopK: Int(40), MaxTokens: Int(8192)},
			AcceptedParams: accepted,
			Pricing:        &Pricing{InputPerMillion: 0.10, OutputPerMillion: 0.40},
		},
		{
			ID:       "gemini-1.5-pro",
			Name:     "Gemini 1.5 Pro",
			Provider: "google",
			Capabilities: Capabilities{
				Streaming:     true,
				Vision:        true,
				JSONMode:      true,
				ContextTokens: 2_097_152,
			},
			DefaultParams: GenerationParams{Temperature: Float64(0.7), TopK: Int(40), MaxTokens: Int(8192)},
			AcceptedParams: accepted,
			Pricing:        &Pricing{InputPerMillion: 1.25, OutputPerMillion: 5.00},
		},
	}
}

func anthropicModels() []ModelDescriptor {
	accepted := []string{"temperature", "top_p", "top_k", "max_tokens", "stop"}
	return []ModelDescriptor{
		{
			ID:       "claude-sonnet-4-5-20250929",
			Name:     "Claude Sonnet 4.5",
			Provider: "anthropic",
			Capabilities: Capabilities{
				Streaming:       true,
				FunctionCalling: true,
				Vision:          true,
				ContextTokens:   200_000,
			},
			DefaultParams: GenerationParams{Temperature: Float64(0.7), MaxTokens: Int(4096)},
			AcceptedParams: accepted,
			Pricing:        &Pricing{InputPerMillion: 3.00, OutputPerMillion: 15.00},
		},
		{
			ID:       "claude-haiku-4-5-20251001",
			Name:     "Claude Haiku 4.5",
			Provider: "anthropic",
			Capabilities: Capabilities{
				Streaming:       true,
				FunctionCalling: true,
				Vision:          true,
				ContextTokens:   200_000,
			},
			DefaultParams: GenerationParams{Temperature: Float64(0.7), MaxTokens: Int(4096)},
			AcceptedParams: accepted,
			Pricing:        &Pricing{InputPerMillion: 0.80, OutputPerMillion: 4.00},
		},
	}
}

// DefaultRegistry builds a registry with the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterProvider(Provider{
		ID:      "openai",
		Name:    "OpenAI",
		Models:  openAIModels(),
		Factory: NewOpenAIAdapter,
	})
	r.RegisterProvider(Provider{
		ID:      "google",
		Name:    "Google",
		Models:  googleModels(),
		Factory: NewGeminiAdapter,
	})
	r.RegisterProvider(Provider{
		ID:      "anthropic",
		Name:    "Anthropic",
		Models:  anthropicModels(),
		Factory: NewAnthropicAdapter,
	})
	return r
}
