package schemas

import (
	"context"
)

// -- LLM Client Schemas & Interface --

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output length.
type GenerationOptions struct {
	Temperature     float32 `json:"temperature"`                 // Controls randomness. Lower is more deterministic.
	MaxOutputTokens int32   `json:"max_output_tokens,omitempty"` // Zero leaves the provider default.
	TopP            float32 `json:"top_p,omitempty"`             // Nucleus sampling parameter.
	TopK            float32 `json:"top_k,omitempty"`             // Top-k sampling parameter.
}

// GenerationRequest encapsulates a complete request to the LLM: the system and
// user prompts plus generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input.
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}
