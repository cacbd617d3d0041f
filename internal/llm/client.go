// Package llm wraps the chat-completion providers used for structuring.
package llm

import (
	"context"
	"strings"
)

// Provider names a backend family.
type Provider string

const (
	ProviderGroq   Provider = "groq"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// DefaultGroqBaseURL is the OpenAI-compatible Groq endpoint.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

// DefaultTemperature keeps extraction close to deterministic.
const DefaultTemperature float32 = 0.1

// Request is a single system+user completion.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
	// JSONMode asks the provider to constrain output to a JSON object.
	JSONMode bool
}

// Response is the text a model returned.
type Response struct {
	Model            string
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// ChatClient issues completions.
type ChatClient interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ModelSpec is one candidate in the structuring fallback order.
type ModelSpec struct {
	Name      string   `mapstructure:"name" json:"name"`
	Provider  Provider `mapstructure:"provider" json:"provider"`
	MaxTokens int      `mapstructure:"max_tokens" json:"max_tokens"`
}

// ResolvedProvider returns the configured provider or infers one from the
// model name.
func (m ModelSpec) ResolvedProvider() Provider {
	if m.Provider != "" {
		return m.Provider
	}
	if strings.HasPrefix(strings.ToLower(m.Name), "gemini") {
		return ProviderGemini
	}
	return ProviderGroq
}

// DefaultModels is the priority-ordered candidate list.
func DefaultModels() []ModelSpec {
	return []ModelSpec{
		{Name: "llama-3.3-70b-versatile", Provider: ProviderGroq, MaxTokens: 4000},
		{Name: "llama-3.1-8b-instant", Provider: ProviderGroq, MaxTokens: 3000},
		{Name: "mixtral-8x7b-32768", Provider: ProviderGroq, MaxTokens: 4000},
	}
}
