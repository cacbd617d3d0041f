package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini is a fallback provider backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	logger *zap.Logger
}

// NewGemini creates a Gemini client for the given API key.
func NewGemini(ctx context.Context, apiKey string, logger *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", ErrNotConfigured)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, logger: logger}, nil
}

// Complete sends one generateContent request.
func (g *Gemini) Complete(ctx context.Context, req Request) (Response, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), config)
	if err != nil {
		g.logger.Warn("Gemini generation failed",
			zap.String("model", req.Model),
			zap.Error(err))
		return Response{}, fmt.Errorf("gemini generation with %s failed: %w", req.Model, err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return Response{}, fmt.Errorf("%w: model %s", ErrEmptyResponse, req.Model)
	}

	out := Response{Model: req.Model, Content: text}
	if u := result.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
	}
	return out, nil
}
