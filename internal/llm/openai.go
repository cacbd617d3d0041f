package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures an OpenAI-compatible endpoint such as Groq.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAICompatible talks to any chat-completions endpoint speaking the
// OpenAI wire format.
type OpenAICompatible struct {
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAICompatible creates a client. An empty BaseURL targets Groq.
func NewOpenAICompatible(cfg OpenAIConfig, logger *zap.Logger) (*OpenAICompatible, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: api key is empty", ErrNotConfigured)
	}

	c := openai.DefaultConfig(cfg.APIKey)
	c.BaseURL = DefaultGroqBaseURL
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAICompatible{
		client: openai.NewClientWithConfig(c),
		logger: logger,
	}, nil
}

// Complete sends one chat completion.
func (c *OpenAICompatible) Complete(ctx context.Context, req Request) (Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		c.logger.Warn("Chat completion failed",
			zap.String("model", req.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Response{}, fmt.Errorf("chat completion with %s failed: %w", req.Model, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Response{}, fmt.Errorf("%w: model %s", ErrEmptyResponse, req.Model)
	}

	c.logger.Debug("Chat completion succeeded",
		zap.String("model", req.Model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return Response{
		Model:            req.Model,
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
