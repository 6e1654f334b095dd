// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/sentry-fix-agent/api/schemas"
	"github.com/xkilldash9x/sentry-fix-agent/internal/config"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("gemini API returned no text")

// GoogleClient implements schemas.LLMClient on top of the Google GenAI SDK,
// talking to the Gemini API backend.
type GoogleClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	config  config.GeminiConfig
	logger  *zap.Logger
}

// NewGoogleClient initializes the SDK client. httpClient may be nil, in which
// case the SDK default is used.
func NewGoogleClient(ctx context.Context, cfg config.GeminiConfig, apiKey string, httpClient *http.Client, logger *zap.Logger) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Google/Gemini API Key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model name is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.Endpoint != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GoogleClient{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		config:  cfg,
		logger:  logger.Named("llm_client.gemini"),
	}, nil
}

// Generate sends a single request to the model. There is no retry; a failed
// call is reported to the caller as-is.
func (c *GoogleClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), c.buildGenerateConfig(req))
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Error("Gemini API request failed", zap.String("model", c.model), zap.Duration("duration", duration), zap.Error(err))
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini API blocked the request (Reason: %s)", resp.PromptFeedback.BlockReason)
	}

	text := resp.Text()
	if text == "" {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			return "", fmt.Errorf("%w (Reason: %s)", ErrEmptyResponse, resp.Candidates[0].FinishReason)
		}
		return "", ErrEmptyResponse
	}

	fields := []zap.Field{zap.String("model", c.model), zap.Duration("duration", duration)}
	if usage := resp.UsageMetadata; usage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", int(usage.PromptTokenCount)),
			zap.Int("completion_tokens", int(usage.CandidatesTokenCount)),
			zap.Int("total_tokens", int(usage.TotalTokenCount)),
		)
	}
	c.logger.Info("LLM generation complete (Gemini)", fields...)

	return text, nil
}

func (c *GoogleClient) buildGenerateConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Options.Temperature),
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	maxTokens := req.Options.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	genConfig.MaxOutputTokens = maxTokens

	if req.Options.TopP > 0 {
		genConfig.TopP = genai.Ptr(req.Options.TopP)
	}
	if req.Options.TopK > 0 {
		genConfig.TopK = genai.Ptr(req.Options.TopK)
	}
	return genConfig
}

// Close releases client resources. The SDK client holds no connections of its
// own, so this only exists to satisfy schemas.LLMClient.
func (c *GoogleClient) Close() error {
	return nil
}
