// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sentry-fix-agent/api/schemas"
	"github.com/xkilldash9x/sentry-fix-agent/internal/config"
)

// NewClient is a factory function that creates an LLMClient based on the configuration.
// httpClient may be nil to use the SDK default.
func NewClient(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *zap.Logger) (schemas.LLMClient, error) {
	provider := cfg.Gemini.Provider

	switch provider {
	case config.ProviderGemini, "":
		client, err := NewGoogleClient(ctx, cfg.Gemini, cfg.Credentials.GeminiAPIKey, httpClient, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", provider, config.ProviderGemini)
	}
}
