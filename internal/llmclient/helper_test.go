package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/sentry-fix-agent/api/schemas"
	"github.com/xkilldash9x/sentry-fix-agent/internal/config"
)

const testAPIKey = "test-api-key"

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	core, _ := observer.New(zap.DebugLevel)
	return zap.New(core)
}

// getValidGeminiConfig returns a valid GeminiConfig for testing purposes.
func getValidGeminiConfig() config.GeminiConfig {
	return config.GeminiConfig{
		Provider:    config.ProviderGemini,
		Model:       "test-model",
		Temperature: 0.1,
		Timeout:     5 * time.Second,
	}
}

// setupGeminiClient rigs up a GoogleClient pointed at a mock HTTP server.
// It returns the client, the mock server and a log observer.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) (*GoogleClient, *httptest.Server, *observer.ObservedLogs) {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			t.Log("Warning: Unexpected HTTP request in test.")
			w.WriteHeader(http.StatusNotFound)
		}
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	loggerCore, observedLogs := observer.New(zap.InfoLevel)

	cfg := getValidGeminiConfig()
	cfg.Endpoint = server.URL + "/"

	client, err := NewGoogleClient(context.Background(), cfg, testAPIKey, server.Client(), zap.New(loggerCore))
	require.NoError(t, err, "NewGoogleClient initialization failed")
	return client, server, observedLogs
}

// createTestRequest provides a standard generation request structure.
func createTestRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "System prompt instructions.",
		UserPrompt:   "User query.",
		Options: schemas.GenerationOptions{
			Temperature: 0.7,
		},
	}
}

// writeCandidate answers a generateContent call with a single text candidate.
func writeCandidate(w http.ResponseWriter, text string) {
	payload := map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"parts": []any{map[string]any{"text": text}}, "role": "model"},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]any{"promptTokenCount": 100, "candidatesTokenCount": 50, "totalTokenCount": 150},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
