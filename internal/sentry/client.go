package sentry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/sentry-fix-agent/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxErrorBody caps how much of an error response is kept in APIError and the logs.
const maxErrorBody = 2048

// Client talks to the Sentry web API for a single organization and project.
type Client struct {
	baseURL     string
	token       string
	org         string
	project     string
	markerTag   string
	markerValue string

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient builds a client from the sentry section and the credentials.
// A zero requests_per_second disables pacing. httpClient may be nil, in which
// case a plain client with cfg.Timeout is used.
func NewClient(cfg config.SentryConfig, creds config.Credentials, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       creds.SentryToken,
		org:         creds.SentryOrg,
		project:     creds.SentryProject,
		markerTag:   cfg.MarkerTag,
		markerValue: cfg.MarkerValue,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger.Named("sentry"),
	}
}

// ListUnresolved returns up to limit unresolved issues that do not carry the
// marker tag. A non-zero since restricts the listing to issues active at or
// after that instant.
func (c *Client) ListUnresolved(ctx context.Context, limit int, since time.Time) ([]Issue, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("is:unresolved !tags:%s", c.markerTag))
	params.Set("limit", strconv.Itoa(limit))
	if !since.IsZero() {
		params.Set("start", since.UTC().Format(time.RFC3339))
	}

	c.logger.Info("Fetching issues from Sentry", zap.String("query", params.Get("query")), zap.Int("limit", limit), zap.String("start", params.Get("start")))

	var issues []Issue
	path := fmt.Sprintf("/projects/%s/%s/issues/", url.PathEscape(c.org), url.PathEscape(c.project))
	if err := c.do(ctx, http.MethodGet, path, params, nil, &issues); err != nil {
		return nil, fmt.Errorf("fetching issues from Sentry: %w", err)
	}

	// The tracker is asked to exclude marked issues; drop any it still returns.
	kept := issues[:0]
	for _, issue := range issues {
		if c.HasMarker(issue) {
			c.logger.Debug("Dropping already marked issue", zap.String("issue_id", issue.ID))
			continue
		}
		kept = append(kept, issue)
	}
	if len(kept) > limit && limit > 0 {
		kept = kept[:limit]
	}

	c.logger.Info("Fetched issues from Sentry", zap.Int("count", len(kept)))
	return kept, nil
}

// LatestEvent fetches the most recent event of an issue.
func (c *Client) LatestEvent(ctx context.Context, issueID string) (*Event, error) {
	c.logger.Info("Fetching details for issue", zap.String("issue_id", issueID))

	var event Event
	path := fmt.Sprintf("/issues/%s/events/latest/", url.PathEscape(issueID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &event); err != nil {
		return nil, fmt.Errorf("fetching latest event of issue %s: %w", issueID, err)
	}
	return &event, nil
}

// AddComment posts a note on the issue.
func (c *Client) AddComment(ctx context.Context, issueID, text string) error {
	c.logger.Info("Adding comment to issue", zap.String("issue_id", issueID))

	path := fmt.Sprintf("/issues/%s/comments/", url.PathEscape(issueID))
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"text": text}, nil); err != nil {
		c.logger.Error("Error adding comment", zap.String("issue_id", issueID), zap.Error(err))
		return fmt.Errorf("adding comment to issue %s: %w", issueID, err)
	}
	return nil
}

// AddTag attaches key=value to the issue. It reports success; failures are
// logged and never returned.
func (c *Client) AddTag(ctx context.Context, issueID, key, value string) bool {
	c.logger.Info("Adding tag to issue", zap.String("issue_id", issueID), zap.String("key", key), zap.String("value", value))

	path := fmt.Sprintf("/issues/%s/tags/", url.PathEscape(issueID))
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"key": key, "value": value}, nil); err != nil {
		c.logger.Error("Error adding tag to issue", zap.String("issue_id", issueID), zap.Error(err))
		return false
	}
	c.logger.Info("Successfully added tag to issue", zap.String("issue_id", issueID))
	return true
}

// HasMarker reports whether the issue already carries the configured marker tag.
func (c *Client) HasMarker(issue Issue) bool {
	for _, tag := range issue.Tags {
		if tag.Key == c.markerTag && (tag.Value == "" || tag.Value == c.markerValue) {
			return true
		}
	}
	return false
}

// AddMarker tags the issue so later listings exclude it.
func (c *Client) AddMarker(ctx context.Context, issueID string) bool {
	return c.AddTag(ctx, issueID, c.markerTag, c.markerValue)
}

// do performs one API call. body, if non-nil, is sent as JSON; out, if
// non-nil, receives the decoded response. Empty bodies (204) leave out untouched.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(respBody, maxErrorBody),
		}
		c.logger.Error("Sentry API returned error status", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("response", apiErr.Body))
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response payload: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
