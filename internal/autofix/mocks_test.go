// internal/autofix/mocks_test.go
package autofix_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/sentry-fix-agent/api/schemas"
	"github.com/xkilldash9x/sentry-fix-agent/internal/autofix"
	"github.com/xkilldash9x/sentry-fix-agent/internal/github"
	"github.com/xkilldash9x/sentry-fix-agent/internal/sentry"
)

// MockTracker is a mock implementation of IssueTracker.
type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) ListUnresolved(ctx context.Context, limit int, since time.Time) ([]sentry.Issue, error) {
	args := m.Called(ctx, limit, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sentry.Issue), args.Error(1)
}

func (m *MockTracker) LatestEvent(ctx context.Context, issueID string) (*sentry.Event, error) {
	args := m.Called(ctx, issueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sentry.Event), args.Error(1)
}

func (m *MockTracker) AddComment(ctx context.Context, issueID, text string) error {
	args := m.Called(ctx, issueID, text)
	return args.Error(0)
}

func (m *MockTracker) HasMarker(issue sentry.Issue) bool {
	args := m.Called(issue)
	return args.Bool(0)
}

func (m *MockTracker) AddMarker(ctx context.Context, issueID string) bool {
	args := m.Called(ctx, issueID)
	return args.Bool(0)
}

// MockHost is a mock implementation of SourceHost.
type MockHost struct {
	mock.Mock
}

func (m *MockHost) GetFile(ctx context.Context, path string) (string, string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockHost) OpenFixPullRequest(ctx context.Context, fix github.FixRequest) (*github.PullRequest, error) {
	args := m.Called(ctx, fix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*github.PullRequest), args.Error(1)
}

// MockFixer is a mock implementation of FixGenerator.
type MockFixer struct {
	mock.Mock
}

func (m *MockFixer) GenerateFix(ctx context.Context, errorMessage, fileContent string, sc autofix.StackContext) (*autofix.FixResult, error) {
	args := m.Called(ctx, errorMessage, fileContent, sc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*autofix.FixResult), args.Error(1)
}

// MockStore is a mock implementation of TimestampStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LastRun() (time.Time, bool) {
	args := m.Called()
	return args.Get(0).(time.Time), args.Bool(1)
}

func (m *MockStore) Save() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockLLMClient is a mock implementation of schemas.LLMClient.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return nil
}
