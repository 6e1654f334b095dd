// internal/autofix/interfaces.go
package autofix

import (
	"context"
	"time"

	"github.com/xkilldash9x/sentry-fix-agent/internal/github"
	"github.com/xkilldash9x/sentry-fix-agent/internal/sentry"
)

// IssueTracker is the error tracking service the pipeline reads issues from
// and reports back to.
type IssueTracker interface {
	// ListUnresolved returns unresolved, unmarked issues, optionally only those
	// active since the given instant (zero means no lower bound).
	ListUnresolved(ctx context.Context, limit int, since time.Time) ([]sentry.Issue, error)
	// LatestEvent returns the most recent event of an issue.
	LatestEvent(ctx context.Context, issueID string) (*sentry.Event, error)
	AddComment(ctx context.Context, issueID, text string) error
	// HasMarker reports whether an issue was already handled by an earlier run.
	HasMarker(issue sentry.Issue) bool
	// AddMarker flags an issue as handled. Failures are reported, not returned.
	AddMarker(ctx context.Context, issueID string) bool
}

// SourceHost is the code host holding the repository the issues come from.
type SourceHost interface {
	// GetFile returns the content of a file and its revision marker.
	GetFile(ctx context.Context, path string) (content, sha string, err error)
	OpenFixPullRequest(ctx context.Context, fix github.FixRequest) (*github.PullRequest, error)
}

// FixGenerator proposes a replacement for a file given the error it raised.
type FixGenerator interface {
	// GenerateFix returns ErrNoFix (possibly wrapped) when no usable fix was produced.
	GenerateFix(ctx context.Context, errorMessage, fileContent string, sc StackContext) (*FixResult, error)
}

// TimestampStore persists the time of the last run.
type TimestampStore interface {
	LastRun() (time.Time, bool)
	Save() bool
}
