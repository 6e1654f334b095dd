// internal/autofix/pipeline.go
package autofix

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sentry-fix-agent/internal/github"
	"github.com/xkilldash9x/sentry-fix-agent/internal/sentry"
)

// IssueError reports the stage at which processing of one issue stopped.
type IssueError struct {
	IssueID string
	Stage   Stage
	Err     error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("issue %s failed at %s: %v", e.IssueID, e.Stage, e.Err)
}

func (e *IssueError) Unwrap() error { return e.Err }

// Pipeline turns tracker issues into fix pull requests, one issue at a time.
type Pipeline struct {
	tracker IssueTracker
	host    SourceHost
	fixer   FixGenerator
	store   TimestampStore
	logger  *zap.Logger

	newRunID func() string
}

// NewPipeline wires the pipeline to its collaborators.
func NewPipeline(tracker IssueTracker, host SourceHost, fixer FixGenerator, store TimestampStore, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		tracker:  tracker,
		host:     host,
		fixer:    fixer,
		store:    store,
		logger:   logger.Named("autofix-pipeline"),
		newRunID: uuid.NewString,
	}
}

// Run performs one pass over the tracker. An error is returned only when the
// issue list cannot be fetched or ctx is canceled; per-issue failures are
// logged and counted. Once the list was fetched the last run time is saved,
// even if no issue succeeded.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:        p.newRunID(),
		Stage:        StageConfigLoaded,
		PullRequests: []string{},
	}
	log := p.logger.With(zap.String("run_id", summary.RunID))

	if !opts.All {
		if since, ok := p.store.LastRun(); ok {
			summary.Since = since
		}
	}
	if summary.Since.IsZero() {
		log.Info("Processing all unresolved issues")
	} else {
		log.Info("Processing issues since last run", zap.Time("since", summary.Since))
	}
	summary.Stage = StageWindowComputed

	issues, err := p.tracker.ListUnresolved(ctx, opts.Limit, summary.Since)
	if err != nil {
		log.Error("Failed to fetch issues", zap.Error(err))
		return summary, fmt.Errorf("failed to fetch issues: %w", err)
	}
	summary.Stage = StageIssuesFetched
	summary.Fetched = len(issues)

	if len(issues) == 0 {
		log.Info("No new issues to process")
	}

	for _, issue := range issues {
		// The timestamp is not saved on cancellation so the issues not yet
		// attempted stay inside the next run's window.
		if err := ctx.Err(); err != nil {
			log.Warn("Run canceled, remaining issues left for the next run", zap.Error(err))
			return summary, err
		}
		if p.tracker.HasMarker(issue) {
			log.Info("Issue already has a fix PR, skipping", zap.String("issue_id", issue.ID))
			summary.Skipped++
			continue
		}

		summary.Processed++
		result, err := p.processIssue(ctx, log.With(zap.String("issue_id", issue.ID)), issue)
		if err != nil {
			var issueErr *IssueError
			stage := Stage("")
			if errors.As(err, &issueErr) {
				stage = issueErr.Stage
			}
			log.Warn("Issue processing failed", zap.String("issue_id", issue.ID), zap.String("stage", string(stage)), zap.Error(err))
			continue
		}
		summary.Succeeded++
		if result.Stage == StageIssueAnnotated {
			summary.Annotated++
		}
		summary.PullRequests = append(summary.PullRequests, result.PR.URL)
		log.Info("Issue processed", zap.String("issue_id", issue.ID), zap.String("stage", string(result.Stage)))
	}

	saved := p.store.Save()
	summary.Stage = StageTimestampSaved

	log.Info(fmt.Sprintf("Processed %d issues, %d successful", summary.Processed, summary.Succeeded),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("annotated", summary.Annotated),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("timestamp_saved", saved),
	)
	summary.Stage = StageDone
	return summary, nil
}

// issueResult is the outcome of an issue whose pull request was opened. Stage
// is StageIssueAnnotated when the comment and the marker were both posted,
// StagePRCreated otherwise.
type issueResult struct {
	PR    *github.PullRequest
	Stage Stage
}

// processIssue runs the per-issue stages. A returned error is an *IssueError.
// Once the pull request exists the issue counts as fixed; annotating the
// tracker is best effort.
func (p *Pipeline) processIssue(ctx context.Context, log *zap.Logger, issue sentry.Issue) (*issueResult, error) {
	fail := func(stage Stage, err error) (*issueResult, error) {
		return nil, &IssueError{IssueID: issue.ID, Stage: stage, Err: err}
	}

	log.Info("Processing issue", zap.String("title", issue.Title))

	event, err := p.tracker.LatestEvent(ctx, issue.ID)
	if err != nil {
		return fail(StageContextExtracted, err)
	}
	sc, err := ExtractStackContext(event)
	if err != nil {
		log.Warn("Could not extract context for issue", zap.Error(err))
		return fail(StageContextExtracted, err)
	}

	content, sha, err := p.host.GetFile(ctx, sc.FilePath)
	if err != nil {
		return fail(StageFileFetched, err)
	}
	if content == "" {
		log.Warn("Could not get file content", zap.String("path", sc.FilePath))
		return fail(StageFileFetched, fmt.Errorf("file %s is empty", sc.FilePath))
	}

	fix, err := p.fixer.GenerateFix(ctx, issue.Title, content, *sc)
	if err != nil {
		return fail(StageFixGenerated, err)
	}

	pr, err := p.host.OpenFixPullRequest(ctx, github.FixRequest{
		Path:        sc.FilePath,
		SHA:         sha,
		Content:     fix.FixedCode,
		IssueID:     issue.ID,
		IssueTitle:  issue.Title,
		Permalink:   issue.Permalink,
		Explanation: fix.Explanation,
	})
	if err != nil {
		log.Error("Error creating PR for issue", zap.Error(err))
		return fail(StagePRCreated, err)
	}
	log.Info("Created PR for issue", zap.String("url", pr.URL))

	result := &issueResult{PR: pr, Stage: StageIssueAnnotated}
	if err := p.tracker.AddComment(ctx, issue.ID, CommentText(pr.URL)); err != nil {
		log.Warn("Could not comment on issue", zap.Error(err))
		result.Stage = StagePRCreated
	}
	if !p.tracker.AddMarker(ctx, issue.ID) {
		log.Warn("Could not tag issue, it may be processed again")
		result.Stage = StagePRCreated
	}
	return result, nil
}

// CommentText is the note left on an issue once its fix PR is open.
func CommentText(prURL string) string {
	return "I've created a PR with a potential fix: " + prURL
}
