// internal/autofix/models.go
package autofix

import "time"

// StackContext is the code location an issue points at, taken from the most
// relevant frame of its latest event.
type StackContext struct {
	FilePath    string   `json:"file_path"` // As reported by the SDK, usually relative to the project root.
	Function    string   `json:"function"`
	LineNumber  int      `json:"line_number"` // Zero when the frame does not report one.
	ContextLine string   `json:"context_line"`
	PreContext  []string `json:"pre_context"`
	PostContext []string `json:"post_context"`
}

// FixResult is the parsed answer of the model: why the error happens and the
// complete replacement body of the file.
type FixResult struct {
	Explanation string `json:"explanation"`
	FixedCode   string `json:"fixed_code"`
}

// RunOptions controls a single pipeline run.
type RunOptions struct {
	// Limit caps the number of issues requested from the tracker.
	Limit int
	// All ignores the stored last run time and considers every unresolved issue.
	All bool
}

// Stage names a state of the pipeline. Run stages and per-issue stages share
// the type so failures can report where they happened. A run starts at
// StageConfigLoaded; the command line owns everything before that.
type Stage string

const (
	StageConfigLoaded   Stage = "config_loaded"
	StageWindowComputed Stage = "window_computed"
	StageIssuesFetched  Stage = "issues_fetched"
	StageTimestampSaved Stage = "timestamp_saved"
	StageDone           Stage = "done"

	StageContextExtracted Stage = "context_extracted"
	StageFileFetched      Stage = "file_fetched"
	StageFixGenerated     Stage = "fix_generated"
	StagePRCreated        Stage = "pr_created"
	StageIssueAnnotated   Stage = "issue_annotated"
)

// RunSummary reports the outcome of a run.
type RunSummary struct {
	RunID string `json:"run_id"`
	// Since is the start of the issue window; zero means all issues.
	Since time.Time `json:"since"`
	// Stage is the last run stage reached.
	Stage        Stage    `json:"stage"`
	Fetched      int      `json:"fetched"`
	Processed    int      `json:"processed"`
	Succeeded    int      `json:"succeeded"`
	// Annotated counts the succeeded issues that were also commented on and tagged.
	Annotated    int      `json:"annotated"`
	Skipped      int      `json:"skipped"`
	PullRequests []string `json:"pull_requests"`
}
