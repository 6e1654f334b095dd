package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v58/github"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sentry-fix-agent/internal/config"
)

// FixRequest carries everything needed to publish one fix.
type FixRequest struct {
	// Path and SHA identify the file version the fix was generated against.
	// The commit is rejected by GitHub if the file has moved on since.
	Path        string
	SHA         string
	Content     string
	IssueID     string
	IssueTitle  string
	Permalink   string
	Explanation string
}

// PullRequest describes an opened pull request.
type PullRequest struct {
	Number int
	URL    string
	Branch string
	Base   string
}

// Client operates on a single repository.
type Client struct {
	client       *gogithub.Client
	owner        string
	repo         string
	branchPrefix string
	logger       *zap.Logger
	now          func() time.Time
}

// NewClient authenticates with the token from creds. A non-empty
// cfg.BaseURL points the client at a GitHub Enterprise server.
func NewClient(cfg config.GitHubConfig, creds config.Credentials, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	owner, repo, err := creds.Repository()
	if err != nil {
		return nil, err
	}

	client := gogithub.NewClient(httpClient).WithAuthToken(creds.GitHubToken)
	if cfg.BaseURL != "" {
		if client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("github.base_url: %w", err)
		}
	}

	prefix := cfg.BranchPrefix
	if prefix == "" {
		prefix = "fix/sentry-"
	}

	return &Client{
		client:       client,
		owner:        owner,
		repo:         repo,
		branchPrefix: prefix,
		logger:       logger.Named("github"),
		now:          time.Now,
	}, nil
}

// GetFile returns the decoded content of path on the default branch together
// with its blob SHA.
func (c *Client) GetFile(ctx context.Context, path string) (content, sha string, err error) {
	c.logger.Info("Fetching content for file", zap.String("path", path))

	fc, _, _, err := c.client.Repositories.GetContents(ctx, c.owner, c.repo, path, nil)
	if err != nil {
		c.logger.Error("Error getting file content", zap.String("path", path), zap.Error(err))
		return "", "", fmt.Errorf("getting %s: %w", path, err)
	}
	if fc == nil {
		return "", "", fmt.Errorf("getting %s: path is a directory", path)
	}

	content, err = fc.GetContent()
	if err != nil {
		return "", "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return content, fc.GetSHA(), nil
}

// OpenFixPullRequest creates a fresh branch off the default branch, commits
// the new file content to it and opens a pull request back into the default
// branch. Nothing is rolled back when a later step fails.
func (c *Client) OpenFixPullRequest(ctx context.Context, fix FixRequest) (*PullRequest, error) {
	repository, _, err := c.client.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", c.owner, c.repo, err)
	}
	base := repository.GetDefaultBranch()

	branch := c.BranchName(fix.IssueID)
	c.logger.Info("Creating new branch", zap.String("branch", branch), zap.String("base", base))

	baseRef, _, err := c.client.Git.GetRef(ctx, c.owner, c.repo, "refs/heads/"+base)
	if err != nil {
		return nil, fmt.Errorf("getting ref of %s: %w", base, err)
	}

	newRef := &gogithub.Reference{
		Ref:    gogithub.String("refs/heads/" + branch),
		Object: &gogithub.GitObject{SHA: baseRef.GetObject().SHA},
	}
	if _, _, err := c.client.Git.CreateRef(ctx, c.owner, c.repo, newRef); err != nil {
		return nil, fmt.Errorf("creating branch %s: %w", branch, err)
	}

	c.logger.Info("Updating file in branch", zap.String("path", fix.Path), zap.String("branch", branch))
	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.String(CommitMessage(fix)),
		Content: []byte(fix.Content),
		SHA:     gogithub.String(fix.SHA),
		Branch:  gogithub.String(branch),
	}
	if _, _, err := c.client.Repositories.UpdateFile(ctx, c.owner, c.repo, fix.Path, opts); err != nil {
		return nil, fmt.Errorf("committing %s to %s: %w", fix.Path, branch, err)
	}

	c.logger.Info("Creating pull request for branch", zap.String("branch", branch))
	pr, _, err := c.client.PullRequests.Create(ctx, c.owner, c.repo, &gogithub.NewPullRequest{
		Title: gogithub.String(PullRequestTitle(fix)),
		Body:  gogithub.String(PullRequestBody(fix)),
		Head:  gogithub.String(branch),
		Base:  gogithub.String(base),
	})
	if err != nil {
		return nil, fmt.Errorf("creating pull request for %s: %w", branch, err)
	}

	c.logger.Info("Created PR", zap.String("url", pr.GetHTMLURL()), zap.Int("number", pr.GetNumber()))
	return &PullRequest{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		Branch: branch,
		Base:   base,
	}, nil
}

// BranchName is <prefix><issue id>-<YYYYMMDDHHMMSS> in local time.
func (c *Client) BranchName(issueID string) string {
	return c.branchPrefix + issueID + "-" + c.now().Format("20060102150405")
}

// CommitMessage is the message of the fix commit.
func CommitMessage(fix FixRequest) string {
	return fmt.Sprintf("Fix: %s (Sentry ID: %s)", fix.IssueTitle, fix.IssueID)
}

// PullRequestTitle is the title of the fix pull request.
func PullRequestTitle(fix FixRequest) string {
	return "🤖 [AI Fix] " + fix.IssueTitle
}

// PullRequestBody renders the markdown description of the fix pull request.
func PullRequestBody(fix FixRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Automated fix for Sentry issue #%s\n\n", fix.IssueID)
	b.WriteString("### Issue Details\n")
	fmt.Fprintf(&b, "- **Error:** %s\n", fix.IssueTitle)
	fmt.Fprintf(&b, "- **Sentry Link:** %s\n", fix.Permalink)
	fmt.Fprintf(&b, "- **File:** `%s`\n\n", fix.Path)
	b.WriteString("### AI Explanation\n")
	b.WriteString(strings.TrimSpace(fix.Explanation))
	b.WriteString("\n\n---\n*This PR was automatically generated by the Sentry AI Fix Agent*\n")
	return b.String()
}
