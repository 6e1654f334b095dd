// internal/autofix/analyzer.go
package autofix

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sentry-fix-agent/api/schemas"
	"github.com/xkilldash9x/sentry-fix-agent/internal/llmutil"
)

// Section markers the model must answer with.
const (
	MarkerExplanation = "EXPLANATION:"
	MarkerFixedCode   = "FIXED_CODE:"
)

// ErrNoFix means the model produced nothing that can be committed.
var ErrNoFix = errors.New("no fix produced")

// AnalyzerOptions tune the generation request.
type AnalyzerOptions struct {
	Temperature     float32
	MaxOutputTokens int32
}

// Analyzer uses an LLM to produce a corrected version of a source file.
type Analyzer struct {
	logger    *zap.Logger
	llmClient schemas.LLMClient
	opts      AnalyzerOptions
}

// NewAnalyzer initializes a new fix generation service.
func NewAnalyzer(logger *zap.Logger, llmClient schemas.LLMClient, opts AnalyzerOptions) *Analyzer {
	return &Analyzer{
		logger:    logger.Named("autofix-analyzer"),
		llmClient: llmClient,
		opts:      opts,
	}
}

// GenerateFix asks the model once for a fix of the error at sc. Any failure,
// including an unparsable answer, is reported as ErrNoFix.
func (a *Analyzer) GenerateFix(ctx context.Context, errorMessage, fileContent string, sc StackContext) (*FixResult, error) {
	if fileContent == "" {
		return nil, fmt.Errorf("%w: empty file content", ErrNoFix)
	}

	a.logger.Info("Generating fix with Gemini", zap.String("file", sc.FilePath), zap.Int("line", sc.LineNumber))

	req := schemas.GenerationRequest{
		SystemPrompt: a.getSystemPrompt(),
		UserPrompt:   a.constructPrompt(errorMessage, fileContent, sc),
		Options: schemas.GenerationOptions{
			Temperature:     a.opts.Temperature,
			MaxOutputTokens: a.opts.MaxOutputTokens,
		},
	}

	response, err := a.llmClient.Generate(ctx, req)
	if err != nil {
		a.logger.Error("Error generating AI fix", zap.Error(err))
		return nil, fmt.Errorf("%w: LLM generation failed: %w", ErrNoFix, err)
	}

	result, err := parseFixResponse(response)
	if err != nil {
		a.logger.Error("Error parsing AI response", zap.Error(err))
		a.logger.Debug("Raw AI response", zap.String("raw_response", llmutil.Truncate(response, 4000)))
		return nil, err
	}

	// Keep the file's trailing newline convention so the diff stays minimal.
	if strings.HasSuffix(fileContent, "\n") && !strings.HasSuffix(result.FixedCode, "\n") {
		result.FixedCode += "\n"
	}

	a.logger.Info("Successfully generated fix", zap.Int("fixed_code_bytes", len(result.FixedCode)))
	return result, nil
}

func (a *Analyzer) getSystemPrompt() string {
	return `You are an expert software engineer fixing production errors reported by an error tracker. You produce minimal, focused fixes that address the specific error and leave unrelated code untouched. Always answer in the exact two-section format requested.`
}

// constructPrompt builds the prompt: the error, its location and surrounding
// lines, the full file and the required answer format.
func (a *Analyzer) constructPrompt(errorMessage, fileContent string, sc StackContext) string {
	lang, name := languageOf(sc.FilePath)
	fence := "```" + lang

	function := sc.Function
	if function == "" {
		function = "unknown"
	}
	line := "unknown"
	if sc.LineNumber > 0 {
		line = strconv.Itoa(sc.LineNumber)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s developer tasked with fixing a bug in this codebase.\n\n", name)
	fmt.Fprintf(&b, "ERROR MESSAGE:\n%s\n\n", errorMessage)
	fmt.Fprintf(&b, "FILE: %s\nFUNCTION: %s\nLINE NUMBER: %s\n\n", sc.FilePath, function, line)
	b.WriteString("Here's the context of the error:\n\n")
	fmt.Fprintf(&b, "Pre-context lines:\n%s\n%s\n```\n\n", fence, strings.Join(sc.PreContext, "\n"))
	fmt.Fprintf(&b, "Line with error:\n%s\n%s\n```\n\n", fence, sc.ContextLine)
	fmt.Fprintf(&b, "Post-context lines:\n%s\n%s\n```\n\n", fence, strings.Join(sc.PostContext, "\n"))
	fmt.Fprintf(&b, "Here's the full file content:\n%s\n%s\n```\n\n", fence, fileContent)
	b.WriteString("Please provide a fix for this issue that is minimal and focused on the specific error.\n")
	b.WriteString("Explain what's causing the error and provide the corrected code.\n\n")
	b.WriteString("Return your response in the following format:\n\n")
	fmt.Fprintf(&b, "%s\n[Explanation of the issue and your fix]\n\n", MarkerExplanation)
	fmt.Fprintf(&b, "%s\n[The entire fixed file with your changes]\n", MarkerFixedCode)
	return b.String()
}

// parseFixResponse extracts the two sections of the model's answer.
func parseFixResponse(response string) (*FixResult, error) {
	sections, err := llmutil.ExtractSections(response, MarkerExplanation, MarkerFixedCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFix, err)
	}

	fixed := llmutil.CleanCodeOutput(sections[MarkerFixedCode])
	if fixed == "" {
		return nil, fmt.Errorf("%w: fixed code section is empty", ErrNoFix)
	}
	return &FixResult{
		Explanation: sections[MarkerExplanation],
		FixedCode:   fixed,
	}, nil
}

// languages maps file extensions to a code fence tag and a display name.
var languages = map[string][2]string{
	".py":    {"python", "Python"},
	".go":    {"go", "Go"},
	".js":    {"javascript", "JavaScript"},
	".jsx":   {"jsx", "JavaScript"},
	".ts":    {"typescript", "TypeScript"},
	".tsx":   {"tsx", "TypeScript"},
	".rb":    {"ruby", "Ruby"},
	".java":  {"java", "Java"},
	".kt":    {"kotlin", "Kotlin"},
	".php":   {"php", "PHP"},
	".cs":    {"csharp", "C#"},
	".rs":    {"rust", "Rust"},
	".swift": {"swift", "Swift"},
	".c":     {"c", "C"},
	".h":     {"c", "C"},
	".cpp":   {"cpp", "C++"},
	".ex":    {"elixir", "Elixir"},
	".exs":   {"elixir", "Elixir"},
}

// languageOf returns the fence tag (possibly empty) and the display name for path.
func languageOf(path string) (tag, name string) {
	if lang, ok := languages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang[0], lang[1]
	}
	return "", "software"
}
