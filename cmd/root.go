// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/sentry-fix-agent/internal/autofix"
	"github.com/xkilldash9x/sentry-fix-agent/internal/config"
	"github.com/xkilldash9x/sentry-fix-agent/internal/github"
	"github.com/xkilldash9x/sentry-fix-agent/internal/llmclient"
	"github.com/xkilldash9x/sentry-fix-agent/internal/network"
	"github.com/xkilldash9x/sentry-fix-agent/internal/observability"
	"github.com/xkilldash9x/sentry-fix-agent/internal/sentry"
	"github.com/xkilldash9x/sentry-fix-agent/internal/store"
)

// rootOptions holds the flags shared by the root command and its subcommands.
type rootOptions struct {
	configFile string
	limit      int
	all        bool
}

// newRootCmd builds the command tree. Each call returns a fresh tree so
// tests never share flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "sentry-fix-agent",
		Short: "Opens pull requests that fix unresolved Sentry issues.",
		Long: `sentry-fix-agent fetches unresolved Sentry issues, locates the failing file
on GitHub, asks Gemini for a corrected version and opens a pull request with it.
Handled issues are commented on and tagged so later runs skip them.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to a JSON configuration file")
	rootCmd.Flags().IntVar(&opts.limit, "limit", 10, "maximum number of issues to process")
	rootCmd.Flags().BoolVar(&opts.all, "all", false, "process all unresolved issues, ignoring the last run time")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(opts))
	return rootCmd
}

// Execute runs the command line against ctx. Errors have already been logged
// when they are returned; the caller only picks the exit code.
func Execute(ctx context.Context) error {
	return execute(ctx, newRootCmd())
}

func execute(ctx context.Context, rootCmd *cobra.Command) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// errReported marks errors that were logged where they happened.
var errReported = errors.New("run failed")

// bootstrapLogger is used until the configuration has been read.
func bootstrapLogger(w io.Writer) *zap.Logger {
	return observability.NewConsoleLogger("info", zapcore.AddSync(w))
}

// loadConfig reads and validates the configuration. Validation failures are
// logged on the bootstrap logger.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	bootstrap := bootstrapLogger(cmd.ErrOrStderr())
	defer observability.Sync(bootstrap)

	cfg, err := config.Load(path, bootstrap)
	if err != nil {
		bootstrap.Error("Failed to load configuration", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", errReported, err)
	}
	if err := cfg.Validate(); err != nil {
		bootstrap.Error("Invalid configuration", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", errReported, err)
	}
	return cfg, nil
}

func runAgent(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts.configFile)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logger, zapcore.AddSync(cmd.ErrOrStderr()))
	defer observability.Sync(logger)
	logger.Info("Starting sentry-fix-agent", zap.String("version", Version))

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize components", zap.Error(err))
		return fmt.Errorf("%w: %w", errReported, err)
	}
	defer components.Shutdown()

	summary, err := components.Pipeline.Run(ctx, autofix.RunOptions{Limit: opts.limit, All: opts.all})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Run aborted by signal")
			return err
		}
		return fmt.Errorf("%w: %w", errReported, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d issues, %d successful (run %s)\n", summary.Processed, summary.Succeeded, summary.RunID)
	for _, url := range summary.PullRequests {
		fmt.Fprintln(out, url)
	}
	return nil
}

// agentComponents holds the initialized services of one run.
type agentComponents struct {
	Pipeline *autofix.Pipeline
	closers  []func() error
	logger   *zap.Logger
}

// Shutdown releases the clients that hold resources.
func (c *agentComponents) Shutdown() {
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			c.logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
}

// initializeComponents handles dependency injection. It is only called with
// a validated configuration.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*agentComponents, error) {
	components := &agentComponents{logger: logger}

	// 1. One pooled transport for the three API hosts.
	netCfg, err := network.NewClientConfig(cfg.Network, logger)
	if err != nil {
		return nil, err
	}
	transport := network.NewHTTPTransport(netCfg)
	components.closers = append(components.closers, func() error {
		transport.CloseIdleConnections()
		return nil
	})

	// 2. Service clients
	tracker := sentry.NewClient(cfg.Sentry, cfg.Credentials, network.NewClient(transport, cfg.Sentry.Timeout), logger)

	host, err := github.NewClient(cfg.GitHub, cfg.Credentials, network.NewClient(transport, cfg.GitHub.Timeout), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	// The Gemini client bounds each call with gemini.timeout itself.
	llm, err := llmclient.NewClient(ctx, cfg, network.NewClient(transport, 0), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	components.closers = append(components.closers, llm.Close)

	// 3. Pipeline
	analyzer := autofix.NewAnalyzer(logger, llm, autofix.AnalyzerOptions{
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxTokens,
	})
	lastRun := store.NewLastRunStore(cfg.State.LastRunFile, logger)

	components.Pipeline = autofix.NewPipeline(tracker, host, analyzer, lastRun, logger)
	return components, nil
}
