// File: cmd/config.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/sentry-fix-agent/internal/config"
	"github.com/xkilldash9x/sentry-fix-agent/internal/observability"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML, with secrets masked",
		Long: `Print the configuration a run would use: defaults, the JSON file and the
environment merged. Tokens and API keys are masked. The configuration is not
validated, so show also works while credentials are still missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap := bootstrapLogger(cmd.ErrOrStderr())
			defer observability.Sync(bootstrap)

			cfg, err := config.Load(opts.configFile, bootstrap)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Redacted()); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if missing := cfg.Credentials.Missing(); len(missing) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "missing: %s\n", strings.Join(missing, ", "))
			}
			return nil
		},
	})
	return configCmd
}
