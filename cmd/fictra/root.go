package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oukeidos/fictra/internal/cleanup"
	"github.com/oukeidos/fictra/internal/version"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	logLevel   string
	logFile    string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fictra",
		Short: "Fiction translation sidecar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				_ = cmd.Usage()
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return cmd.Help()
		},
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
	}

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(usageTemplate)

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to a config file (yaml, toml or json)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides FT_LOG_LEVEL)")
	pf.StringVar(&opts.logFile, "log-file", "", "Append JSONL logs to this file (overrides FT_LOG_FILE)")
	pf.BoolVar(&opts.logJSON, "log-json", false, "Write stderr logs as JSON")

	cmd.AddCommand(
		newServeCmd(opts),
		newTranslateCmd(opts),
		newEnvCmd(),
		newVersionCmd(),
	)

	cmd.InitDefaultCompletionCmd()
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)
	return cmd
}

// normalizeFlagName accepts snake_case spellings, matching the config keys
// (--project_db, --log_level).
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
