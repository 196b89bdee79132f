package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// NewRootCommand creates the forumwatcher command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "forumwatcher",
		Short:         "Poll forum feeds and alert on new offers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.PathFromEnv(), "path to YAML config (env FORUMWATCHER_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging.level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override logging.format (text|json)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewOnceCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// load reads the config and builds the logger it asks for.
func (o *RootOptions) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = o.LogFormat
	}
	return cfg, logging.NewWithFormat(os.Stdout, cfg.Logging.Level, cfg.Logging.Format), nil
}

// NewVersionCommand prints the build version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
