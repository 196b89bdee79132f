package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"ForumWatcher/internal/app"
	"ForumWatcher/internal/usecase"
)

// NewRunCommand starts the long-running monitor.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll sources on the configured interval until interrupted",
		Long: `Poll every enabled source, then sleep for monitor.frequencySeconds and repeat.

SIGHUP or POST /reload re-reads the config file. SIGINT and SIGTERM stop the
monitor after the running cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}

			application, err := app.New(ctx, cfg, app.Options{ConfigPath: rootOpts.ConfigPath, Logger: logger})
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
}

// NewOnceCommand polls every source a single time and prints the outcome counts.
func NewOnceCommand(rootOpts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single polling cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			cfg.Admin.Enabled = new(bool)

			application, err := app.New(ctx, cfg, app.Options{ConfigPath: rootOpts.ConfigPath, Logger: logger})
			if err != nil {
				return err
			}
			defer application.Close(context.WithoutCancel(ctx))

			report, runErr := application.RunOnce(ctx)
			if err := printReport(cmd.OutOrStdout(), report, asJSON); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cycle report as JSON")
	return cmd
}

type cycleSummary struct {
	ID       string                  `json:"id"`
	Duration string                  `json:"duration"`
	Sources  int                     `json:"sources"`
	Failures map[string]string       `json:"failures,omitempty"`
	Outcomes map[usecase.Outcome]int `json:"outcomes"`
}

func printReport(w io.Writer, report usecase.CycleReport, asJSON bool) error {
	summary := cycleSummary{
		ID:       report.ID,
		Duration: report.Duration.String(),
		Sources:  report.Sources,
		Outcomes: report.Outcomes,
	}
	if len(report.Failures) > 0 {
		summary.Failures = make(map[string]string, len(report.Failures))
		for name, err := range report.Failures {
			summary.Failures[name] = err.Error()
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(w, "cycle %s: %d sources in %s\n", summary.ID, summary.Sources, summary.Duration)
	outcomes := make([]string, 0, len(summary.Outcomes))
	for o := range summary.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-16s %d\n", o, summary.Outcomes[usecase.Outcome(o)])
	}
	names := make([]string, 0, len(summary.Failures))
	for name := range summary.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  failed %s: %s\n", name, summary.Failures[name])
	}
	return nil
}
