// -- cmd/history.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-login/internal/observability"
	"github.com/xkilldash9x/scalpel-login/internal/report"
)

// newHistoryCmd creates and configures the `history` command.
func newHistoryCmd() *cobra.Command {
	var runLog string
	var follow bool

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List past login attempts recorded in the run log",
		Long: `Prints one line per attempt recorded in the JSON-lines run log
(artifacts.run_log or --run-log). With --follow, keeps printing attempts
as they are appended until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			path := cfg.Artifacts().RunLog
			if runLog != "" {
				if path, err = homedir.Expand(runLog); err != nil {
					return fmt.Errorf("failed to expand path %q: %w", runLog, err)
				}
			}
			if path == "" {
				return errors.New("no run log configured (artifacts.run_log or --run-log)")
			}
			return runHistory(ctx, cmd.OutOrStdout(), observability.GetLogger(), path, follow, false)
		},
	}

	historyCmd.Flags().StringVar(&runLog, "run-log", "", "Run log to read (overrides artifacts.run_log)")
	historyCmd.Flags().BoolVarP(&follow, "follow", "F", false, "Keep printing attempts as they are appended")

	return historyCmd
}

// runHistory prints every record of the run log at path, then follows it
// when asked to.
func runHistory(ctx context.Context, stdout io.Writer, logger *zap.Logger, path string, follow, poll bool) error {
	show := func(rec report.Record) error {
		_, err := fmt.Fprintln(stdout, report.Summary(rec))
		return err
	}

	if follow {
		return report.Follow(ctx, path, report.FollowConfig{FromStart: true, Poll: poll}, logger, show)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	records, err := report.ReadRunLog(f)
	for _, rec := range records {
		if perr := show(rec); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(stdout, "No attempts recorded yet.")
	}
	return nil
}
