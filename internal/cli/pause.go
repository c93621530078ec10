package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fincollect/internal/collector"
)

// NewPauseCommand creates the pause command.
func NewPauseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause fetching",
		Long: `Record the collector as paused. A collector started afterwards restores
its state but fetches nothing until resumed.

The flag is written to the database only. A collector that is already
running keeps fetching until it is restarted.

Example:
  fincollect pause --db ./fincollect.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setPaused(rootOpts, cmd, true)
		},
	}
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume fetching",
		Long: `Clear the collector's pause flag. Takes effect the next time the
collector starts; a running collector is not notified.

Example:
  fincollect resume --db ./fincollect.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setPaused(rootOpts, cmd, false)
		},
	}
}

func setPaused(opts *RootOptions, cmd *cobra.Command, paused bool) error {
	formatter := newFormatter(opts, cmd)
	_, st, err := openStore(opts, formatter)
	if err != nil {
		return err
	}
	defer closeStore(st)

	if err := st.SetServicePaused(cmd.Context(), collector.ServiceName, paused); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to store pause flag", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]bool{"paused": paused})
	}
	if paused {
		fmt.Fprintln(formatter.Writer, "✓ Collector paused (takes effect at next start)")
	} else {
		fmt.Fprintln(formatter.Writer, "✓ Collector resumed (takes effect at next start)")
	}
	return nil
}
