package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fincollect/internal/collector"
)

// StatusResult is the collector's durable status.
type StatusResult struct {
	Database                  string     `json:"database"`
	Paused                    bool       `json:"paused"`
	SnapshotFound             bool       `json:"snapshot_found"`
	NextFetchDirectoryAt      *time.Time `json:"next_fetch_directory_at,omitempty"`
	NextFetchInstrumentDataAt *time.Time `json:"next_fetch_instrument_data_at,omitempty"`
	PrevInstrument            string     `json:"prev_instrument,omitempty"`
	Instruments               int        `json:"instruments"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the collector's stored state",
		Long: `Show the scheduler snapshot, pause flag and active instrument count
stored in the database.

Example:
  fincollect status --db ./fincollect.db
  fincollect status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	cfg, st, err := openStore(opts, formatter)
	if err != nil {
		return err
	}
	defer closeStore(st)
	ctx := cmd.Context()

	state, found, err := st.LoadSchedulerState(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to load scheduler state", err)
	}
	paused, err := st.GetServicePaused(ctx, collector.ServiceName)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to load pause flag", err)
	}
	instruments, err := st.LoadActiveInstruments(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to load instruments", err)
	}

	result := StatusResult{
		Database:                  cfg.Database,
		Paused:                    paused,
		SnapshotFound:             found,
		NextFetchDirectoryAt:      state.NextFetchDirectoryAt,
		NextFetchInstrumentDataAt: state.NextFetchInstrumentDataAt,
		Instruments:               len(instruments),
	}
	if !state.PrevInstrumentKey.IsZero() {
		result.PrevInstrument = state.PrevInstrumentKey.String()
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Database:         %s\n", result.Database)
	fmt.Fprintf(w, "Paused:           %t\n", result.Paused)
	fmt.Fprintf(w, "Instruments:      %d\n", result.Instruments)
	if !found {
		fmt.Fprintln(w, "Scheduler:        never run")
		return nil
	}
	fmt.Fprintf(w, "Next directory:   %s\n", formatOptionalTime(result.NextFetchDirectoryAt))
	fmt.Fprintf(w, "Next instrument:  %s\n", formatOptionalTime(result.NextFetchInstrumentDataAt))
	if result.PrevInstrument != "" {
		fmt.Fprintf(w, "Last instrument:  %s\n", result.PrevInstrument)
	}
	return nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "due"
	}
	return t.UTC().Format(time.RFC3339)
}
