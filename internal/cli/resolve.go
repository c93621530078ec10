package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/fincollect/internal/collector"
	"github.com/roach88/fincollect/internal/consistency"
	"github.com/roach88/fincollect/internal/idalloc"
	"github.com/roach88/fincollect/internal/model"
	"github.com/roach88/fincollect/internal/registry"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Keep   uint64
	Ignore []uint
}

// ResolveResult describes an applied resolution.
type ResolveResult struct {
	InstrumentID uint64   `json:"instrument_id"`
	KeepID       uint64   `json:"keep_id"`
	IgnoredIDs   []uint64 `json:"ignored_ids"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <instrument-id>",
		Short: "Resolve a duplicate report conflict",
		Long: `Resolve a conflict between current versions of the same report: keep one
version and mark the others ignored.

The request is checked against every stored version of the instrument's
reports first; a rejected request changes nothing and exits with status 1.

Example:
  fincollect resolve 42 --keep 1017 --ignore 1018
  fincollect resolve 42 --keep 1017 --ignore 1018,1019 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Keep, "keep", 0, "id of the report version to keep (required)")
	cmd.Flags().UintSliceVar(&opts.Ignore, "ignore", nil, "ids of the report versions to ignore")
	_ = cmd.MarkFlagRequired("keep")

	return cmd
}

func runResolve(opts *ResolveOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	instrumentID, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || instrumentID == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeArguments,
			fmt.Sprintf("invalid instrument id %q", arg), err)
	}
	req := model.IgnoreRequest{
		InstrumentID: instrumentID,
		KeepID:       opts.Keep,
		IgnoreIDs:    make([]uint64, 0, len(opts.Ignore)),
	}
	for _, id := range opts.Ignore {
		req.IgnoreIDs = append(req.IgnoreIDs, uint64(id))
	}
	req = req.Deduplicated()

	_, st, err := openStore(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer closeStore(st)

	// Resolution touches only stored reports: no registry contents, ids or
	// fetcher are needed.
	col := collector.New(st, registry.New(nil), idalloc.New(st), nil)
	formatter.VerboseLog("Resolving instrument %d: keep %d, ignore %v", req.InstrumentID, req.KeepID, req.IgnoreIDs)

	if err := col.IgnoreRawReport(cmd.Context(), req); err != nil {
		var cerr *consistency.Error
		if errors.As(err, &cerr) {
			_ = formatter.Error(ErrCodeRejected, cerr.Message, map[string]any{
				"code":       cerr.Code,
				"report_ids": cerr.ReportIDs,
			})
			return WrapExitError(ExitFailure, "resolution rejected", err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to resolve conflict", err)
	}

	result := ResolveResult{InstrumentID: req.InstrumentID, KeepID: req.KeepID, IgnoredIDs: req.IgnoreIDs}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Instrument %d: kept report %d, ignored %d report(s)\n",
		result.InstrumentID, result.KeepID, len(result.IgnoredIDs))
	return nil
}
