package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fincollect/internal/registry"
)

// PriorityEntry reports whether one priority symbol is listed.
type PriorityEntry struct {
	Symbol string `json:"symbol"`
	Known  bool   `json:"known"`
}

// PriorityResult is the priority list checked against the stored directory.
type PriorityResult struct {
	Valid     int             `json:"valid"`
	Companies []PriorityEntry `json:"companies"`
}

// NewPriorityCommand creates the priority command.
func NewPriorityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "priority [company-symbol...]",
		Short: "Check priority companies against the directory",
		Long: `Check a priority company list against the instruments stored in the
database. Without arguments the list from the config file is checked.

Unknown symbols are still accepted by the collector; they are skipped when
their turn comes.

Example:
  fincollect priority --config ./fincollect.yaml
  fincollect priority TLV SNP --db ./fincollect.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPriority(rootOpts, args, cmd)
		},
	}
}

func runPriority(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	cfg, st, err := openStore(opts, formatter)
	if err != nil {
		return err
	}
	defer closeStore(st)

	symbols := args
	if len(symbols) == 0 {
		symbols = cfg.PriorityCompanies
	}

	instruments, err := st.LoadActiveInstruments(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to load instruments", err)
	}
	reg := registry.New(nil)
	reg.InitializeDirectory(instruments)

	companies := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		companies[inst.CompanySymbol] = true
	}

	result := PriorityResult{Valid: reg.SetPriorityCompanies(symbols)}
	for _, s := range reg.GetPriorityCompanySymbols() {
		result.Companies = append(result.Companies, PriorityEntry{Symbol: s, Known: companies[s]})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(result.Companies) == 0 {
		fmt.Fprintln(w, "No priority companies configured.")
		return nil
	}
	fmt.Fprintf(w, "%d of %d priority companies known:\n", result.Valid, len(result.Companies))
	for _, c := range result.Companies {
		mark := "✓"
		if !c.Known {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, c.Symbol)
	}
	return nil
}
