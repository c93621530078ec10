package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fincollect/internal/config"
	"github.com/roach88/fincollect/internal/store"
)

// newFormatter builds the formatter every command reports through.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the configured file and applies the --db override.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// openStore loads the config and opens its database, reporting failures
// through f. Callers must close the store.
func openStore(opts *RootOptions, f *OutputFormatter) (*config.Config, *store.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	f.VerboseLog("Opening database %s", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	return cfg, st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
