// Command fincollect runs and administers the exchange financials collector.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fincollect/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
