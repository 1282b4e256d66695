package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the shelterstats command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shelterstats",
		Short:         "shelterstats counts shelter visits across hiker trail journals.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")
	pf.String("log-format", "", "log format: json or text (overrides LOG_FORMAT)")
	pf.String("reference", "", "shelter reference CSV (overrides SHELTER_REFERENCE_PATH)")
	pf.String("hikers", "", "hiker id list (overrides HIKER_LIST_PATH)")
	pf.String("journal-dir", "", "directory of hiker documents (overrides JOURNAL_DIR)")
	pf.String("report", "", "CSV report path (overrides REPORT_PATH)")

	rootCmd.AddCommand(
		newAggregateCmd(),
		newPrintCmd(),
		newSuggestCmd(),
		newServeCmd(),
		newValidateCmd(),
		newGenmockCmd(),
	)
	return rootCmd
}

// ExecuteContext runs the command tree and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		return 1
	}
	return 0
}

func describeError(err error) string {
	var fatal *domain.FatalConfigError
	var ioErr *domain.IOWriteError
	switch {
	case errors.As(err, &fatal):
		return "fatal: " + err.Error()
	case errors.As(err, &ioErr):
		return "report not written: " + err.Error()
	default:
		return "error: " + err.Error()
	}
}
