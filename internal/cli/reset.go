package cli

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/admin"
	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset [collection...]",
		Short: "Delete ledger records",
		Long: "Delete every record of the named collections, or of all ledger " +
			"collections when none are named. Accounts and the audit log are kept. " +
			"Requires --yes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the reset")
	return cmd
}

type resetResult struct {
	Collections []string `json:"collections"`
}

func runReset(cmd *cobra.Command, opts *ResetOptions, collections []string) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "reset deletes records; rerun with --yes")
	}
	if len(collections) == 0 {
		collections = admin.LedgerCollections
	}

	app, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := admin.Reset(cmd.Context(), app.Store, collections...); err != nil {
		return opts.output(cmd).Fail("reset", err)
	}
	return opts.output(cmd).Success(resetResult{Collections: collections},
		fmt.Sprintf("cleared %s", strings.Join(collections, ", ")))
}
