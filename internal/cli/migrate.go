package cli

import (
	"fmt"

	"github.com/JonMunkholm/fuelledger/internal/application"
	"github.com/JonMunkholm/fuelledger/internal/config"
	"github.com/JonMunkholm/fuelledger/internal/store/postgres"
	"github.com/spf13/cobra"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Status bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  "Apply pending Postgres schema migrations, or report the current version with --status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Status, "status", false, "only print the current schema version")
	return cmd
}

type migrateResult struct {
	Version int64 `json:"version"`
	Applied bool  `json:"applied"`
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	cfg, err := opts.config(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("migrate needs the %s store driver, configured driver is %q", config.DriverPostgres, cfg.Store.Driver))
	}

	ctx := cmd.Context()
	pool, err := application.OpenPool(ctx, cfg.Store)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer pool.Close()

	if !opts.Status {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return WrapExitError(ExitFailure, "migrate", err)
		}
	}

	version, err := postgres.SchemaVersion(ctx, pool)
	if err != nil {
		return WrapExitError(ExitFailure, "read schema version", err)
	}

	return opts.output(cmd).Success(
		migrateResult{Version: version, Applied: !opts.Status},
		fmt.Sprintf("schema version %d", version),
	)
}
