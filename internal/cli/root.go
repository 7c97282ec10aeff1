// Package cli implements ledgerctl, the operator command line for the ledger.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/JonMunkholm/fuelledger/internal/application"
	"github.com/JonMunkholm/fuelledger/internal/config"
	"github.com/JonMunkholm/fuelledger/internal/logging"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the hooks commands use to reach the ledger.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// LoadConfig reads process configuration. Defaults to config.Load.
	LoadConfig func() (*config.Config, error)

	// AppOptions is passed to application.Open for every command.
	AppOptions application.Options
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the ledgerctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the fuel ledger",
		Long:  "Operator tasks for the fuel ledger: schema migrations, the invoice counter, accounts and resets.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCounterCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// config loads configuration and sends logs to the command's stderr so
// they never mix with its output.
func (o *RootOptions) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	level := cfg.Logging.Level
	if o.Verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), level, cfg.Logging.Format))
	return cfg, nil
}

// openApp opens the ledger. The caller must Close it.
func (o *RootOptions) openApp(cmd *cobra.Command) (*application.App, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	app, err := application.Open(cmd.Context(), cfg, o.AppOptions)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open ledger", err)
	}
	return app, nil
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return NewOutputFormatter(o.Format, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
