package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCounterCommand creates the counter command group.
func NewCounterCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Inspect or repair the wallet invoice counter",
	}
	cmd.AddCommand(newCounterGetCommand(opts))
	cmd.AddCommand(newCounterSetCommand(opts))
	return cmd
}

type counterResult struct {
	Counter int    `json:"counter"`
	Next    string `json:"next"`
}

func newCounterGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the last issued invoice number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return printCounter(cmd, opts, app.Service)
		},
	}
}

func newCounterSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <value>",
		Short: "Overwrite the invoice counter",
		Long: "Overwrite the invoice counter with the last issued number. The next " +
			"invoice receives value+1. Use this to seed a new ledger or repair one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("counter value must be a whole number, got %q", args[0]))
			}

			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Service.SetInvoiceCounter(cmd.Context(), n); err != nil {
				return opts.output(cmd).Fail("set counter", err)
			}
			return printCounter(cmd, opts, app.Service)
		},
	}
}

type counterReader interface {
	InvoiceCounter(ctx context.Context) (int, error)
	NextInvoiceNumber(ctx context.Context) (string, error)
}

func printCounter(cmd *cobra.Command, opts *RootOptions, svc counterReader) error {
	ctx := cmd.Context()
	out := opts.output(cmd)

	n, err := svc.InvoiceCounter(ctx)
	if err != nil {
		return out.Fail("read counter", err)
	}
	next, err := svc.NextInvoiceNumber(ctx)
	if err != nil {
		return out.Fail("read counter", err)
	}
	return out.Success(counterResult{Counter: n, Next: next},
		fmt.Sprintf("counter %d, next invoice %s", n, next))
}
