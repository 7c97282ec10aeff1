package cli

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/spf13/cobra"
)

// PasswordEnv supplies the password for user create when --password is not
// given, keeping it out of shell history.
const PasswordEnv = "LEDGERCTL_PASSWORD"

// UserCreateOptions holds flags for user create.
type UserCreateOptions struct {
	*RootOptions
	WorkID   string
	Email    string
	Password string
}

// NewUserCommand creates the user command group.
func NewUserCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage operator accounts",
	}
	cmd.AddCommand(newUserCreateCommand(opts))
	return cmd
}

func newUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an operator account",
		Long: "Register an operator account with the same checks as self sign-up: " +
			"the work ID must be well formed and appear in the email address.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.WorkID, "work-id", "", "work ID, e.g. IA001 (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "sign-in email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "initial password (default $"+PasswordEnv+")")
	_ = cmd.MarkFlagRequired("work-id")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runUserCreate(cmd *cobra.Command, opts *UserCreateOptions) error {
	password := opts.Password
	if password == "" {
		password = os.Getenv(PasswordEnv)
	}
	if password == "" {
		return NewExitError(ExitCommandError, "a password is required: pass --password or set "+PasswordEnv)
	}

	app, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	user, err := app.Service.Register(cmd.Context(), core.RegisterInput{
		WorkID:          opts.WorkID,
		Email:           opts.Email,
		Password:        password,
		ConfirmPassword: password,
	})
	if err != nil {
		return opts.output(cmd).Fail("create user", err)
	}

	return opts.output(cmd).Success(user,
		fmt.Sprintf("created %s (%s) uid %s", user.Email, user.WorkID, user.UID))
}
