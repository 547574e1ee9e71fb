package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(load EnvLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				return runLogout(cmd, env)
			})
		},
	}
}

func runLogout(cmd *cobra.Command, env *Env) error {
	ctx := cmd.Context()

	// Logout is unconditional; a failed restore still ends in a cleared store
	if err := env.restore(ctx); err != nil {
		env.Logger.Debug().Err(err).Msg("Failed to restore session before logout")
	}

	if err := env.Sessions.Logout(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
	return nil
}
