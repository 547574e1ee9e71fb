package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewRefreshCmd creates the refresh command
func NewRefreshCmd(load EnvLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the session token for a fresh one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				return runRefresh(cmd, env)
			})
		},
	}
}

func runRefresh(cmd *cobra.Command, env *Env) error {
	ctx := cmd.Context()

	if _, err := env.requireSession(ctx); err != nil {
		return err
	}

	if err := env.Sessions.Refresh(ctx); err != nil {
		return fmt.Errorf("%w. Please run 'quickcourt login' again", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Token refreshed")
	if exp := env.Sessions.State().TokenExpiresAt; exp != nil {
		fmt.Fprintf(out, "  Expires: %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}
