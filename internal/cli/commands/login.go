package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quickcourt/quickcourt/internal/api"
)

// NewLoginCmd creates the login command
func NewLoginCmd(load EnvLoader) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to QuickCourt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				return runLogin(cmd, env, email, password)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set QUICKCOURT_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set QUICKCOURT_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, env *Env, email, password string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Fall back to environment variables (useful for CI/CD)
	if email == "" {
		email = env.Config.Credentials.Email
	}
	if password == "" {
		password = env.Config.Credentials.Password
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or QUICKCOURT_EMAIL env var)")
	}

	if password == "" {
		var err error
		password, err = env.PromptPassword()
		if err != nil {
			return err
		}
	}

	// Hydrate first so a stale session is replaced cleanly
	if err := env.restore(ctx); err != nil {
		env.Logger.Warn().Err(err).Msg("Failed to restore previous session")
	}

	fmt.Fprintf(out, "Signing in to %s...\n", env.API.BaseURL())

	resp, err := env.API.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("login failed: invalid email or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	if err := env.Sessions.Login(ctx, resp.Token, resp.User); err != nil {
		if !env.Sessions.State().IsAuthenticated {
			return fmt.Errorf("login failed: %w", err)
		}
		env.Logger.Warn().Err(err).Msg("Signed in but the session could not be saved")
	}

	st := env.Sessions.State()
	fmt.Fprintln(out, "✓ Login successful!")
	if st.User != nil {
		fmt.Fprintf(out, "  User: %s (%s)\n", st.User.DisplayName(), st.User.Email)
	}
	if st.Degraded {
		fmt.Fprintf(out, "  Profile unavailable: %s\n", st.DegradedReason)
	}
	if st.ShowRoleModal {
		fmt.Fprintln(out, "  No role selected yet. Run 'quickcourt select-role' to choose one.")
	} else if role := st.Role(); role != "" {
		fmt.Fprintf(out, "  Role: %s\n", role)
	}

	return nil
}
