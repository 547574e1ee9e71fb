package commands

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/quickcourt/quickcourt/internal/api"
	"github.com/quickcourt/quickcourt/internal/models"
)

// NewSelectRoleCmd creates the select-role command
func NewSelectRoleCmd(load EnvLoader) *cobra.Command {
	var role string
	var force bool

	cmd := &cobra.Command{
		Use:   "select-role",
		Short: "Choose how you use QuickCourt (player or facility owner)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				return runSelectRole(cmd, env, role, force)
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role to select (player or facility_owner); prompts if omitted")
	cmd.Flags().BoolVar(&force, "force", false, "Change the role even if one is already set")

	return cmd
}

func runSelectRole(cmd *cobra.Command, env *Env, role string, force bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	st, err := env.requireSession(ctx)
	if err != nil {
		return err
	}

	if !st.ShowRoleModal && !force {
		fmt.Fprintf(out, "Role already set to %s (use --force to change it)\n", st.Role())
		return nil
	}

	if role == "" {
		role, err = env.PickRole(models.SelectableRoles)
		if err != nil {
			return err
		}
	}
	if !slices.Contains(models.SelectableRoles, role) {
		return fmt.Errorf("invalid role %q (choose one of %v)", role, models.SelectableRoles)
	}

	bearer, ok := env.Sessions.Token()
	if !ok {
		return fmt.Errorf("not signed in. Please run 'quickcourt login' first")
	}

	user, err := env.API.UpdateRole(ctx, bearer, role)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			if logoutErr := env.Sessions.Logout(ctx); logoutErr != nil {
				env.Logger.Warn().Err(logoutErr).Msg("Failed to clear session")
			}
			return fmt.Errorf("session expired. Please run 'quickcourt login' again")
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	if err := env.Sessions.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Fprintf(out, "✓ Role set to %s\n", user.Role)
	return nil
}
