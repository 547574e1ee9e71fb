package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quickcourt/quickcourt/internal/guard"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(load EnvLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				return runWhoami(cmd, env)
			})
		},
	}
}

func runWhoami(cmd *cobra.Command, env *Env) error {
	st, err := env.requireSession(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if u := st.User; u != nil {
		fmt.Fprintf(out, "User:    %s\n", u.DisplayName())
		fmt.Fprintf(out, "Email:   %s\n", u.Email)
		fmt.Fprintf(out, "ID:      %s\n", u.ID)
	} else {
		fmt.Fprintln(out, "User:    (profile unavailable)")
	}

	role := st.Role()
	if role == "" {
		role = "(none, run 'quickcourt select-role')"
	}
	fmt.Fprintf(out, "Role:    %s\n", role)
	fmt.Fprintf(out, "Home:    %s\n", guard.HomeFor(st.Role()))
	fmt.Fprintf(out, "Token:   %s\n", st.TokenKind)

	if st.TokenExpiresAt != nil {
		fmt.Fprintf(out, "Expires: %s (in %s)\n",
			st.TokenExpiresAt.Local().Format(time.RFC1123),
			time.Until(*st.TokenExpiresAt).Round(time.Second))
	}

	if st.Degraded {
		fmt.Fprintf(out, "Warning: using cached profile (%s)\n", st.DegradedReason)
	}

	return nil
}
