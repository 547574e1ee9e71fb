package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quickcourt/quickcourt/internal/cli/commands"
	"github.com/quickcourt/quickcourt/internal/config"
	"github.com/quickcourt/quickcourt/internal/logger"
)

var version = "dev" // Will be set during build

var profile string

var rootCmd = &cobra.Command{
	Use:   "quickcourt",
	Short: "QuickCourt - book sports venues from your terminal",
	Long: `QuickCourt CLI - Sign in to QuickCourt and manage your session.

The session is kept in the OS keyring (or a file or SQLite database, see
QUICKCOURT_SESSION_STORE) and refreshed automatically while 'quickcourt dash'
is running.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadEnv reads configuration and opens the session for the selected profile
func loadEnv(cmd *cobra.Command) (*commands.Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format).With().
		Str("profile", profile).
		Logger()

	return commands.NewEnv(cfg, log, profile)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "default", "Session profile, to keep several accounts signed in")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quickcourt version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(loadEnv))
	rootCmd.AddCommand(commands.NewLogoutCmd(loadEnv))
	rootCmd.AddCommand(commands.NewWhoamiCmd(loadEnv))
	rootCmd.AddCommand(commands.NewSelectRoleCmd(loadEnv))
	rootCmd.AddCommand(commands.NewRefreshCmd(loadEnv))
	rootCmd.AddCommand(commands.NewDashCmd(loadEnv))
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
