package commands

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/spf13/cobra"

	"github.com/quickcourt/quickcourt/internal/dash"
	"github.com/quickcourt/quickcourt/internal/guard"
	"github.com/quickcourt/quickcourt/internal/workers"
)

// NewDashCmd creates the dash command
func NewDashCmd(load EnvLoader) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Serve the local dashboard and keep the session fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				return runDash(cmd, env, open)
			})
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "Open the dashboard in the default browser")

	return cmd
}

func runDash(cmd *cobra.Command, env *Env, open bool) error {
	ctx := cmd.Context()
	cfg := env.Config

	routes, err := guard.LoadRoutes(cfg.Dash.RoutesFile)
	if err != nil {
		return err
	}

	schedule, err := workers.ParseSchedule(cfg.Session.RefreshSchedule)
	if err != nil {
		return err
	}

	server, err := dash.New(env.Sessions, env.API, routes, dash.Options{
		Addr:           cfg.Dash.Addr,
		AllowedOrigins: cfg.Dash.AllowedOrigins,
	}, env.Logger)
	if err != nil {
		return err
	}

	scheduler := workers.NewRefreshScheduler(env.Sessions, schedule, env.Logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(runCtx)
	}()

	dashboardURL := fmt.Sprintf("http://%s", cfg.Dash.Addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Dashboard: %s (Ctrl+C to stop)\n", dashboardURL)

	if open {
		if err := openBrowser(dashboardURL); err != nil {
			env.Logger.Warn().Err(err).Msg("Failed to open browser")
		}
	}

	err = server.Run(runCtx)
	cancel()
	wg.Wait()
	return err
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
