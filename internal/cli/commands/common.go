package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quickcourt/quickcourt/internal/api"
	"github.com/quickcourt/quickcourt/internal/config"
	"github.com/quickcourt/quickcourt/internal/session"
	"github.com/quickcourt/quickcourt/internal/storage"
)

// Env holds what every command needs. It is built once per invocation.
type Env struct {
	Config   *config.Config
	Logger   zerolog.Logger
	API      *api.Client
	Sessions *session.Manager

	// PromptPassword reads a password when none was supplied
	PromptPassword func() (string, error)
	// PickRole asks the user to choose one of roles
	PickRole func(roles []string) (string, error)

	closers []io.Closer
}

// EnvLoader builds the Env for a command
type EnvLoader func(cmd *cobra.Command) (*Env, error)

// NewEnv wires the session store, API client and session manager for profile
func NewEnv(cfg *config.Config, logger zerolog.Logger, profile string) (*Env, error) {
	store, err := storage.New(cfg.Session.Store, profile, cfg.Session.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	client := api.New(cfg.API.URL)

	env := &Env{
		Config:         cfg,
		Logger:         logger,
		API:            client,
		Sessions:       session.NewManager(store, client, logger, session.WithLegacyTokens(cfg.Session.AllowLegacyTokens)),
		PromptPassword: promptPassword,
		PickRole:       pickRole,
	}
	if c, ok := store.(io.Closer); ok {
		env.closers = append(env.closers, c)
	}

	return env, nil
}

// Close cancels in-flight requests and releases the session store
func (e *Env) Close() error {
	e.Sessions.Close()

	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// restore hydrates the session from the persisted record. A corrupt record
// has already been wiped, so the command carries on signed out.
func (e *Env) restore(ctx context.Context) error {
	err := e.Sessions.Initialize(ctx)
	if errors.Is(err, session.ErrStorageCorrupt) {
		e.Logger.Warn().Err(err).Msg("Discarded corrupt session")
		return nil
	}
	return err
}

// requireSession restores the session and fails when nobody is signed in
func (e *Env) requireSession(ctx context.Context) (session.State, error) {
	if err := e.restore(ctx); err != nil {
		return session.State{}, err
	}

	st := e.Sessions.State()
	if !st.IsAuthenticated {
		return st, fmt.Errorf("not signed in. Please run 'quickcourt login' first")
	}
	return st, nil
}

// withEnv runs fn with a freshly loaded Env and closes it afterwards
func withEnv(cmd *cobra.Command, load EnvLoader, fn func(env *Env) error) error {
	env, err := load(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := env.Close(); err != nil {
			env.Logger.Warn().Err(err).Msg("Failed to close session store")
		}
	}()

	return fn(env)
}

func promptPassword() (string, error) {
	// Check if stdin is a terminal (not piped)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or QUICKCOURT_PASSWORD env var)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func pickRole(roles []string) (string, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ . | cyan }}",
		Inactive: "  {{ . }}",
		Selected: "{{ . | green }}",
	}

	prompt := promptui.Select{
		Label:     "How will you use QuickCourt?",
		Items:     roles,
		Templates: templates,
		Size:      len(roles),
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("role selection cancelled: %w", err)
	}

	return roles[index], nil
}
