package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quickcourt/quickcourt/internal/api"
	"github.com/quickcourt/quickcourt/internal/models"
	"github.com/quickcourt/quickcourt/internal/storage"
	"github.com/quickcourt/quickcourt/internal/token"
)

// Remote is the part of the backend API the session depends on
type Remote interface {
	CurrentUser(ctx context.Context, bearer string) (*models.User, error)
	RefreshToken(ctx context.Context, bearer string) (string, error)
}

// State is a read-only snapshot of the session
type State struct {
	User            *models.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsLoading       bool         `json:"isLoading"`
	ShowRoleModal   bool         `json:"showRoleModal"`
	Degraded        bool         `json:"degraded"`
	DegradedReason  string       `json:"degradedReason,omitempty"`
	TokenKind       string       `json:"tokenKind,omitempty"`
	TokenExpiresAt  *time.Time   `json:"tokenExpiresAt,omitempty"`
}

// Role returns the signed-in user's role, or "" when unknown
func (s State) Role() string {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// NeedsRoleSelection reports whether the user must pick a role before continuing
func NeedsRoleSelection(user *models.User) bool {
	return user != nil && user.Role == ""
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source used for token validation
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLegacyTokens controls whether opaque (non-JWT) tokens are accepted
func WithLegacyTokens(allow bool) Option {
	return func(m *Manager) {
		m.allowLegacy = allow
	}
}

// Manager owns the session and its persisted record. Every mutation happens
// under mu; each login opens a new epoch whose lifetime context is cancelled
// when the session ends, and results of remote calls are only applied if the
// epoch they started in is still current.
type Manager struct {
	store       storage.Store
	remote      Remote
	logger      zerolog.Logger
	now         func() time.Time
	allowLegacy bool

	initOnce sync.Once
	initErr  error

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu         sync.Mutex
	tok        *token.Token
	user       *models.User
	loading    bool
	degraded   error
	epoch      uint64
	sessCtx    context.Context
	sessCancel context.CancelFunc
	changed    chan struct{}
}

// NewManager creates an empty, loading session. Call Initialize once to hydrate it.
func NewManager(store storage.Store, remote Remote, logger zerolog.Logger, opts ...Option) *Manager {
	rootCtx, rootCancel := context.WithCancel(context.Background())

	m := &Manager{
		store:       store,
		remote:      remote,
		logger:      logger,
		now:         time.Now,
		allowLegacy: true,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		loading:     true,
		changed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) validLocked(t token.Token) bool {
	if t.Kind() == token.KindOpaque && !m.allowLegacy {
		return false
	}
	return t.ValidAt(m.now())
}

func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Manager) beginLocked(t token.Token) {
	if m.sessCancel != nil {
		m.sessCancel()
	}
	m.epoch++
	m.tok = &t
	m.user = nil
	m.degraded = nil
	m.sessCtx, m.sessCancel = context.WithCancel(m.rootCtx)
}

// clearLocked drops all in-memory state and wipes the persisted record
func (m *Manager) clearLocked() error {
	if m.sessCancel != nil {
		m.sessCancel()
		m.sessCancel = nil
	}
	m.epoch++
	m.tok = nil
	m.user = nil
	m.degraded = nil
	m.sessCtx = nil

	if err := m.store.Clear(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear persisted session")
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}
	return nil
}

func (m *Manager) persistLocked() error {
	var userJSON string
	if m.user != nil {
		data, err := json.Marshal(m.user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		userJSON = string(data)
	}

	if err := m.store.Save(storage.Record{AuthToken: m.tok.String(), AuthUser: userJSON}); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist session")
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// call captures what a remote request needs. ctx is cancelled when either
// the caller's context or the session ends.
type call struct {
	ctx    context.Context
	cancel func()
	bearer string
	epoch  uint64
}

func (m *Manager) startCall(ctx context.Context) (*call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.newCallLocked(ctx)
}

func (m *Manager) newCallLocked(ctx context.Context) (*call, error) {
	if m.tok == nil {
		return nil, ErrNotAuthenticated
	}

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.sessCtx, cancel)

	return &call{
		ctx: callCtx,
		cancel: func() {
			stop()
			cancel()
		},
		bearer: m.tok.String(),
		epoch:  m.epoch,
	}, nil
}

// Initialize hydrates the session from the persisted record. It runs once;
// later calls return the first call's result.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.initialize(ctx)

		m.mu.Lock()
		m.loading = false
		m.notifyLocked()
		m.mu.Unlock()
	})
	return m.initErr
}

func (m *Manager) initialize(ctx context.Context) error {
	m.mu.Lock()
	startEpoch := m.epoch
	m.mu.Unlock()

	rec, err := m.store.Load()

	m.mu.Lock()
	if m.epoch != startEpoch {
		// A login or logout landed while the record was read; it is stale
		m.mu.Unlock()
		m.logger.Debug().Msg("Session changed during initialization - keeping it")
		return nil
	}

	if err != nil {
		defer m.mu.Unlock()

		clearErr := m.clearLocked()
		switch {
		case errors.Is(err, storage.ErrNotFound):
			m.logger.Debug().Msg("No persisted session")
			return clearErr
		case errors.Is(err, storage.ErrCorrupt):
			m.logger.Warn().Err(err).Msg("Persisted session is corrupt - starting signed out")
			return clearErr
		default:
			m.logger.Error().Err(err).Msg("Failed to load persisted session")
			return errors.Join(fmt.Errorf("failed to load persisted session: %w", err), clearErr)
		}
	}

	tok := token.Parse(rec.AuthToken)

	if !m.validLocked(tok) {
		m.logger.Info().Str("token_kind", tok.Kind().String()).Msg("Persisted token is invalid or expired - clearing session")
		err := m.clearLocked()
		m.mu.Unlock()
		return err
	}
	m.beginLocked(tok)
	c, err := m.newCallLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	user, epoch, err := m.fetchWith(c)

	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch {
		return nil
	}

	switch {
	case err == nil:
		m.user = user
		return m.persistLocked()
	case errors.Is(err, api.ErrUnauthorized):
		m.logger.Warn().Err(err).Msg("Persisted token rejected by server - signing out")
		return m.clearLocked()
	}

	// Keep working from the persisted profile, but say so
	m.degraded = err
	if rec.AuthUser == "" {
		m.logger.Warn().Err(err).Msg("Failed to fetch user profile and no cached profile is available")
		return nil
	}

	var cached models.User
	if jsonErr := json.Unmarshal([]byte(rec.AuthUser), &cached); jsonErr != nil {
		m.logger.Warn().Err(jsonErr).Msg("Cached user profile is corrupt - signing out")
		return errors.Join(fmt.Errorf("%w: %v", ErrStorageCorrupt, jsonErr), m.clearLocked())
	}

	m.user = &cached
	m.logger.Warn().Err(err).Str("user_id", cached.ID).Msg("Using cached user profile")
	return nil
}

// fetchProfile calls the backend without holding the lock and returns the
// epoch the request was issued in
func (m *Manager) fetchProfile(ctx context.Context) (*models.User, uint64, error) {
	c, err := m.startCall(ctx)
	if err != nil {
		return nil, 0, err
	}
	return m.fetchWith(c)
}

func (m *Manager) fetchWith(c *call) (*models.User, uint64, error) {
	defer c.cancel()

	user, err := m.remote.CurrentUser(c.ctx, c.bearer)
	if err != nil {
		return nil, c.epoch, fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}
	return cloneUser(user), c.epoch, nil
}

// Login starts a session with raw. When user is nil the profile is fetched
// from the backend; if that fails with anything but 401 the session stays
// signed in and is marked degraded.
func (m *Manager) Login(ctx context.Context, raw string, user *models.User) error {
	tok := token.Parse(raw)

	m.mu.Lock()
	if !m.validLocked(tok) {
		m.mu.Unlock()
		m.logger.Warn().Str("token_kind", tok.Kind().String()).Msg("Rejected login with invalid token")
		return ErrInvalidToken
	}

	m.beginLocked(tok)
	m.user = cloneUser(user)
	persistErr := m.persistLocked()
	m.notifyLocked()

	if persistErr != nil || user != nil {
		m.mu.Unlock()
		if user != nil {
			m.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("Signed in")
		}
		return persistErr
	}

	// The profile request belongs to this login's epoch
	c, err := m.newCallLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	fetched, epoch, fetchErr := m.fetchWith(c)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, err = m.applyProfileLocked(fetched, epoch, fetchErr)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, ErrSessionEnded),
		errors.Is(err, ErrNotAuthenticated):
		return err
	}

	m.degraded = err
	m.notifyLocked()
	m.logger.Warn().Err(err).Msg("Signed in without a user profile")
	return nil
}

// Logout ends the session. It is safe to call when already signed out.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasSignedIn := m.tok != nil
	err := m.clearLocked()
	m.notifyLocked()

	if wasSignedIn {
		m.logger.Info().Msg("Signed out")
	}
	return err
}

// UpdateUser replaces the cached profile and persists it
func (m *Manager) UpdateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tok == nil {
		return ErrNotAuthenticated
	}

	m.user = cloneUser(user)
	m.degraded = nil
	err := m.persistLocked()
	m.notifyLocked()
	return err
}

// FetchUserDetails refreshes the cached profile from the backend. A 401
// ends the session.
func (m *Manager) FetchUserDetails(ctx context.Context) (*models.User, error) {
	user, epoch, err := m.fetchProfile(ctx)
	if errors.Is(err, ErrNotAuthenticated) {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.applyProfileLocked(user, epoch, err)
}

// applyProfileLocked applies the outcome of a profile request issued in epoch
func (m *Manager) applyProfileLocked(user *models.User, epoch uint64, err error) (*models.User, error) {
	if epoch != m.epoch {
		return nil, ErrSessionEnded
	}

	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			m.logger.Warn().Err(err).Msg("Token rejected by server - signing out")
			clearErr := m.clearLocked()
			m.notifyLocked()
			return nil, errors.Join(err, clearErr)
		}
		m.logger.Warn().Err(err).Msg("Failed to fetch user profile")
		return nil, err
	}

	m.user = user
	m.degraded = nil
	persistErr := m.persistLocked()
	m.notifyLocked()
	return cloneUser(user), persistErr
}

// Refresh exchanges the current token for a new one. Any failure ends the
// session; there is no retry.
func (m *Manager) Refresh(ctx context.Context) error {
	c, err := m.startCall(ctx)
	if err != nil {
		return err
	}
	defer c.cancel()

	fresh, err := m.remote.RefreshToken(c.ctx, c.bearer)

	m.mu.Lock()
	defer m.mu.Unlock()

	if c.epoch != m.epoch {
		return ErrSessionEnded
	}

	if err == nil {
		tok := token.Parse(fresh)
		if !m.validLocked(tok) {
			err = ErrInvalidToken
		} else {
			m.tok = &tok
			persistErr := m.persistLocked()
			m.notifyLocked()
			m.logger.Info().Msg("Token refreshed")
			return persistErr
		}
	}

	m.logger.Warn().Err(err).Msg("Token refresh failed - signing out")
	clearErr := m.clearLocked()
	m.notifyLocked()
	return errors.Join(fmt.Errorf("%w: %w", ErrRefreshFailed, err), clearErr)
}

// State returns a snapshot of the session
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{
		User:      cloneUser(m.user),
		IsLoading: m.loading,
	}
	st.ShowRoleModal = NeedsRoleSelection(st.User)

	if m.tok != nil {
		st.IsAuthenticated = m.validLocked(*m.tok)
		st.TokenKind = m.tok.Kind().String()
		if exp, ok := m.tok.ExpiresAt(); ok {
			st.TokenExpiresAt = &exp
		}
	}

	if m.degraded != nil {
		st.Degraded = true
		st.DegradedReason = m.degraded.Error()
	}

	return st
}

// Token returns the raw bearer credential while the session is authenticated
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tok == nil || !m.validLocked(*m.tok) {
		return "", false
	}
	return m.tok.String(), true
}

// ExpiringSoon reports whether the current token is due for refresh
func (m *Manager) ExpiringSoon() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tok != nil && m.tok.ExpiringSoonAt(m.now())
}

// AwaitSession blocks until a session is active and returns a context that
// is cancelled when that session ends
func (m *Manager) AwaitSession(ctx context.Context) (context.Context, error) {
	for {
		m.mu.Lock()
		if m.tok != nil {
			sessCtx := m.sessCtx
			m.mu.Unlock()
			return sessCtx, nil
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// Close cancels in-flight requests without touching the persisted record
func (m *Manager) Close() {
	m.rootCancel()
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
