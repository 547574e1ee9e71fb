package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultRefreshSchedule checks the token every two minutes
const DefaultRefreshSchedule = "@every 2m"

// Sessions is the part of the session manager the scheduler drives
type Sessions interface {
	AwaitSession(ctx context.Context) (context.Context, error)
	ExpiringSoon() bool
	Refresh(ctx context.Context) error
}

// ParseSchedule parses a standard 5-field cron expression or a descriptor such as "@every 2m"
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// RefreshScheduler refreshes the session token shortly before it expires
type RefreshScheduler struct {
	sessions Sessions
	schedule cron.Schedule
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRefreshScheduler creates a scheduler ticking on schedule
func NewRefreshScheduler(sessions Sessions, schedule cron.Schedule, logger zerolog.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		sessions: sessions,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. The timer only runs while a session is
// active; when the session ends it is stopped and re-armed by the next login.
func (s *RefreshScheduler) Run(ctx context.Context) {
	for {
		sessCtx, err := s.sessions.AwaitSession(ctx)
		if err != nil {
			s.logger.Debug().Msg("Refresh scheduler stopped")
			return
		}

		s.logger.Debug().Msg("Session active - refresh scheduler armed")
		s.runSession(ctx, sessCtx)

		if ctx.Err() != nil {
			s.logger.Debug().Msg("Refresh scheduler stopped")
			return
		}
	}
}

func (s *RefreshScheduler) runSession(ctx, sessCtx context.Context) {
	for {
		now := s.now()
		timer := time.NewTimer(s.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-sessCtx.Done():
			timer.Stop()
			s.logger.Debug().Msg("Session ended - refresh scheduler idle")
			return
		case <-timer.C:
			s.CheckAndRefresh(ctx)
		}
	}
}

// CheckAndRefresh refreshes the token if it is close to expiry and reports
// whether a refresh was attempted. A failed refresh has already signed the
// session out; it is not retried.
func (s *RefreshScheduler) CheckAndRefresh(ctx context.Context) bool {
	if !s.sessions.ExpiringSoon() {
		s.logger.Debug().Msg("Token not due for refresh")
		return false
	}

	if err := s.sessions.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled token refresh failed")
		return true
	}

	s.logger.Debug().Msg("Scheduled token refresh succeeded")
	return true
}
