package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/attendance"
	"github.com/mamadbah2/campcheck/internal/config"
	"github.com/mamadbah2/campcheck/internal/domain/models"
)

const jobTimeout = 2 * time.Minute

// SessionSource exposes the open session, if any.
type SessionSource interface {
	ActiveSession() (models.ActiveSession, error)
}

// Reporter renders scheduled messages.
type Reporter interface {
	GenerateDailyDigest(ctx context.Context, day time.Time) (string, error)
	FormatStaleReminder(active models.ActiveSession, openFor time.Duration) string
}

// Notifier delivers a message to a phone number.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	sessions  SessionSource
	reporter  Reporter
	notifier  Notifier
	cfg       config.ReportingConfig
	recipient string
	logger    *zap.Logger
	now       func() time.Time

	mu               sync.Mutex
	remindedSessions map[string]struct{}
}

// NewScheduler creates a new scheduler instance. Jobs run in the configured timezone.
func NewScheduler(cfg config.Config, sessions SessionSource, reporter Reporter, notifier Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:             cron.New(cron.WithLocation(cfg.Reporting.Location())),
		sessions:         sessions,
		reporter:         reporter,
		notifier:         notifier,
		cfg:              cfg.Reporting,
		recipient:        cfg.WhatsApp.DirectorNumber,
		logger:           logger,
		now:              time.Now,
		remindedSessions: make(map[string]struct{}),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("digest", s.cfg.DigestSchedule),
		zap.String("stale_check", s.cfg.StaleCheckSchedule),
		zap.String("timezone", s.cfg.Timezone))

	if _, err := s.cron.AddFunc(s.cfg.DigestSchedule, s.sendDailyDigest); err != nil {
		return fmt.Errorf("schedule daily digest: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.StaleCheckSchedule, s.checkStaleSession); err != nil {
		return fmt.Errorf("schedule stale session check: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyDigest() {
	s.logger.Info("generating daily digest")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	digest, err := s.reporter.GenerateDailyDigest(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to generate daily digest", zap.Error(err))
		return
	}

	if err := s.deliver(ctx, digest); err != nil {
		s.logger.Error("failed to send daily digest", zap.Error(err))
		return
	}
	s.logger.Info("daily digest sent")
}

func (s *Scheduler) checkStaleSession() {
	active, err := s.sessions.ActiveSession()
	if err != nil {
		var serr *attendance.StateError
		if !errors.As(err, &serr) {
			s.logger.Error("failed to read active session", zap.Error(err))
		}
		return
	}

	openFor := s.now().Sub(active.Session.StartedAt)
	if openFor < s.cfg.StaleAfter {
		return
	}

	s.mu.Lock()
	_, done := s.remindedSessions[active.Session.ID]
	if !done {
		s.remindedSessions[active.Session.ID] = struct{}{}
	}
	s.mu.Unlock()
	if done {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.deliver(ctx, s.reporter.FormatStaleReminder(active, openFor)); err != nil {
		// Release the mark so the next check retries.
		s.mu.Lock()
		delete(s.remindedSessions, active.Session.ID)
		s.mu.Unlock()
		s.logger.Error("failed to send stale session reminder", zap.String("session_id", active.Session.ID), zap.Error(err))
		return
	}
	s.logger.Info("stale session reminder sent", zap.String("session_id", active.Session.ID), zap.Duration("open_for", openFor))
}

func (s *Scheduler) deliver(ctx context.Context, body string) error {
	if s.notifier == nil || s.recipient == "" {
		s.logger.Info("no recipient configured, logging message instead", zap.String("body", body))
		return nil
	}
	return s.notifier.SendText(ctx, s.recipient, body)
}
