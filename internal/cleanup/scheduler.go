// Egen Lista | 2026
// scheduler.go

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/egenlista/api/internal/auth"
)

// Sweeper runs one cleanup pass. The auth service implements it.
type Sweeper interface {
	CleanupUnverified(ctx context.Context) (*auth.CleanupResponse, error)
}

const sweepTimeout = 5 * time.Minute

// Scheduler runs the unverified-account sweep on a cron schedule
// inside the process. Deployments that trigger the sweep externally
// (the /internal/trigger-cleanup endpoint) leave the schedule unset.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *slog.Logger
}

func NewScheduler(
	schedule string,
	sweeper Sweeper,
	logger *slog.Logger,
) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("parse cleanup schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns once a running sweep finishes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()

	resp, err := s.sweeper.CleanupUnverified(ctx)
	if err != nil {
		s.logger.Error("scheduled cleanup failed", "error", err)
		return
	}

	s.logger.Info("scheduled cleanup finished",
		"tokens_deleted", resp.TokensDeleted,
		"users_deleted", resp.UsersDeleted,
		"duration", time.Since(start).String(),
	)
}
