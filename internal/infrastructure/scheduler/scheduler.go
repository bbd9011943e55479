package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Runner performs one reconciliation run.
type Runner interface {
	Run(ctx context.Context) (domain.RunSummary, error)
}

// Scheduler triggers price checks on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	location *time.Location
	entryID  cron.EntryID
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// New creates a Scheduler that runs runner on the 5-field cron expression
// schedule, evaluated in timezone.
func New(schedule, timezone string, runner Runner) (*Scheduler, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     c,
		runner:   runner,
		location: loc,
		baseCtx:  ctx,
		cancel:   cancel,
	}

	s.entryID, err = c.AddFunc(schedule, s.runOnce)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("adding cron entry %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	summary, err := s.runner.Run(s.baseCtx)
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		logx.Info().Msg("scheduled price check skipped: run already in progress")
	case err != nil:
		logx.Error().Err(err).Msg("scheduled price check failed")
	default:
		logx.Info().Int("total", summary.Total).Int("alerts_sent", summary.AlertsSent).Msg("scheduled price check finished")
	}
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	logx.Info().Str("timezone", s.location.String()).Time("next_run", s.Next()).Msg("price check scheduler started")
}

// Stop halts the scheduler and waits for a running check to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// cronLogger adapts cron.Logger to logx.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logx.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logx.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
