package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
)

type dailySessionCreator interface {
	CreateForDay(ctx context.Context, day models.Date) (int, error)
}

// SessionScheduler creates each day's sessions for the sections meeting that day.
type SessionScheduler struct {
	cron     *cron.Cron
	creator  dailySessionCreator
	metrics  *MetricsService
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
	timeout  time.Duration
}

// NewSessionScheduler registers the daily job on spec, evaluated in timezone.
func NewSessionScheduler(creator dailySessionCreator, spec, timezone string, metrics *MetricsService, logger *zap.Logger) (*SessionScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	location := time.UTC
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load scheduler timezone %q: %w", timezone, err)
		}
		location = loc
	}
	s := &SessionScheduler{
		creator:  creator,
		metrics:  metrics,
		logger:   logger,
		location: location,
		now:      time.Now,
		timeout:  2 * time.Minute,
	}
	s.cron = cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cronLogger{logger: logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})),
	)
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule session job %q: %w", spec, err)
	}
	return s, nil
}

// cronLogger sends cron's own messages, such as skipped runs, through zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info("cron: "+msg, cronFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(cronFields(keysAndValues), zap.Error(err))...)
}

func cronFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}

// Start begins running the job in the background.
func (s *SessionScheduler) Start() {
	s.logger.Info("session scheduler started", zap.String("timezone", s.location.String()))
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish or ctx to expire.
func (s *SessionScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("session scheduler stop timed out")
	}
}

// RunOnce creates today's sessions in the scheduler's timezone.
func (s *SessionScheduler) RunOnce(ctx context.Context) (int, error) {
	today := models.NewDate(s.now().In(s.location))
	created, err := s.creator.CreateForDay(ctx, today)
	if err != nil {
		s.metrics.ObserveSchedulerRun("error")
		s.logger.Error("session scheduler run failed", zap.String("day", today.String()), zap.Int("created", created), zap.Error(err))
		return created, err
	}
	s.metrics.ObserveSchedulerRun("ok")
	s.logger.Info("session scheduler run", zap.String("day", today.String()), zap.Int("created", created))
	return created, nil
}

func (s *SessionScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}
