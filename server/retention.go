package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures the history pruning job.
type RetentionConfig struct {
	Store HistoryStore
	// Schedule is a 5-field UTC cron expression.
	Schedule   string
	MaxAge     time.Duration // zero keeps records regardless of age
	MaxRecords int           // zero keeps any number of records
	Now        func() time.Time
	Logger     *slog.Logger
}

// Retention prunes history on a cron schedule.
type Retention struct {
	store      HistoryStore
	schedule   cron.Schedule
	maxAge     time.Duration
	maxRecords int
	now        func() time.Time
	logger     *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewRetention validates cfg and creates a stopped pruning job.
func NewRetention(cfg RetentionConfig) (*Retention, error) {
	if cfg.Store == nil {
		return nil, errors.New("retention store is nil")
	}
	schedule, err := parseRetentionSchedule(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("retention schedule: %w", err)
	}
	if cfg.MaxAge < 0 {
		return nil, errors.New("retention max age must not be negative")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Retention{
		store:      cfg.Store,
		schedule:   schedule,
		maxAge:     cfg.MaxAge,
		maxRecords: cfg.MaxRecords,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}, nil
}

// Start starts the cron loop. Calling Start twice is a no-op.
func (r *Retention) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return
	}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithParser(retentionParser))
	c.Schedule(r.schedule, cron.FuncJob(func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("history retention failed", "error", err)
		}
	}))
	c.Start()
	r.cron = c
}

// Stop stops the cron loop and waits for a running prune to finish or ctx
// to expire.
func (r *Retention) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce prunes immediately and returns the number of records removed.
func (r *Retention) RunOnce(ctx context.Context) (int, error) {
	var cutoff time.Time
	if r.maxAge > 0 {
		cutoff = r.now().Add(-r.maxAge)
	}
	removed, err := r.store.Prune(ctx, cutoff, r.maxRecords)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.logger.Info("pruned history", "removed", removed, "max_age", r.maxAge, "max_records", r.maxRecords)
	}
	return removed, nil
}

// NextRun reports when the job will next fire after now.
func (r *Retention) NextRun() time.Time {
	return r.schedule.Next(r.now().UTC())
}

// retentionParser accepts minute, hour, day of month, month and day of week.
var retentionParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parseRetentionSchedule parses a 5-field schedule. Times are always UTC, so
// CRON_TZ and TZ prefixes are rejected.
func parseRetentionSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("schedule is empty")
	}
	if strings.Contains(strings.ToUpper(spec), "TZ=") {
		return nil, fmt.Errorf("schedule %q must not set a time zone", spec)
	}
	schedule, err := retentionParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return schedule, nil
}
