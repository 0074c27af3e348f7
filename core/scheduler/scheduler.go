// Package scheduler triggers fleet-wide detection passes, on demand or on
// a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetsense/fleettrack/core/detector"
	"github.com/fleetsense/fleettrack/core/logger"
	"github.com/fleetsense/fleettrack/core/model"
)

// Runner is the batch entry point the scheduler drives.
type Runner interface {
	RunBatch(ctx context.Context, role model.Role) (detector.Report, error)
}

// Config tunes the periodic mode.
type Config struct {
	// IntervalSeconds between periodic passes. Zero disables the ticker;
	// RunOnce stays available either way.
	IntervalSeconds int `json:"interval_seconds"`
	// Role the periodic passes run under.
	Role string `json:"role"`

	// Interval overrides IntervalSeconds when set; tests use it for
	// subsecond tickers.
	Interval time.Duration `json:"-"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Role == "" {
		c.Role = model.RoleAdmin.String()
	}
	if c.Interval == 0 {
		c.Interval = time.Duration(c.IntervalSeconds) * time.Second
	}
}

// Validate rejects an unusable configuration.
func (c Config) Validate() error {
	if c.Interval < 0 || c.IntervalSeconds < 0 {
		return fmt.Errorf("interval %v must not be negative", c.Interval)
	}
	if _, err := model.ParseRole(c.Role); err != nil {
		return err
	}
	return nil
}

// Scheduler drives detection passes.
type Scheduler struct {
	cfg    Config
	runner Runner
	log    logger.Logger
}

// New creates a Scheduler.
func New(cfg Config, r Runner, log logger.Logger) (*Scheduler, error) {
	if r == nil || log == nil {
		return nil, fmt.Errorf("scheduler: nil parameter provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	return &Scheduler{cfg: cfg, runner: r, log: log}, nil
}

// RunOnce triggers one detection pass on behalf of the caller.
func (s *Scheduler) RunOnce(ctx context.Context, role model.Role) (detector.Report, error) {
	return s.runner.RunBatch(ctx, role)
}

// Run executes periodic passes until the context ends. With a zero
// interval it returns immediately; detection then runs on demand only.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.Interval == 0 {
		s.log.Infof("periodic detection disabled")
		return nil
	}
	role, err := model.ParseRole(s.cfg.Role)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.log.Infof("periodic detection every %s", s.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.runner.RunBatch(ctx, role); err != nil {
				s.log.Errorf("periodic detection pass: %v", err)
			}
		}
	}
}
