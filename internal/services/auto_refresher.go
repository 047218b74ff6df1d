package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/questboard/domain"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Refresher runs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherConfig controls how frequently the snapshot is refreshed.
type RefresherConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// AutoRefresher periodically refreshes the committed snapshot while the remote is reachable.
type AutoRefresher struct {
	target  Refresher
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     RefresherConfig
}

func NewAutoRefresher(target Refresher, monitor ConnectionHealth, logger *zap.Logger, cfg RefresherConfig) (*AutoRefresher, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Interval {
		cfg.Timeout = cfg.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ar := &AutoRefresher{
		target:  target,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	if _, err := ar.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := ar.Tick(ctx); err != nil {
			ar.logger.Error("scheduled refresh failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	return ar, nil
}

// Start launches the cron scheduler.
func (ar *AutoRefresher) Start() {
	if ar == nil || ar.cron == nil {
		return
	}
	ar.cron.Start()
	ar.logger.Info("auto refresh started", zap.Duration("interval", ar.cfg.Interval))
}

// Stop gracefully stops the scheduler, waiting for a running tick.
func (ar *AutoRefresher) Stop(ctx context.Context) {
	if ar == nil || ar.cron == nil {
		return
	}
	stopCtx := ar.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	ar.logger.Info("auto refresh stopped")
}

// Tick runs one scheduled refresh synchronously. It is skipped while the remote is
// offline; a tick overlapping a running refresh is dropped by the orchestrator.
func (ar *AutoRefresher) Tick(ctx context.Context) error {
	if ar == nil || ar.target == nil {
		return nil
	}
	if ar.monitor != nil && !ar.monitor.IsOnline() {
		ar.logger.Debug("skipping scheduled refresh (offline)")
		return nil
	}
	err := ar.target.Refresh(ctx)
	if domain.IsDomainError(err, domain.ErrCodeConflict) {
		ar.logger.Debug("scheduled refresh overlapped a running cycle")
		return nil
	}
	return err
}
