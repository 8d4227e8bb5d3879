// Package housekeeping runs the periodic cache sweeps: expired text entries
// and entries written under a stale cache format version.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"mikradb/pkg/config"
	"mikradb/pkg/logger"
	"mikradb/pkg/models"
	"mikradb/pkg/store"
)

const defaultCron = "0 3 * * *"

// Start starts the sweep scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	hk := eff.Config.Housekeeping
	if !hk.Enabled {
		logger.Info("housekeeping_disabled")
		return func() {}, nil
	}

	cronExpr := hk.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("housekeeping_invalid_cron", "cron", hk.Cron)
		return nil, fmt.Errorf("invalid housekeeping cron expression: %s", hk.Cron)
	}

	logger.Info("housekeeping_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("housekeeping_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("housekeeping_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("housekeeping_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			RunOnce()
		case <-ctx.Done():
			logger.Info("housekeeping_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single sweep pass. Exposed so tests and operator
// tooling can trigger it on demand.
func RunOnce() {
	start := time.Now()
	expired, err := store.SweepExpired(start.UnixNano())
	if err != nil {
		logger.Error("housekeeping_expired_sweep_failed", "error", err)
	}
	stale, err := store.SweepStaleVersions(models.CacheFormatVersion)
	if err != nil {
		logger.Error("housekeeping_version_sweep_failed", "error", err)
	}
	logger.Info("housekeeping_run",
		"expired_evicted", expired,
		"stale_evicted", stale,
		"duration_ms", time.Since(start).Milliseconds())
}
