package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Sweeper deactivates discount codes that can no longer be redeemed.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	lg *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.lg.Errorw(msg, append(keysAndValues, "error", err)...)
}

// newScheduler registers the maintenance jobs. Jobs run with ctx and are
// skipped while a previous run is still in progress.
func newScheduler(ctx context.Context, lg *zap.Logger, cfg JobsConfig, idle time.Duration, sweeper Sweeper, throttle *httpmiddleware.Throttle) (*cron.Cron, error) {
	logger := cronLogger{lg: lg.Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if cfg.DiscountSweep != "" {
		if _, err := c.AddFunc(cfg.DiscountSweep, func() { sweepDiscounts(ctx, lg, sweeper) }); err != nil {
			return nil, errors.Wrapf(err, "schedule discount sweep %q", cfg.DiscountSweep)
		}
	}
	if cfg.ThrottlePrune != "" && throttle != nil {
		if _, err := c.AddFunc(cfg.ThrottlePrune, func() {
			if n := throttle.Prune(idle); n > 0 {
				lg.Debug("Login throttle pruned", zap.Int("keys", n))
			}
		}); err != nil {
			return nil, errors.Wrapf(err, "schedule throttle prune %q", cfg.ThrottlePrune)
		}
	}
	return c, nil
}

func sweepDiscounts(ctx context.Context, lg *zap.Logger, sweeper Sweeper) {
	start := time.Now()
	n, err := sweeper.Sweep(ctx)
	if err != nil {
		lg.Error("Discount sweep failed", zap.Error(err))
		return
	}
	lg.Info("Discount sweep done",
		zap.Int64("deactivated", n),
		zap.Duration("duration", time.Since(start)),
	)
}
