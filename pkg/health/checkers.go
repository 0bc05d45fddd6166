package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when any recorded GC pause exceeds threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}

// PoolStats is the subset of pgxpool statistics the saturation check reads.
type PoolStats struct {
	Acquired int32
	Max      int32
}

// PgxPoolStats adapts a pgx pool for PoolSaturationCheck.
func PgxPoolStats(pool *pgxpool.Pool) func() PoolStats {
	return func() PoolStats {
		s := pool.Stat()
		return PoolStats{Acquired: s.AcquiredConns(), Max: s.MaxConns()}
	}
}

// PoolSaturationCheck fails when the share of acquired connections reaches
// ratio (0 < ratio <= 1).
func PoolSaturationCheck(stats func() PoolStats, ratio float64) CheckFunc {
	return func(_ context.Context) error {
		s := stats()
		if s.Max <= 0 {
			return nil
		}
		used := float64(s.Acquired) / float64(s.Max)
		if used >= ratio {
			return errors.Errorf("pool saturated: %d of %d connections acquired", s.Acquired, s.Max)
		}
		return nil
	}
}

// PingCheck fails when ping returns an error.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}
