package directory

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/capdir/errors"
	"github.com/kbukum/capdir/logger"
	"github.com/kbukum/capdir/resilience"
)

// reclaimStale asks every backend to drop the registrations this cluster
// controller left behind before it started. Each gbid retries on its own
// until it succeeds, the address type is rejected or the budget is spent.
func (d *Directory) reclaimStale(ctx context.Context) {
	maxLastSeen := d.startedAt.UnixMilli()

	var eg errgroup.Group
	for _, g := range d.gbids.Known() {
		eg.Go(func() error {
			log := d.log.WithFields(logger.Fields(logger.FieldGbid, g))
			err := resilience.RetryFunc(ctx, resilience.RetryConfig{
				MaxAttempts:    resilience.UnlimitedAttempts,
				MaxElapsed:     d.cfg.StaleRemoval.MaxRetryDuration,
				StartedAt:      d.startedAt,
				InitialBackoff: d.cfg.StaleRemoval.InitialBackoff,
				MaxBackoff:     d.cfg.StaleRemoval.MaxBackoff,
				Jitter:         0.1,
				Clock:          d.clock,
				RetryIf: func(err error) bool {
					return ctx.Err() == nil && !errors.IsCode(err, errors.ErrCodeUnsupportedAddress)
				},
				OnRetry: func(attempt int, err error, backoff time.Duration) {
					log.Debug("stale removal failed, retrying", logger.Fields(
						logger.FieldAttempt, attempt,
						logger.FieldError, err.Error(),
						"backoff_ms", backoff.Milliseconds(),
					))
				},
			}, func() error {
				callCtx, cancel := d.clock.WithTimeout(ctx, d.cfg.AddRemoveTTL)
				defer cancel()
				return d.gcd.RemoveStale(callCtx, d.cfg.ClusterControllerID, maxLastSeen, g)
			})
			if err != nil {
				log.Warn("stale removal gave up", logger.ErrorFields("remove-stale", err))
				return nil
			}
			log.Info("stale registrations removed", logger.Fields("max_last_seen_ms", maxLastSeen))
			return nil
		})
	}
	_ = eg.Wait()
}
