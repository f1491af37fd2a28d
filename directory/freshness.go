package directory

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/logger"
	"github.com/kbukum/capdir/sequencer"
)

// every runs fn on each tick of interval until ctx ends. A non-positive
// interval disables the loop.
func (d *Directory) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		d.log.Info("loop disabled", logger.Fields(logger.FieldOperation, name))
		return
	}
	ticker := d.clock.Ticker(interval)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.metrics.RecordFreshnessRun(ctx, name)
				fn(ctx)
			}
		}
	}()
}

// touch refreshes the GLOBAL local entries and reports them alive to the
// global directory, one call per gbid.
func (d *Directory) touch(ctx context.Context) {
	now := d.clock.Now()
	records := d.local.Touch(now, d.cfg.DefaultExpiry)
	if len(records) == 0 {
		return
	}

	groups := make(map[string][]string)
	for _, r := range records {
		g := d.gbids.Default()
		if len(r.Gbids) > 0 {
			g = r.Gbids[0]
		}
		groups[g] = append(groups[g], r.Entry.ParticipantID)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, g := range d.gbids.Known() {
		ids := groups[g]
		if len(ids) == 0 {
			continue
		}
		eg.Go(func() error {
			callCtx, cancel := d.clock.WithTimeout(ctx, d.cfg.AddRemoveTTL)
			defer cancel()
			if err := d.gcd.Touch(callCtx, d.cfg.ClusterControllerID, ids, g); err != nil {
				d.log.Warn("touch failed", logger.Fields(
					logger.FieldGbid, g,
					logger.FieldCount, len(ids),
					logger.FieldError, err.Error(),
				))
				return nil
			}
			d.cache.Touch(ids, now, d.cfg.DefaultExpiry)
			return nil
		})
	}
	_ = eg.Wait()
}

// reAdd re-registers every GLOBAL local entry with the global directory.
func (d *Directory) reAdd(_ context.Context) {
	now := d.clock.Now()
	for _, r := range d.local.GlobalRecords() {
		entry := r.Entry
		entry.LastSeenDateMs = now.UnixMilli()
		entry.ExpiryDateMs = now.Add(d.cfg.DefaultExpiry).UnixMilli()

		gbids := r.Gbids
		if len(gbids) == 0 {
			gbids = d.gbids.Known()
		}
		address, err := discovery.Address{BrokerURI: gbids[0], Topic: d.cfg.GlobalTopic}.Encode()
		if err != nil {
			d.log.WithParticipant(entry.ParticipantID).Error("re-add skipped", logger.ErrorFields("re-add", err))
			continue
		}

		log := d.log.WithParticipant(entry.ParticipantID)
		task := sequencer.NewAddTask(discovery.GlobalDiscoveryEntry{DiscoveryEntry: entry, Address: address},
			gbids, false, d.cfg.AddRemoveTTL, now, func(err error) {
				if err != nil {
					log.Warn("re-add failed", logger.ErrorFields("re-add", err))
				}
			})
		if err := d.seq.Add(task); err != nil {
			log.Warn("re-add not queued", logger.ErrorFields("re-add", err))
			return
		}
	}
}

// sweep drops expired entries from both stores.
func (d *Directory) sweep(ctx context.Context) {
	now := d.clock.Now()

	expired := d.local.RemoveExpired(now)
	for _, r := range expired {
		pid := r.Entry.ParticipantID
		d.routing.RemoveNextHop(pid)
		d.pending.delete(pid)
		for _, hook := range d.localExpiredHooks {
			hook(r)
		}
	}
	d.metrics.RecordExpired(ctx, "local", len(expired))

	cached := d.cache.RemoveExpired(now)
	for _, r := range cached {
		d.routing.RemoveNextHop(r.Entry.ParticipantID)
		for _, hook := range d.cacheExpiredHooks {
			hook(r)
		}
	}
	d.metrics.RecordExpired(ctx, "cache", len(cached))

	if len(expired)+len(cached) > 0 {
		d.log.Debug("removed expired entries", logger.Fields("local", len(expired), "cache", len(cached)))
	}
}
