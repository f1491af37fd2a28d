package directory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/kbukum/capdir/component"
	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/errors"
	"github.com/kbukum/capdir/gbid"
	"github.com/kbukum/capdir/logger"
	"github.com/kbukum/capdir/observability"
	"github.com/kbukum/capdir/sequencer"
	"github.com/kbukum/capdir/store"
)

// Deps are the external collaborators of a Directory.
type Deps struct {
	GCD     discovery.GlobalDirectory
	Routing discovery.RoutingTable
	Access  discovery.AccessController
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(d *Directory) { d.log = log }
}

// WithClock sets the time source of the directory, its stores and its sequencer.
func WithClock(clk clock.Clock) Option {
	return func(d *Directory) { d.clock = clk }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Directory) { d.metrics = m }
}

// WithLocalExpiredHook registers an action run for every local entry removed by the expiry sweep.
func WithLocalExpiredHook(fn func(store.Record)) Option {
	return func(d *Directory) { d.localExpiredHooks = append(d.localExpiredHooks, fn) }
}

// WithCacheExpiredHook registers an action run for every cached entry removed by the expiry sweep.
func WithCacheExpiredHook(fn func(store.CachedRecord)) Option {
	return func(d *Directory) { d.cacheExpiredHooks = append(d.cacheExpiredHooks, fn) }
}

// Directory is the local capabilities directory. It keeps local
// registrations, caches global ones and replicates GLOBAL providers to the
// global directory through a single sequencer.
type Directory struct {
	cfg     Config
	gcd     discovery.GlobalDirectory
	routing discovery.RoutingTable
	access  discovery.AccessController

	log     *logger.Logger
	clock   clock.Clock
	metrics *observability.Metrics

	gbids   *gbid.Validator
	local   *store.LocalStore
	cache   *store.GlobalCache
	seq     *sequencer.Sequencer
	pending *pendingRegistrations

	localExpiredHooks []func(store.Record)
	cacheExpiredHooks []func(store.CachedRecord)

	startedAt time.Time

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ component.Component = (*Directory)(nil)

// New creates a Directory. cfg is defaulted and validated.
func New(cfg Config, deps Deps, opts ...Option) (*Directory, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("directory config: %w", err)
	}
	if deps.GCD == nil || deps.Routing == nil {
		return nil, fmt.Errorf("directory: global directory client and routing table are required")
	}
	if cfg.AccessControl.Enabled && deps.Access == nil {
		return nil, fmt.Errorf("directory: access control is enabled but no access controller is set")
	}

	d := &Directory{
		cfg:     cfg,
		gcd:     deps.GCD,
		routing: deps.Routing,
		access:  deps.Access,
		log:     logger.NewNop(),
		clock:   clock.New(),
		gbids:   gbid.NewValidator(cfg.KnownGbids),
		local:   store.NewLocalStore(),
		pending: newPendingRegistrations(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent("directory")

	cache, err := store.NewGlobalCache(cfg.CacheSize, d.clock)
	if err != nil {
		return nil, err
	}
	d.cache = cache
	d.seq = sequencer.New(deps.GCD, cfg.Sequencer,
		sequencer.WithLogger(d.log),
		sequencer.WithClock(d.clock),
		sequencer.WithMetrics(d.metrics),
	)
	d.startedAt = d.clock.Now()
	return d, nil
}

// Name implements component.Component.
func (d *Directory) Name() string { return "directory" }

// Start launches the sequencer, the freshness loops and the stale-provider
// reclaimer. It does not wait for remote calls. A stopped Directory cannot
// be restarted.
func (d *Directory) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	if d.stopped {
		return errors.Shutdown("directory")
	}
	d.running = true

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.seq.Start()

	d.every(ctx, "touch", d.cfg.FreshnessUpdateInterval, d.touch)
	d.every(ctx, "re-add", d.cfg.ReAddInterval, d.reAdd)
	d.every(ctx, "expiry sweep", d.cfg.PurgeExpiredInterval, d.sweep)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.reclaimStale(ctx)
	}()

	d.log.Info("directory started", logger.Fields(
		logger.FieldGbids, d.cfg.KnownGbids,
		"cluster_controller_id", d.cfg.ClusterControllerID,
	))
	return nil
}

// Stop halts background work, stops the sequencer and resolves waiting
// callers with SHUTDOWN.
func (d *Directory) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	if !d.running {
		d.mu.Unlock()
		return d.seq.Stop(ctx)
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()

	var err error
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, fmt.Errorf("directory: background loops did not stop: %w", ctx.Err()))
	}

	err = multierr.Append(err, d.seq.Stop(ctx))
	d.pending.reset()
	d.log.Info("directory stopped")
	return err
}

// Health implements component.Component.
func (d *Directory) Health(_ context.Context) component.Health {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()

	if !running {
		return component.Health{Name: d.Name(), Status: component.StatusUnhealthy, Message: "not running"}
	}
	return component.Health{
		Name:   d.Name(),
		Status: component.StatusHealthy,
		Message: fmt.Sprintf("%d local entries, %d cached entries, %d queued tasks",
			d.local.Len(), d.cache.Len(), d.seq.Len()),
	}
}

// KnownGbids returns the configured backends.
func (d *Directory) KnownGbids() []string {
	return d.gbids.Known()
}

// Add registers entry. LOCAL providers are stored locally only. GLOBAL
// providers are also registered in gbids (all known backends when empty).
// With await the call returns once the global directory answered, and the
// entry is stored locally only on success. If ctx ends first, Add returns
// ctx.Err() but the registration keeps going: a later success still stores
// the entry locally, so local state follows the global directory.
func (d *Directory) Add(ctx context.Context, entry discovery.DiscoveryEntry, await bool, gbids []string) (err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanAdd)
	defer func() { observability.EndSpan(span, err) }()
	observability.SetSpanAttribute(ctx, observability.AttrParticipantID, entry.ParticipantID)
	observability.SetSpanAttribute(ctx, observability.AttrScope, entry.Qos.Scope.String())

	selected, err := d.gbids.Validate(gbids)
	if err != nil {
		d.metrics.RecordRegistration(ctx, "add", entry.Qos.Scope.String(), string(errors.CodeOf(err)))
		return err
	}
	if d.cfg.AccessControl.Enabled && !d.access.HasProviderPermission(ctx, entry) {
		d.metrics.RecordRegistration(ctx, "add", entry.Qos.Scope.String(), string(errors.ErrCodeForbidden))
		return errors.Forbidden(fmt.Sprintf("provider %s may not register %s/%s",
			entry.ParticipantID, entry.Domain, entry.InterfaceName))
	}

	entry = entry.Clone()
	now := d.clock.Now()
	entry.LastSeenDateMs = now.UnixMilli()
	if entry.ExpiryDateMs < entry.LastSeenDateMs {
		entry.ExpiryDateMs = now.Add(d.cfg.DefaultExpiry).UnixMilli()
	}

	log := d.log.WithParticipant(entry.ParticipantID)
	if !entry.IsGlobal() {
		d.local.Insert(entry, nil)
		d.metrics.RecordRegistration(ctx, "add", entry.Qos.Scope.String(), "ok")
		log.Debug("added local provider", logger.Fields(
			logger.FieldDomain, entry.Domain,
			logger.FieldInterface, entry.InterfaceName,
		))
		return nil
	}

	err = d.addGlobal(ctx, entry, await, selected, now)
	outcome := "ok"
	if err != nil {
		outcome = string(errors.FromError(err).Code)
	}
	d.metrics.RecordRegistration(ctx, "add", entry.Qos.Scope.String(), outcome)
	return err
}

// AddToAll registers entry in every known backend.
func (d *Directory) AddToAll(ctx context.Context, entry discovery.DiscoveryEntry, await bool) error {
	return d.Add(ctx, entry, await, d.gbids.Known())
}

func (d *Directory) addGlobal(ctx context.Context, entry discovery.DiscoveryEntry, await bool, gbids []string, now time.Time) error {
	pid := entry.ParticipantID
	log := d.log.WithParticipant(pid)

	d.cache.Remove(pid)

	if d.alreadyRegistered(entry, gbids) {
		log.Debug("provider already registered, skipping global add", logger.Fields(logger.FieldGbids, gbids))
		return nil
	}

	address, err := discovery.Address{BrokerURI: gbids[0], Topic: d.cfg.GlobalTopic}.Encode()
	if err != nil {
		return errors.Internal(err)
	}
	global := discovery.GlobalDiscoveryEntry{DiscoveryEntry: entry, Address: address}
	reg, prev, hadPrev := d.pending.recordAdd(pid, await, gbids)

	if !await {
		task := sequencer.NewAddTask(global, gbids, false, d.cfg.AddRemoveTTL, now, func(err error) {
			if err != nil {
				log.Warn("global add failed", logger.Fields(logger.FieldGbids, gbids, logger.FieldError, err.Error()))
			}
		})
		if err := d.seq.Add(task); err != nil {
			d.pending.revert(pid, reg.generation, prev, hadPrev)
			return err
		}
		d.local.Insert(entry, gbids)
		log.Debug("added global provider", logger.Fields(logger.FieldGbids, gbids, logger.FieldAwait, false))
		return nil
	}

	result := make(chan error, 1)
	task := sequencer.NewAddTask(global, gbids, true, d.cfg.AddRemoveTTL, now, func(err error) {
		if err == nil {
			d.local.Insert(entry, gbids)
		} else {
			d.pending.revert(pid, reg.generation, prev, hadPrev)
		}
		result <- err
	})
	if err := d.seq.Add(task); err != nil {
		d.pending.revert(pid, reg.generation, prev, hadPrev)
		return err
	}

	select {
	case err := <-result:
		if err != nil {
			log.Warn("global add failed", logger.Fields(logger.FieldGbids, gbids, logger.FieldError, err.Error()))
			return awaitError(err)
		}
		log.Debug("added global provider", logger.Fields(logger.FieldGbids, gbids, logger.FieldAwait, true))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// alreadyRegistered reports whether entry is stored with the same gbids and
// no remove of it is still queued.
func (d *Directory) alreadyRegistered(entry discovery.DiscoveryEntry, gbids []string) bool {
	rec, ok := d.local.Get(entry.ParticipantID)
	if !ok || !rec.Entry.EqualIgnoringTimestamps(entry) || !slices.Equal(rec.Gbids, gbids) {
		return false
	}
	reg, queued := d.pending.get(entry.ParticipantID)
	return !queued || !reg.removing
}

// awaitError maps a failed global add to the error surfaced to an awaiting caller.
func awaitError(err error) error {
	switch {
	case errors.IsDiscoveryError(err), errors.IsCode(err, errors.ErrCodeShutdown):
		return err
	case errors.IsTimeout(err):
		return errors.Timeout("global add").WithCause(err)
	default:
		return errors.Internal(err)
	}
}

// Remove unregisters participantID. Unknown participants are ignored.
// GLOBAL providers are removed from the gbids they were added to; the call
// returns once the remote removal is queued.
func (d *Directory) Remove(ctx context.Context, participantID string) error {
	return d.remove(ctx, participantID, nil, false)
}

// RemoveStrict is Remove, but fails with NO_ENTRY_FOR_PARTICIPANT for unknown participants.
func (d *Directory) RemoveStrict(ctx context.Context, participantID string) error {
	return d.remove(ctx, participantID, nil, true)
}

// RemoveFromGbids is Remove with an explicit set of backends.
func (d *Directory) RemoveFromGbids(ctx context.Context, participantID string, gbids []string) error {
	selected, err := d.gbids.Validate(gbids)
	if err != nil {
		return err
	}
	return d.remove(ctx, participantID, selected, false)
}

func (d *Directory) remove(ctx context.Context, participantID string, gbids []string, strict bool) error {
	log := d.log.WithParticipant(participantID)
	rec, stored := d.local.Get(participantID)
	reg, queued := d.pending.get(participantID)

	if !stored && !queued {
		d.metrics.RecordRegistration(ctx, "remove", "", string(errors.ErrCodeNoEntryForParticipant))
		if strict {
			return errors.NoEntryForParticipant(participantID)
		}
		log.Debug("remove of unknown participant ignored")
		return nil
	}

	if stored && !rec.Entry.IsGlobal() {
		d.local.Remove(participantID)
		d.pending.delete(participantID)
		d.metrics.RecordRegistration(ctx, "remove", discovery.ScopeLocal.String(), "ok")
		log.Debug("removed local provider")
		return nil
	}

	if len(gbids) == 0 {
		switch {
		case queued:
			gbids = reg.gbids
		case len(rec.Gbids) > 0:
			gbids = rec.Gbids
		default:
			gbids = d.gbids.Known()
		}
	}

	clearNow := !queued || !reg.await
	done := func(err error) {
		if err != nil {
			log.Warn("global remove failed", logger.Fields(logger.FieldGbids, gbids, logger.FieldError, err.Error()))
		}
		if clearNow || !d.clearsOnRemove(err) {
			return
		}
		if d.pending.deleteIf(participantID, reg.generation) {
			d.local.Remove(participantID)
			d.cache.Remove(participantID)
		}
	}

	task := sequencer.NewRemoveTask(participantID, gbids, d.cfg.AddRemoveTTL, d.clock.Now(), done)
	if err := d.seq.Add(task); err != nil {
		return err
	}
	if clearNow {
		d.local.Remove(participantID)
		d.cache.Remove(participantID)
		d.pending.delete(participantID)
	} else {
		d.pending.markRemoving(participantID, reg.generation)
	}
	d.metrics.RecordRegistration(ctx, "remove", discovery.ScopeGlobal.String(), "ok")
	log.Debug("queued global remove", logger.Fields(logger.FieldGbids, gbids))
	return nil
}

// clearsOnRemove applies the configured cleanup policy to a remote remove outcome.
func (d *Directory) clearsOnRemove(err error) bool {
	if err == nil || errors.IsNotFound(err) {
		return true
	}
	if errors.IsCode(err, errors.ErrCodeShutdown) {
		return false
	}
	return d.cfg.RemoveCleanupPolicy == CleanupAlways
}

// AwaitGlobalRegistration reports the await flag of the latest add of
// participantID and whether such an add is known.
func (d *Directory) AwaitGlobalRegistration(participantID string) (await, known bool) {
	r, ok := d.pending.get(participantID)
	return r.await, ok
}
