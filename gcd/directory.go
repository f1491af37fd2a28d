package gcd

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/capdir/component"
	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/errors"
	"github.com/kbukum/capdir/logger"
)

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(d *Directory) {
		if log != nil {
			d.log = log
		}
	}
}

// WithClock sets the time source used by Touch and expiry filtering.
func WithClock(clk clock.Clock) Option {
	return func(d *Directory) { d.clock = clk }
}

// WithName sets the name reported in errors and health.
func WithName(name string) Option {
	return func(d *Directory) { d.name = name }
}

// Directory is a global capabilities directory on top of a Storage.
type Directory struct {
	storage Storage
	gbids   []string
	name    string
	log     *logger.Logger
	clock   clock.Clock
}

var (
	_ discovery.GlobalDirectory = (*Directory)(nil)
	_ component.Component       = (*Directory)(nil)
)

// NewDirectory serves gbids from storage.
func NewDirectory(storage Storage, gbids []string, opts ...Option) *Directory {
	d := &Directory{
		storage: storage,
		gbids:   slices.Clone(gbids),
		name:    ProviderMemory,
		log:     logger.NewNop(),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent("gcd")
	return d
}

// Add stores entry in every gbid with its address rewritten to that gbid.
// The registering node is the topic of the entry's address.
func (d *Directory) Add(ctx context.Context, entry discovery.GlobalDiscoveryEntry, _ time.Duration, gbids []string) error {
	if err := d.check(gbids); err != nil {
		return err
	}
	addr, err := discovery.DecodeAddress(entry.Address)
	if err != nil {
		return errors.UnsupportedAddress(gbids[0]).WithCause(err)
	}
	for _, g := range gbids {
		e := entry.Clone()
		e.Address = discovery.WithGbid(entry.Address, g)
		if err := d.storage.Put(ctx, g, Record{Entry: e, ClusterControllerID: addr.Topic}); err != nil {
			return d.storageError(err)
		}
	}
	d.log.Debug("entry added", logger.Fields(
		logger.FieldParticipantID, entry.ParticipantID,
		logger.FieldGbids, gbids,
	))
	return nil
}

// Remove deletes participantID from every gbid. It fails with
// NO_ENTRY_FOR_PARTICIPANT when no gbid held it.
func (d *Directory) Remove(ctx context.Context, participantID string, gbids []string) error {
	if err := d.check(gbids); err != nil {
		return err
	}
	found := false
	for _, g := range gbids {
		ok, err := d.storage.Delete(ctx, g, participantID)
		if err != nil {
			return d.storageError(err)
		}
		found = found || ok
	}
	if !found {
		return errors.NoEntryForParticipant(participantID)
	}
	return nil
}

// Lookup returns the unexpired entries of interfaceName in domains, taking
// the first gbid that holds each participant.
func (d *Directory) Lookup(ctx context.Context, domains []string, interfaceName string, _ time.Duration, gbids []string) ([]discovery.GlobalDiscoveryEntry, error) {
	if err := d.check(gbids); err != nil {
		return nil, err
	}
	nowMs := d.clock.Now().UnixMilli()
	seen := make(map[string]bool)
	var out []discovery.GlobalDiscoveryEntry
	for _, g := range gbids {
		records, err := d.storage.List(ctx, g)
		if err != nil {
			return nil, d.storageError(err)
		}
		slices.SortFunc(records, func(a, b Record) int {
			return strings.Compare(a.Entry.ParticipantID, b.Entry.ParticipantID)
		})
		for _, r := range records {
			e := r.Entry
			if seen[e.ParticipantID] || e.InterfaceName != interfaceName || !slices.Contains(domains, e.Domain) || e.IsExpired(nowMs) {
				continue
			}
			seen[e.ParticipantID] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// LookupParticipant returns the entry of participantID from the first gbid
// holding it. An entry held only by other gbids gives
// NO_ENTRY_FOR_SELECTED_BACKENDS.
func (d *Directory) LookupParticipant(ctx context.Context, participantID string, _ time.Duration, gbids []string) (discovery.GlobalDiscoveryEntry, error) {
	if err := d.check(gbids); err != nil {
		return discovery.GlobalDiscoveryEntry{}, err
	}
	for _, g := range gbids {
		r, ok, err := d.storage.Get(ctx, g, participantID)
		if err != nil {
			return discovery.GlobalDiscoveryEntry{}, d.storageError(err)
		}
		if ok {
			return r.Entry, nil
		}
	}
	for _, g := range d.gbids {
		if slices.Contains(gbids, g) {
			continue
		}
		_, ok, err := d.storage.Get(ctx, g, participantID)
		if err != nil {
			return discovery.GlobalDiscoveryEntry{}, d.storageError(err)
		}
		if ok {
			return discovery.GlobalDiscoveryEntry{}, errors.NoEntryForSelectedBackends(gbids)
		}
	}
	return discovery.GlobalDiscoveryEntry{}, errors.NoEntryForParticipant(participantID)
}

// Touch refreshes the timestamps of the listed entries registered by
// clusterControllerID in gbid, keeping each entry's lifetime. An empty
// list touches all of them.
func (d *Directory) Touch(ctx context.Context, clusterControllerID string, participantIDs []string, gbid string) error {
	if err := d.check([]string{gbid}); err != nil {
		return err
	}
	records, err := d.storage.List(ctx, gbid)
	if err != nil {
		return d.storageError(err)
	}
	nowMs := d.clock.Now().UnixMilli()
	for _, r := range records {
		if r.ClusterControllerID != clusterControllerID {
			continue
		}
		if len(participantIDs) > 0 && !slices.Contains(participantIDs, r.Entry.ParticipantID) {
			continue
		}
		lifetime := r.Entry.ExpiryDateMs - r.Entry.LastSeenDateMs
		r.Entry.LastSeenDateMs = nowMs
		r.Entry.ExpiryDateMs = nowMs + max(lifetime, 0)
		if err := d.storage.Put(ctx, gbid, r); err != nil {
			return d.storageError(err)
		}
	}
	return nil
}

// RemoveStale deletes the entries of clusterControllerID in gbid last seen
// before maxLastSeenDateMs.
func (d *Directory) RemoveStale(ctx context.Context, clusterControllerID string, maxLastSeenDateMs int64, gbid string) error {
	if err := d.check([]string{gbid}); err != nil {
		return err
	}
	records, err := d.storage.List(ctx, gbid)
	if err != nil {
		return d.storageError(err)
	}
	removed := 0
	for _, r := range records {
		if r.ClusterControllerID != clusterControllerID || r.Entry.LastSeenDateMs >= maxLastSeenDateMs {
			continue
		}
		if _, err := d.storage.Delete(ctx, gbid, r.Entry.ParticipantID); err != nil {
			return d.storageError(err)
		}
		removed++
	}
	if removed > 0 {
		d.log.Info("removed stale entries", logger.Fields(
			logger.FieldGbid, gbid,
			logger.FieldCount, removed,
			"cluster_controller_id", clusterControllerID,
		))
	}
	return nil
}

// Name implements component.Component.
func (d *Directory) Name() string { return "gcd-" + d.name }

// Start checks the storage is reachable.
func (d *Directory) Start(ctx context.Context) error {
	if err := d.storage.Ping(ctx); err != nil {
		return d.storageError(err)
	}
	d.log.Info("global directory ready", logger.Fields("provider", d.name, logger.FieldGbids, d.gbids))
	return nil
}

// Stop closes the storage.
func (d *Directory) Stop(_ context.Context) error {
	return d.storage.Close()
}

// Health pings the storage.
func (d *Directory) Health(ctx context.Context) component.Health {
	if err := d.storage.Ping(ctx); err != nil {
		return component.Health{Name: d.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: d.Name(), Status: component.StatusHealthy}
}

// check rejects empty and unknown gbid lists.
func (d *Directory) check(gbids []string) error {
	if len(gbids) == 0 {
		return errors.InvalidGbid("", "at least one gbid is required")
	}
	for _, g := range gbids {
		if g == "" {
			return errors.InvalidGbid(g, "gbid must not be empty")
		}
		if !slices.Contains(d.gbids, g) {
			return errors.UnknownGbid(g)
		}
	}
	return nil
}

// storageError keeps context errors recognisable and reports the rest as
// connection failures.
func (d *Directory) storageError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout("gcd " + d.name).WithCause(err)
	}
	return errors.ConnectionFailed("gcd "+d.name, err)
}

