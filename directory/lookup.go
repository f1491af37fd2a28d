package directory

import (
	"context"
	"slices"
	"time"

	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/errors"
	"github.com/kbukum/capdir/logger"
	"github.com/kbukum/capdir/observability"
)

// Lookup returns the providers of interfaceName in any of domains, as
// selected by qos.Scope. Local entries win over cached and remote ones with
// the same participant id.
func (d *Directory) Lookup(ctx context.Context, domains []string, interfaceName string, qos discovery.DiscoveryQos, gbids []string) (result []discovery.DiscoveryEntryWithMetaInfo, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanLookup)
	start := d.clock.Now()
	defer func() {
		observability.SetSpanAttribute(ctx, observability.AttrResultCount, len(result))
		observability.EndSpan(span, err)
		outcome := "ok"
		if err != nil {
			outcome = string(errors.FromError(err).Code)
		}
		d.metrics.RecordLookup(ctx, qos.Scope.String(), outcome, d.clock.Since(start))
	}()
	observability.SetSpanAttribute(ctx, observability.AttrDomains, domains)
	observability.SetSpanAttribute(ctx, observability.AttrInterface, interfaceName)
	observability.SetSpanAttribute(ctx, observability.AttrScope, qos.Scope.String())

	if len(domains) == 0 {
		return nil, errors.InvalidInput("domains", "at least one domain is required")
	}
	selected, err := d.gbids.Validate(gbids)
	if err != nil {
		return nil, err
	}

	if qos.Scope == discovery.LocalOnly {
		for _, r := range d.local.Lookup(domains, interfaceName) {
			result = append(result, discovery.WithMetaInfo(true, r.Entry))
		}
		result = filterOnChange(result, qos)
		d.referenceLocal(result)
		return result, nil
	}

	var (
		filteredOut bool
		found       = make(map[string]struct{})
		covered     = make(map[string]struct{})
	)
	for _, r := range d.local.Lookup(domains, interfaceName) {
		switch {
		case !r.Entry.IsGlobal():
			if qos.Scope == discovery.GlobalOnly {
				continue
			}
		case !intersects(r.Gbids, selected):
			filteredOut = true
			continue
		}
		result = append(result, discovery.WithMetaInfo(true, r.Entry))
		found[r.Entry.ParticipantID] = struct{}{}
		covered[r.Entry.Domain] = struct{}{}
	}
	if qos.Scope == discovery.LocalThenGlobal && len(result) > 0 {
		result = filterOnChange(result, qos)
		d.referenceLocal(result)
		return result, nil
	}

	for _, r := range d.cache.Lookup(domains, interfaceName, qos.CacheMaxAge) {
		pid := r.Entry.ParticipantID
		if _, dup := found[pid]; dup {
			continue
		}
		if !slices.Contains(selected, r.Gbid) {
			filteredOut = true
			continue
		}
		if _, isLocal := d.local.Get(pid); isLocal {
			continue
		}
		result = append(result, discovery.WithMetaInfo(false, r.Entry.DiscoveryEntry))
		found[pid] = struct{}{}
		covered[r.Entry.Domain] = struct{}{}
		d.putRoute(r.Entry)
	}

	var missing []string
	for _, dom := range domains {
		if _, ok := covered[dom]; !ok && !slices.Contains(missing, dom) {
			missing = append(missing, dom)
		}
	}

	if len(missing) > 0 {
		remote, rerr := d.lookupRemote(ctx, missing, interfaceName, qos, selected)
		if rerr != nil {
			if len(result) == 0 {
				return nil, rerr
			}
			d.log.Warn("global lookup failed, returning partial result", logger.Fields(
				logger.FieldDomain, missing,
				logger.FieldInterface, interfaceName,
				logger.FieldError, rerr.Error(),
			))
		}
		for _, e := range remote {
			pid := e.ParticipantID
			if _, dup := found[pid]; dup {
				continue
			}
			if _, isLocal := d.local.Get(pid); isLocal {
				continue
			}
			if _, err := discovery.DecodeAddress(e.Address); err != nil {
				d.log.WithParticipant(pid).Warn("skipping global entry with unusable address", logger.ErrorFields("lookup", err))
				continue
			}
			d.cache.Insert(e, discovery.GbidOf(e.Address, d.gbids.Default()))
			result = append(result, discovery.WithMetaInfo(false, e.DiscoveryEntry))
			found[pid] = struct{}{}
			d.putRoute(e)
		}
	}

	result = filterOnChange(result, qos)
	d.referenceLocal(result)

	if len(result) == 0 && filteredOut && (qos.Scope == discovery.GlobalOnly || len(gbids) > 0) {
		return nil, errors.NoEntryForSelectedBackends(selected)
	}
	return result, nil
}

// LookupParticipant returns the entry of participantID as selected by qos.Scope.
func (d *Directory) LookupParticipant(ctx context.Context, participantID string, qos discovery.DiscoveryQos, gbids []string) (result discovery.DiscoveryEntryWithMetaInfo, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanLookupParticipant)
	start := d.clock.Now()
	defer func() {
		observability.EndSpan(span, err)
		outcome := "ok"
		if err != nil {
			outcome = string(errors.FromError(err).Code)
		}
		d.metrics.RecordLookup(ctx, qos.Scope.String(), outcome, d.clock.Since(start))
	}()
	observability.SetSpanAttribute(ctx, observability.AttrParticipantID, participantID)
	observability.SetSpanAttribute(ctx, observability.AttrScope, qos.Scope.String())

	if participantID == "" {
		return result, errors.InvalidInput("participantId", "must not be empty")
	}
	selected, err := d.gbids.Validate(gbids)
	if err != nil {
		return result, err
	}

	if rec, ok := d.local.Get(participantID); ok {
		switch {
		case !rec.Entry.IsGlobal():
			if qos.Scope != discovery.GlobalOnly {
				return d.localHit(rec.Entry, qos)
			}
		case qos.Scope == discovery.LocalOnly, intersects(rec.Gbids, selected):
			return d.localHit(rec.Entry, qos)
		default:
			return result, errors.NoEntryForSelectedBackends(selected)
		}
	}
	if qos.Scope == discovery.LocalOnly {
		return result, errors.NoEntryForParticipant(participantID)
	}

	if r, ok := d.cache.LookupParticipant(participantID, qos.CacheMaxAge); ok && slices.Contains(selected, r.Gbid) {
		if !qos.ProviderMustSupportOnChange || r.Entry.Qos.SupportsOnChangeSubscriptions {
			d.putRoute(r.Entry)
			return discovery.WithMetaInfo(false, r.Entry.DiscoveryEntry), nil
		}
	}

	timeout := d.discoveryTimeout(qos)
	ctx, cancel := d.clock.WithTimeout(ctx, timeout)
	defer cancel()
	e, err := d.gcd.LookupParticipant(ctx, participantID, timeout, selected)
	if err != nil {
		return result, lookupError(err)
	}
	if e.ParticipantID == "" {
		return result, errors.NoEntryForParticipant(participantID)
	}
	if _, err := discovery.DecodeAddress(e.Address); err != nil {
		return result, errors.Internal(err)
	}
	if qos.ProviderMustSupportOnChange && !e.Qos.SupportsOnChangeSubscriptions {
		return result, errors.NoEntryForParticipant(participantID)
	}
	d.cache.Insert(e, discovery.GbidOf(e.Address, d.gbids.Default()))
	d.putRoute(e)
	return discovery.WithMetaInfo(false, e.DiscoveryEntry), nil
}

func (d *Directory) localHit(entry discovery.DiscoveryEntry, qos discovery.DiscoveryQos) (discovery.DiscoveryEntryWithMetaInfo, error) {
	if qos.ProviderMustSupportOnChange && !entry.Qos.SupportsOnChangeSubscriptions {
		return discovery.DiscoveryEntryWithMetaInfo{}, errors.NoEntryForParticipant(entry.ParticipantID)
	}
	d.routing.IncrementReferenceCount(entry.ParticipantID)
	return discovery.WithMetaInfo(true, entry), nil
}

func (d *Directory) lookupRemote(ctx context.Context, domains []string, interfaceName string, qos discovery.DiscoveryQos, gbids []string) ([]discovery.GlobalDiscoveryEntry, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanGlobalLookup)
	observability.SetSpanAttribute(ctx, observability.AttrGbids, gbids)

	timeout := d.discoveryTimeout(qos)
	ctx, cancel := d.clock.WithTimeout(ctx, timeout)
	defer cancel()

	entries, err := d.gcd.Lookup(ctx, domains, interfaceName, timeout, gbids)
	if err != nil {
		err = lookupError(err)
	}
	observability.EndSpan(span, err)
	return entries, err
}

func (d *Directory) discoveryTimeout(qos discovery.DiscoveryQos) time.Duration {
	if qos.DiscoveryTimeout > 0 {
		return qos.DiscoveryTimeout
	}
	return d.cfg.DefaultDiscoveryTimeout
}

func (d *Directory) referenceLocal(entries []discovery.DiscoveryEntryWithMetaInfo) {
	for _, e := range entries {
		if e.IsLocal {
			d.routing.IncrementReferenceCount(e.ParticipantID)
		}
	}
}

func (d *Directory) putRoute(e discovery.GlobalDiscoveryEntry) {
	addr, err := discovery.DecodeAddress(e.Address)
	if err != nil {
		return
	}
	if !d.routing.Put(e.ParticipantID, addr, true, e.ExpiryDateMs) {
		d.log.WithParticipant(e.ParticipantID).Debug("routing table kept existing route")
	}
}

// lookupError maps a failed remote lookup to the error surfaced to the caller.
func lookupError(err error) error {
	switch {
	case errors.IsDiscoveryError(err):
		return err
	case errors.IsTimeout(err):
		return errors.Timeout("global lookup").WithCause(err)
	default:
		return errors.Internal(err)
	}
}

func filterOnChange(entries []discovery.DiscoveryEntryWithMetaInfo, qos discovery.DiscoveryQos) []discovery.DiscoveryEntryWithMetaInfo {
	if !qos.ProviderMustSupportOnChange {
		return entries
	}
	return slices.DeleteFunc(entries, func(e discovery.DiscoveryEntryWithMetaInfo) bool {
		return !e.Qos.SupportsOnChangeSubscriptions
	})
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
