package directory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/capdir/component"
	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/discovery/discoverytest"
	"github.com/kbukum/capdir/errors"
	"github.com/kbukum/capdir/sequencer"
	"github.com/kbukum/capdir/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	ccID    = "cc-test"
)

var known = []string{"g1", "g2", "g3"}

func testConfig() Config {
	return Config{
		KnownGbids:              known,
		ClusterControllerID:     ccID,
		FreshnessUpdateInterval: -1,
		ReAddInterval:           -1,
		PurgeExpiredInterval:    -1,
		StaleRemoval: StaleRemovalConfig{
			MaxRetryDuration: time.Second,
			InitialBackoff:   time.Millisecond,
			MaxBackoff:       time.Millisecond,
		},
		Sequencer: sequencer.Config{RetryDelay: time.Millisecond, MinTTL: time.Second, RateLimit: 10000, RateBurst: 1000},
	}
}

type fixture struct {
	dir     *Directory
	gcd     *discoverytest.GlobalDirectory
	routing *discoverytest.RoutingTable
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{gcd: discoverytest.NewGlobalDirectory(), routing: discoverytest.NewRoutingTable()}
	d, err := New(cfg, Deps{GCD: f.gcd, Routing: f.routing, Access: discoverytest.NewAccessController("denied")}, opts...)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = d.Stop(ctx)
	})
	f.dir = d
	return f
}

func provider(pid, domain string, scope discovery.ProviderScope) discovery.DiscoveryEntry {
	return discovery.DiscoveryEntry{
		ProviderVersion: discovery.Version{Major: 1},
		Domain:          domain,
		InterfaceName:   "vehicle/Radio",
		ParticipantID:   pid,
		Qos:             discovery.ProviderQos{Scope: scope},
	}
}

func remoteEntry(pid, domain, gbid string) discovery.GlobalDiscoveryEntry {
	e := provider(pid, domain, discovery.ScopeGlobal)
	e.ExpiryDateMs = time.Now().Add(time.Hour).UnixMilli()
	return discovery.GlobalDiscoveryEntry{
		DiscoveryEntry: e,
		Address:        discovery.Address{BrokerURI: gbid, Topic: "remote-topic"}.MustEncode(),
	}
}

func pids(entries []discovery.DiscoveryEntryWithMetaInfo) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ParticipantID)
	}
	return out
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	gcd, routing := discoverytest.NewGlobalDirectory(), discoverytest.NewRoutingTable()

	_, err := New(Config{}, Deps{GCD: gcd, Routing: routing})
	assert.Error(t, err)

	cfg := testConfig()
	cfg.KnownGbids = []string{"g1", "g1"}
	_, err = New(cfg, Deps{GCD: gcd, Routing: routing})
	assert.Error(t, err)

	cfg = testConfig()
	cfg.AccessControl.Enabled = true
	_, err = New(cfg, Deps{GCD: gcd, Routing: routing})
	assert.Error(t, err)

	_, err = New(testConfig(), Deps{Routing: routing})
	assert.Error(t, err)
}

func TestAdd_LocalScopeStaysLocal(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	require.NoError(t, f.dir.Add(ctx, provider("p1", "d", discovery.ScopeLocal), true, nil))

	rec, ok := f.dir.local.Get("p1")
	require.True(t, ok)
	assert.NotZero(t, rec.Entry.LastSeenDateMs)
	assert.Greater(t, rec.Entry.ExpiryDateMs, rec.Entry.LastSeenDateMs)
	assert.Zero(t, f.gcd.Count(discoverytest.OpAdd))
}

func TestAdd_KeepsExplicitExpiry(t *testing.T) {
	f := newFixture(t, testConfig())
	e := provider("p1", "d", discovery.ScopeLocal)
	e.ExpiryDateMs = time.Now().Add(time.Minute).UnixMilli()

	require.NoError(t, f.dir.Add(context.Background(), e, false, nil))

	rec, _ := f.dir.local.Get("p1")
	assert.Equal(t, e.ExpiryDateMs, rec.Entry.ExpiryDateMs)
}

func TestAdd_GlobalAwaitRegistersInAllKnownGbids(t *testing.T) {
	f := newFixture(t, testConfig())

	require.NoError(t, f.dir.Add(context.Background(), provider("p1", "d", discovery.ScopeGlobal), true, nil))

	adds := f.gcd.CallsOf(discoverytest.OpAdd)
	require.Len(t, adds, 1)
	assert.Equal(t, known, adds[0].Gbids)
	assert.True(t, adds[0].HasDeadline)

	addr, err := discovery.DecodeAddress(adds[0].Entry.Address)
	require.NoError(t, err)
	assert.Equal(t, discovery.Address{BrokerURI: "g1", Topic: ccID}, addr)

	rec, ok := f.dir.local.Get("p1")
	require.True(t, ok)
	assert.Equal(t, known, rec.Gbids)

	await, ok := f.dir.AwaitGlobalRegistration("p1")
	assert.True(t, ok)
	assert.True(t, await)
}

func TestAdd_IdenticalReAddSkipsRemoteCall(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	e := provider("p1", "d", discovery.ScopeGlobal)

	require.NoError(t, f.dir.Add(ctx, e, true, []string{"g2"}))
	require.NoError(t, f.dir.Add(ctx, e, true, []string{"g2"}))
	assert.Equal(t, 1, f.gcd.Count(discoverytest.OpAdd))

	require.NoError(t, f.dir.Add(ctx, e, true, []string{"g3"}))
	assert.Equal(t, 2, f.gcd.Count(discoverytest.OpAdd))

	e.Qos.Priority = 7
	require.NoError(t, f.dir.Add(ctx, e, true, []string{"g3"}))
	assert.Equal(t, 3, f.gcd.Count(discoverytest.OpAdd))
}

func TestAdd_DropsCachedCopy(t *testing.T) {
	f := newFixture(t, testConfig())
	f.dir.cache.Insert(remoteEntry("p1", "d", "g1"), "g1")

	require.NoError(t, f.dir.Add(context.Background(), provider("p1", "d", discovery.ScopeGlobal), false, nil))

	_, ok := f.dir.cache.LookupParticipant("p1", time.Hour)
	assert.False(t, ok)
}

func TestAdd_GbidValidation(t *testing.T) {
	tests := []struct {
		name  string
		gbids []string
		code  errors.ErrorCode
	}{
		{"empty gbid", []string{""}, errors.ErrCodeInvalidGbid},
		{"duplicate gbid", []string{"g1", "g1"}, errors.ErrCodeInvalidGbid},
		{"unknown gbid", []string{"g9"}, errors.ErrCodeUnknownGbid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig())

			err := f.dir.Add(context.Background(), provider("p1", "d", discovery.ScopeGlobal), true, tt.gbids)

			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.Zero(t, f.gcd.Count(discoverytest.OpAdd))
			assert.Zero(t, f.dir.local.Len())
		})
	}
}

func TestAdd_AccessControl(t *testing.T) {
	cfg := testConfig()
	cfg.AccessControl.Enabled = true
	f := newFixture(t, cfg)
	ctx := context.Background()

	err := f.dir.Add(ctx, provider("denied", "d", discovery.ScopeGlobal), true, nil)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))
	assert.Zero(t, f.gcd.Count(discoverytest.OpAdd))
	assert.Zero(t, f.dir.local.Len())

	assert.NoError(t, f.dir.Add(ctx, provider("allowed", "d", discovery.ScopeGlobal), true, nil))
}

func TestAdd_AwaitFailureMapping(t *testing.T) {
	tests := []struct {
		name   string
		remote error
		code   errors.ErrorCode
	}{
		{"discovery error passes through", errors.UnknownGbid("g2"), errors.ErrCodeUnknownGbid},
		{"timeout", errors.Timeout("add"), errors.ErrCodeTimeout},
		{"deadline exceeded", context.DeadlineExceeded, errors.ErrCodeTimeout},
		{"runtime failure", errors.ConnectionFailed("gcd", nil), errors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig())
			f.gcd.AddFunc = func(context.Context, discovery.GlobalDiscoveryEntry, time.Duration, []string) error {
				return tt.remote
			}

			err := f.dir.Add(context.Background(), provider("p1", "d", discovery.ScopeGlobal), true, nil)

			assert.Equal(t, tt.code, errors.CodeOf(err))
			_, stored := f.dir.local.Get("p1")
			assert.False(t, stored)
		})
	}
}

func TestAdd_NoAwaitStoresImmediately(t *testing.T) {
	f := newFixture(t, testConfig())
	release := make(chan struct{})
	f.gcd.AddFunc = func(ctx context.Context, _ discovery.GlobalDiscoveryEntry, _ time.Duration, _ []string) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}
	defer close(release)

	require.NoError(t, f.dir.Add(context.Background(), provider("p1", "d", discovery.ScopeGlobal), false, nil))

	_, stored := f.dir.local.Get("p1")
	assert.True(t, stored)
	await, _ := f.dir.AwaitGlobalRegistration("p1")
	assert.False(t, await)
}

func TestAdd_AwaitCallerCancellation(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gcd.AddFunc = func(ctx context.Context, _ discovery.GlobalDiscoveryEntry, _ time.Duration, _ []string) error {
		<-ctx.Done()
		return ctx.Err()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.dir.Add(ctx, provider("p1", "d", discovery.ScopeGlobal), true, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdd_AwaitResolvedWithShutdownOnStop(t *testing.T) {
	f := newFixture(t, testConfig())
	entered := make(chan struct{})
	f.gcd.AddFunc = func(ctx context.Context, _ discovery.GlobalDiscoveryEntry, _ time.Duration, _ []string) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- f.dir.Add(context.Background(), provider("p1", "d", discovery.ScopeGlobal), true, nil)
	}()
	<-entered
	require.NoError(t, f.dir.Stop(context.Background()))

	select {
	case err := <-errc:
		assert.Equal(t, errors.ErrCodeShutdown, errors.CodeOf(err))
	case <-time.After(waitFor):
		t.Fatal("awaiting add was not resolved")
	}
	_, ok := f.dir.AwaitGlobalRegistration("p1")
	assert.False(t, ok)
}

func TestAddToAll_UsesEveryKnownGbid(t *testing.T) {
	f := newFixture(t, testConfig())

	require.NoError(t, f.dir.AddToAll(context.Background(), provider("p1", "d", discovery.ScopeGlobal), true))

	adds := f.gcd.CallsOf(discoverytest.OpAdd)
	require.Len(t, adds, 1)
	assert.Equal(t, known, adds[0].Gbids)
}

func TestRemove_UnknownParticipant(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	assert.NoError(t, f.dir.Remove(ctx, "nobody"))
	assert.Equal(t, errors.ErrCodeNoEntryForParticipant, errors.CodeOf(f.dir.RemoveStrict(ctx, "nobody")))
	assert.Zero(t, f.gcd.Count(discoverytest.OpRemove))
}

func TestRemove_LocalScope(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.dir.Add(ctx, provider("p1", "d", discovery.ScopeLocal), false, nil))

	require.NoError(t, f.dir.Remove(ctx, "p1"))

	_, ok := f.dir.local.Get("p1")
	assert.False(t, ok)
	assert.Zero(t, f.gcd.Count(discoverytest.OpRemove))
}

func TestRemove_UsesGbidsOfAdd(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.dir.Add(ctx, provider("p1", "d", discovery.ScopeGlobal), false, []string{"g3", "g2"}))

	require.NoError(t, f.dir.Remove(ctx, "p1"))

	require.Eventually(t, func() bool { return f.gcd.Count(discoverytest.OpRemove) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"g3", "g2"}, f.gcd.CallsOf(discoverytest.OpRemove)[0].Gbids)
	_, ok := f.dir.local.Get("p1")
	assert.False(t, ok)
}

func TestRemoveFromGbids(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.dir.Add(ctx, provider("p1", "d", discovery.ScopeGlobal), false, nil))

	assert.Equal(t, errors.ErrCodeUnknownGbid, errors.CodeOf(f.dir.RemoveFromGbids(ctx, "p1", []string{"g9"})))
	require.NoError(t, f.dir.RemoveFromGbids(ctx, "p1", []string{"g2"}))

	require.Eventually(t, func() bool { return f.gcd.Count(discoverytest.OpRemove) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"g2"}, f.gcd.CallsOf(discoverytest.OpRemove)[0].Gbids)
}

func TestRemove_AddRemoveAddKeepsOrder(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	e := provider("p1", "d", discovery.ScopeGlobal)

	require.NoError(t, f.dir.Add(ctx, e, false, nil))
	require.NoError(t, f.dir.Remove(ctx, "p1"))
	require.NoError(t, f.dir.Add(ctx, e, false, nil))

	require.Eventually(t, func() bool {
		return f.gcd.Count(discoverytest.OpAdd) == 2 && f.gcd.Count(discoverytest.OpRemove) == 1
	}, waitFor, tick)
	var ops []string
	for _, c := range f.gcd.Calls() {
		if c.Op != discoverytest.OpRemoveStale {
			ops = append(ops, c.Op)
		}
	}
	assert.Equal(t, []string{discoverytest.OpAdd, discoverytest.OpRemove, discoverytest.OpAdd}, ops)

	_, ok := f.dir.local.Get("p1")
	assert.True(t, ok)
}

func TestRemove_AwaitedAddCleanupPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		remote  error
		cleared bool
	}{
		{"clear-always on success", CleanupAlways, nil, true},
		{"clear-always on failure", CleanupAlways, errors.ConnectionFailed("gcd", nil), true},
		{"clear-on-not-found on success", CleanupOnNotFound, nil, true},
		{"clear-on-not-found when gone", CleanupOnNotFound, errors.NoEntryForParticipant("p1"), true},
		{"clear-on-not-found on failure", CleanupOnNotFound, errors.ConnectionFailed("gcd", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RemoveCleanupPolicy = tt.policy
			f := newFixture(t, cfg)
			ctx := context.Background()
			var removed atomic.Bool
			f.gcd.RemoveFunc = func(context.Context, string, []string) error {
				defer removed.Store(true)
				return tt.remote
			}
			require.NoError(t, f.dir.Add(ctx, provider("p1", "d", discovery.ScopeGlobal), true, nil))

			require.NoError(t, f.dir.Remove(ctx, "p1"))
			require.Eventually(t, removed.Load, waitFor, tick)

			if tt.cleared {
				require.Eventually(t, func() bool {
					_, ok := f.dir.local.Get("p1")
					return !ok
				}, waitFor, tick)
				return
			}
			// one more task through the queue guarantees the remove's Done has run
			require.NoError(t, f.dir.Add(ctx, provider("p2", "d", discovery.ScopeGlobal), true, nil))
			_, ok := f.dir.local.Get("p1")
			assert.True(t, ok)
		})
	}
}

func TestRemove_DoesNotClobberLaterAdd(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	e := provider("p1", "d", discovery.ScopeGlobal)
	require.NoError(t, f.dir.Add(ctx, e, true, nil))

	require.NoError(t, f.dir.Remove(ctx, "p1"))
	e.Qos.Priority = 2
	require.NoError(t, f.dir.Add(ctx, e, true, nil))

	rec, ok := f.dir.local.Get("p1")
	require.True(t, ok)
	assert.Equal(t, int64(2), rec.Entry.Qos.Priority)
}

func TestRemove_QueuedRemoveDoesNotSwallowIdenticalAdd(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.gcd.RemoveFunc = func(context.Context, string, []string) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	}
	e := provider("p1", "d", discovery.ScopeGlobal)
	require.NoError(t, f.dir.Add(ctx, e, true, nil))

	require.NoError(t, f.dir.Remove(ctx, "p1"))
	<-entered
	require.NoError(t, f.dir.Add(ctx, e, false, nil))
	close(release)

	require.Eventually(t, func() bool { return f.gcd.Count(discoverytest.OpAdd) == 2 }, waitFor, tick)
	var ops []string
	for _, c := range f.gcd.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{discoverytest.OpAdd, discoverytest.OpRemove, discoverytest.OpAdd}, ops)
	_, ok := f.dir.local.Get("p1")
	assert.True(t, ok)
}

func TestAdd_AwaitFailureForgetsRegistration(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	f.gcd.AddFunc = func(context.Context, discovery.GlobalDiscoveryEntry, time.Duration, []string) error {
		return errors.ConnectionFailed("gcd", nil)
	}

	require.Error(t, f.dir.Add(ctx, provider("p1", "d", discovery.ScopeGlobal), true, nil))

	_, known := f.dir.AwaitGlobalRegistration("p1")
	assert.False(t, known)
	err := f.dir.RemoveStrict(ctx, "p1")
	assert.Equal(t, errors.ErrCodeNoEntryForParticipant, errors.CodeOf(err))
	assert.Zero(t, f.gcd.Count(discoverytest.OpRemove))
}

func TestAdd_AwaitFailureRestoresEarlierRegistration(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	var fail atomic.Bool
	f.gcd.AddFunc = func(context.Context, discovery.GlobalDiscoveryEntry, time.Duration, []string) error {
		if fail.Load() {
			return errors.ConnectionFailed("gcd", nil)
		}
		return nil
	}
	e := provider("p1", "d", discovery.ScopeGlobal)
	require.NoError(t, f.dir.Add(ctx, e, false, []string{"g1"}))

	fail.Store(true)
	e.Qos.Priority = 3
	require.Error(t, f.dir.Add(ctx, e, true, []string{"g2"}))

	await, known := f.dir.AwaitGlobalRegistration("p1")
	assert.True(t, known)
	assert.False(t, await)

	require.NoError(t, f.dir.Remove(ctx, "p1"))
	require.Eventually(t, func() bool { return f.gcd.Count(discoverytest.OpRemove) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"g1"}, f.gcd.CallsOf(discoverytest.OpRemove)[0].Gbids)
}

func TestAdd_AwaitCallerGoneStillStoresOnSuccess(t *testing.T) {
	f := newFixture(t, testConfig())
	release := make(chan struct{})
	f.gcd.AddFunc = func(context.Context, discovery.GlobalDiscoveryEntry, time.Duration, []string) error {
		<-release
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.dir.Add(ctx, provider("p1", "d", discovery.ScopeGlobal), true, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := f.dir.local.Get("p1")
	assert.False(t, ok)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := f.dir.local.Get("p1")
		return ok
	}, waitFor, tick)
}

func TestLookup_RequiresDomain(t *testing.T) {
	f := newFixture(t, testConfig())

	_, err := f.dir.Lookup(context.Background(), nil, "vehicle/Radio", discovery.DiscoveryQos{}, nil)

	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestLookup_Scopes(t *testing.T) {
	tests := []struct {
		name       string
		scope      discovery.DiscoveryScope
		want       []string
		remoteCall bool
	}{
		{"local only", discovery.LocalOnly, []string{"global-local", "local"}, false},
		{"local then global with local hits", discovery.LocalThenGlobal, []string{"global-local", "local"}, false},
		{"local and global", discovery.LocalAndGlobal, []string{"global-local", "local", "remote"}, true},
		{"global only", discovery.GlobalOnly, []string{"global-local", "remote"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig())
			ctx := context.Background()
			f.gcd.LookupFunc = func(context.Context, []string, string, time.Duration, []string) ([]discovery.GlobalDiscoveryEntry, error) {
				return []discovery.GlobalDiscoveryEntry{
					remoteEntry("remote", "d2", "g1"),
					remoteEntry("global-local", "d", "g1"),
				}, nil
			}
			require.NoError(t, f.dir.Add(ctx, provider("local", "d", discovery.ScopeLocal), true, nil))
			require.NoError(t, f.dir.Add(ctx, provider("global-local", "d", discovery.ScopeGlobal), true, nil))

			got, err := f.dir.Lookup(ctx, []string{"d", "d2"}, "vehicle/Radio", discovery.DiscoveryQos{Scope: tt.scope}, nil)
			require.NoError(t, err)

			assert.ElementsMatch(t, tt.want, pids(got))
			for _, e := range got {
				assert.Equal(t, e.ParticipantID != "remote", e.IsLocal, e.ParticipantID)
			}
			lookups := f.gcd.CallsOf(discoverytest.OpLookup)
			if !tt.remoteCall {
				assert.Empty(t, lookups)
				return
			}
			require.Len(t, lookups, 1)
			assert.Equal(t, []string{"d2"}, lookups[0].Domains)
			assert.Equal(t, known, lookups[0].Gbids)
		})
	}
}

func TestLookup_GlobalOnlyNeverReturnsLocalScope(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.dir.Add(ctx, provider("local", "d", discovery.ScopeLocal), false, nil))

	got, err := f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", discovery.DiscoveryQos{Scope: discovery.GlobalOnly}, nil)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLookup_LocalThenGlobalFallsBackToRemote(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gcd.LookupFunc = func(_ context.Context, domains []string, _ string, _ time.Duration, _ []string) ([]discovery.GlobalDiscoveryEntry, error) {
		return []discovery.GlobalDiscoveryEntry{remoteEntry("remote", domains[0], "g2")}, nil
	}

	got, err := f.dir.Lookup(context.Background(), []string{"d"}, "vehicle/Radio", discovery.DiscoveryQos{}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"remote"}, pids(got))
	assert.False(t, got[0].IsLocal)

	routes := f.routing.Puts()
	require.Len(t, routes, 1)
	assert.Equal(t, "remote", routes[0].ParticipantID)
	assert.Equal(t, "g2", routes[0].Address.BrokerURI)
	assert.True(t, routes[0].GloballyVisible)

	cached, ok := f.dir.cache.LookupParticipant("remote", time.Hour)
	require.True(t, ok)
	assert.Equal(t, "g2", cached.Gbid)
}

func TestLookup_QueriesOnlyMissingDomains(t *testing.T) {
	f := newFixture(t, testConfig())
	f.dir.cache.Insert(remoteEntry("cached", "d1", "g1"), "g1")

	_, err := f.dir.Lookup(context.Background(), []string{"d1", "d2"}, "vehicle/Radio",
		discovery.DiscoveryQos{Scope: discovery.LocalAndGlobal, CacheMaxAge: time.Hour}, nil)
	require.NoError(t, err)

	lookups := f.gcd.CallsOf(discoverytest.OpLookup)
	require.Len(t, lookups, 1)
	assert.Equal(t, []string{"d2"}, lookups[0].Domains)
}

func TestLookup_CacheMaxAge(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Now())
	f := newFixture(t, testConfig(), WithClock(mock))
	f.gcd.LookupFunc = func(context.Context, []string, string, time.Duration, []string) ([]discovery.GlobalDiscoveryEntry, error) {
		return []discovery.GlobalDiscoveryEntry{remoteEntry("remote", "d", "g1")}, nil
	}
	ctx := context.Background()
	qos := discovery.DiscoveryQos{Scope: discovery.GlobalOnly, CacheMaxAge: time.Minute}

	_, err := f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", qos, nil)
	require.NoError(t, err)
	got, err := f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", qos, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"remote"}, pids(got))
	assert.Equal(t, 1, f.gcd.Count(discoverytest.OpLookup))

	mock.Add(2 * time.Minute)
	_, err = f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", qos, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.gcd.Count(discoverytest.OpLookup))
}

func TestLookup_ZeroCacheMaxAgeAlwaysAsksRemote(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Now())
	f := newFixture(t, testConfig(), WithClock(mock))
	f.gcd.LookupFunc = func(context.Context, []string, string, time.Duration, []string) ([]discovery.GlobalDiscoveryEntry, error) {
		return []discovery.GlobalDiscoveryEntry{remoteEntry("remote", "d", "g1")}, nil
	}
	f.gcd.LookupParticipantFunc = func(context.Context, string, time.Duration, []string) (discovery.GlobalDiscoveryEntry, error) {
		return remoteEntry("remote", "d", "g1"), nil
	}
	ctx := context.Background()
	qos := discovery.DiscoveryQos{Scope: discovery.GlobalOnly}

	for range 2 {
		got, err := f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", qos, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"remote"}, pids(got))
	}
	assert.Equal(t, 2, f.gcd.Count(discoverytest.OpLookup))

	for range 2 {
		got, err := f.dir.LookupParticipant(ctx, "remote", qos, nil)
		require.NoError(t, err)
		assert.Equal(t, "remote", got.ParticipantID)
	}
	assert.Equal(t, 2, f.gcd.Count(discoverytest.OpLookupParticipant))
}

func TestLookup_DiscoveryTimeout(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", discovery.DiscoveryQos{DiscoveryTimeout: 3 * time.Second}, nil)
	require.NoError(t, err)
	_, err = f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", discovery.DiscoveryQos{}, nil)
	require.NoError(t, err)

	lookups := f.gcd.CallsOf(discoverytest.OpLookup)
	require.Len(t, lookups, 2)
	assert.Equal(t, 3*time.Second, lookups[0].TTL)
	assert.Equal(t, DefaultDiscoveryTimeout, lookups[1].TTL)
	assert.True(t, lookups[1].HasDeadline)
}

func TestLookup_RemoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		remote error
		code   errors.ErrorCode
	}{
		{"discovery error", errors.NoEntryForSelectedBackends([]string{"g1"}), errors.ErrCodeNoEntryForSelectedBackends},
		{"timeout", context.DeadlineExceeded, errors.ErrCodeTimeout},
		{"runtime failure", errors.ConnectionFailed("gcd", nil), errors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig())
			f.gcd.LookupFunc = func(context.Context, []string, string, time.Duration, []string) ([]discovery.GlobalDiscoveryEntry, error) {
				return nil, tt.remote
			}

			_, err := f.dir.Lookup(context.Background(), []string{"d"}, "vehicle/Radio", discovery.DiscoveryQos{}, nil)

			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestLookup_PartialResultOnRemoteFailure(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	f.gcd.LookupFunc = func(context.Context, []string, string, time.Duration, []string) ([]discovery.GlobalDiscoveryEntry, error) {
		return nil, errors.ConnectionFailed("gcd", nil)
	}
	require.NoError(t, f.dir.Add(ctx, provider("local", "d1", discovery.ScopeLocal), false, nil))

	got, err := f.dir.Lookup(ctx, []string{"d1", "d2"}, "vehicle/Radio", discovery.DiscoveryQos{Scope: discovery.LocalAndGlobal}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, pids(got))
}

func TestLookup_SkipsUnusableRemoteEntries(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	bad := remoteEntry("bad", "d", "g1")
	bad.Address = `{"_typeName":"WebSocketAddress"}`
	dup := remoteEntry("remote", "d", "g2")
	f.gcd.LookupFunc = func(context.Context, []string, string, time.Duration, []string) ([]discovery.GlobalDiscoveryEntry, error) {
		return []discovery.GlobalDiscoveryEntry{remoteEntry("remote", "d", "g1"), dup, bad}, nil
	}

	got, err := f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", discovery.DiscoveryQos{Scope: discovery.GlobalOnly}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"remote"}, pids(got))
	assert.Equal(t, 1, f.dir.cache.Len())
}

func TestLookup_OnChangeFilter(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	onChange := provider("on-change", "d", discovery.ScopeLocal)
	onChange.Qos.SupportsOnChangeSubscriptions = true
	require.NoError(t, f.dir.Add(ctx, onChange, false, nil))
	require.NoError(t, f.dir.Add(ctx, provider("plain", "d", discovery.ScopeLocal), false, nil))

	got, err := f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio",
		discovery.DiscoveryQos{Scope: discovery.LocalOnly, ProviderMustSupportOnChange: true}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"on-change"}, pids(got))
	assert.Equal(t, []string{"on-change"}, f.routing.Increments())
}

func TestLookup_CachedEntriesOfOtherGbidsAreFiltered(t *testing.T) {
	f := newFixture(t, testConfig())
	f.dir.cache.Insert(remoteEntry("cached", "d", "g2"), "g2")

	_, err := f.dir.Lookup(context.Background(), []string{"d"}, "vehicle/Radio",
		discovery.DiscoveryQos{Scope: discovery.GlobalOnly, CacheMaxAge: time.Hour}, []string{"g1"})

	assert.Equal(t, errors.ErrCodeNoEntryForSelectedBackends, errors.CodeOf(err))
	lookups := f.gcd.CallsOf(discoverytest.OpLookup)
	require.Len(t, lookups, 1)
	assert.Equal(t, []string{"g1"}, lookups[0].Gbids)
}

// A provider registered in g2 only, looked up from a node that selects g1
// or g2 explicitly.
func TestThreeBackendScenario(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.dir.Add(ctx, provider("p1", "d", discovery.ScopeGlobal), true, []string{"g2"}))

	_, err := f.dir.LookupParticipant(ctx, "p1", discovery.DiscoveryQos{}, []string{"g1"})
	assert.Equal(t, errors.ErrCodeNoEntryForSelectedBackends, errors.CodeOf(err))

	got, err := f.dir.LookupParticipant(ctx, "p1", discovery.DiscoveryQos{}, []string{"g2"})
	require.NoError(t, err)
	assert.True(t, got.IsLocal)

	_, err = f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", discovery.DiscoveryQos{Scope: discovery.GlobalOnly}, []string{"g1"})
	assert.Equal(t, errors.ErrCodeNoEntryForSelectedBackends, errors.CodeOf(err))

	all, err := f.dir.Lookup(ctx, []string{"d"}, "vehicle/Radio", discovery.DiscoveryQos{Scope: discovery.GlobalOnly}, []string{"g2", "g3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, pids(all))

	assert.Zero(t, f.gcd.Count(discoverytest.OpLookupParticipant))
}

func TestLookupParticipant(t *testing.T) {
	t.Run("local only miss", func(t *testing.T) {
		f := newFixture(t, testConfig())

		_, err := f.dir.LookupParticipant(context.Background(), "p1", discovery.DiscoveryQos{Scope: discovery.LocalOnly}, nil)

		assert.Equal(t, errors.ErrCodeNoEntryForParticipant, errors.CodeOf(err))
		assert.Zero(t, f.gcd.Count(discoverytest.OpLookupParticipant))
	})

	t.Run("remote hit is cached", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.gcd.LookupParticipantFunc = func(_ context.Context, pid string, _ time.Duration, _ []string) (discovery.GlobalDiscoveryEntry, error) {
			return remoteEntry(pid, "d", "g3"), nil
		}
		ctx := context.Background()
		qos := discovery.DiscoveryQos{CacheMaxAge: time.Hour}

		got, err := f.dir.LookupParticipant(ctx, "p1", qos, nil)
		require.NoError(t, err)
		assert.False(t, got.IsLocal)

		_, err = f.dir.LookupParticipant(ctx, "p1", qos, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, f.gcd.Count(discoverytest.OpLookupParticipant))
		assert.Len(t, f.routing.Puts(), 2)
	})

	t.Run("empty remote result", func(t *testing.T) {
		f := newFixture(t, testConfig())

		_, err := f.dir.LookupParticipant(context.Background(), "p1", discovery.DiscoveryQos{}, nil)

		assert.Equal(t, errors.ErrCodeNoEntryForParticipant, errors.CodeOf(err))
	})

	t.Run("remote runtime failure", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.gcd.LookupParticipantFunc = func(context.Context, string, time.Duration, []string) (discovery.GlobalDiscoveryEntry, error) {
			return discovery.GlobalDiscoveryEntry{}, errors.ConnectionFailed("gcd", nil)
		}

		_, err := f.dir.LookupParticipant(context.Background(), "p1", discovery.DiscoveryQos{}, nil)

		assert.Equal(t, errors.ErrCodeInternal, errors.CodeOf(err))
	})

	t.Run("local entry increments reference count", func(t *testing.T) {
		f := newFixture(t, testConfig())
		ctx := context.Background()
		require.NoError(t, f.dir.Add(ctx, provider("p1", "d", discovery.ScopeLocal), false, nil))

		got, err := f.dir.LookupParticipant(ctx, "p1", discovery.DiscoveryQos{}, nil)

		require.NoError(t, err)
		assert.True(t, got.IsLocal)
		assert.Equal(t, []string{"p1"}, f.routing.Increments())
	})
}

func TestTouch_GroupsByFirstGbid(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.dir.Add(ctx, provider("a", "d", discovery.ScopeGlobal), true, []string{"g2", "g1"}))
	require.NoError(t, f.dir.Add(ctx, provider("b", "d", discovery.ScopeGlobal), true, []string{"g1"}))
	require.NoError(t, f.dir.Add(ctx, provider("c", "d", discovery.ScopeGlobal), true, []string{"g2"}))
	require.NoError(t, f.dir.Add(ctx, provider("l", "d", discovery.ScopeLocal), true, nil))

	f.dir.touch(ctx)

	touched := make(map[string][]string)
	for _, c := range f.gcd.CallsOf(discoverytest.OpTouch) {
		assert.Equal(t, ccID, c.ClusterControllerID)
		touched[c.Gbid] = c.ParticipantIDs
	}
	assert.Equal(t, map[string][]string{"g1": {"b"}, "g2": {"a", "c"}}, touched)
}

func TestTouch_RefreshesCacheOnSuccessOnly(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Now())
	f := newFixture(t, testConfig(), WithClock(mock))
	ctx := context.Background()
	require.NoError(t, f.dir.Add(ctx, provider("ok", "d", discovery.ScopeGlobal), true, []string{"g1"}))
	require.NoError(t, f.dir.Add(ctx, provider("fail", "d", discovery.ScopeGlobal), true, []string{"g2"}))
	stale := func(pid string) discovery.GlobalDiscoveryEntry {
		e := remoteEntry(pid, "d", "g1")
		e.LastSeenDateMs = 1
		return e
	}
	f.dir.cache.Insert(stale("ok"), "g1")
	f.dir.cache.Insert(stale("fail"), "g2")
	f.gcd.TouchFunc = func(_ context.Context, _ string, _ []string, gbid string) error {
		if gbid == "g2" {
			return errors.ConnectionFailed("gcd", nil)
		}
		return nil
	}

	mock.Add(time.Minute)
	f.dir.touch(ctx)

	ok, _ := f.dir.cache.LookupParticipant("ok", time.Hour)
	assert.Equal(t, mock.Now().UnixMilli(), ok.Entry.LastSeenDateMs)
	fail, _ := f.dir.cache.LookupParticipant("fail", time.Hour)
	assert.Equal(t, int64(1), fail.Entry.LastSeenDateMs)

	rec, _ := f.dir.local.Get("fail")
	assert.Equal(t, mock.Now().UnixMilli(), rec.Entry.LastSeenDateMs)
}

func TestReAdd_SubmitsGlobalEntries(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.dir.Add(ctx, provider("g", "d", discovery.ScopeGlobal), true, []string{"g3"}))
	require.NoError(t, f.dir.Add(ctx, provider("l", "d", discovery.ScopeLocal), true, nil))

	f.dir.reAdd(ctx)

	require.Eventually(t, func() bool { return f.gcd.Count(discoverytest.OpAdd) == 2 }, waitFor, tick)
	readd := f.gcd.CallsOf(discoverytest.OpAdd)[1]
	assert.Equal(t, "g", readd.Entry.ParticipantID)
	assert.Equal(t, []string{"g3"}, readd.Gbids)
	assert.Equal(t, "g3", discovery.GbidOf(readd.Entry.Address, ""))
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Now())
	var localExpired, cacheExpired []string
	f := newFixture(t, testConfig(),
		WithClock(mock),
		WithLocalExpiredHook(func(r store.Record) { localExpired = append(localExpired, r.Entry.ParticipantID) }),
		WithCacheExpiredHook(func(r store.CachedRecord) { cacheExpired = append(cacheExpired, r.Entry.ParticipantID) }),
	)
	ctx := context.Background()

	short := provider("short", "d", discovery.ScopeGlobal)
	short.ExpiryDateMs = mock.Now().Add(time.Minute).UnixMilli()
	require.NoError(t, f.dir.Add(ctx, short, false, nil))
	require.NoError(t, f.dir.Add(ctx, provider("long", "d", discovery.ScopeLocal), false, nil))
	cached := remoteEntry("cached", "d", "g1")
	cached.ExpiryDateMs = mock.Now().Add(time.Minute).UnixMilli()
	f.dir.cache.Insert(cached, "g1")

	mock.Add(2 * time.Minute)
	f.dir.sweep(ctx)

	assert.Equal(t, []string{"short"}, localExpired)
	assert.Equal(t, []string{"cached"}, cacheExpired)
	assert.ElementsMatch(t, []string{"short", "cached"}, f.routing.Removed())
	_, ok := f.dir.AwaitGlobalRegistration("short")
	assert.False(t, ok)
	_, ok = f.dir.local.Get("long")
	assert.True(t, ok)
}

func TestLoops_RunOnTicks(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Now())
	cfg := testConfig()
	cfg.FreshnessUpdateInterval = time.Minute
	f := newFixture(t, cfg, WithClock(mock))
	require.NoError(t, f.dir.Add(context.Background(), provider("p1", "d", discovery.ScopeGlobal), false, nil))

	require.Eventually(t, func() bool {
		mock.Add(time.Minute)
		return f.gcd.Count(discoverytest.OpTouch) > 0
	}, waitFor, tick)
}

func TestReclaimer_RemovesStaleRegistrationsPerGbid(t *testing.T) {
	f := newFixture(t, testConfig())

	require.Eventually(t, func() bool { return f.gcd.Count(discoverytest.OpRemoveStale) == len(known) }, waitFor, tick)
	var gbids []string
	for _, c := range f.gcd.CallsOf(discoverytest.OpRemoveStale) {
		assert.Equal(t, ccID, c.ClusterControllerID)
		assert.Equal(t, f.dir.startedAt.UnixMilli(), c.MaxLastSeenDateMs)
		gbids = append(gbids, c.Gbid)
	}
	assert.ElementsMatch(t, known, gbids)
}

func TestReclaimer_Retries(t *testing.T) {
	gcd := discoverytest.NewGlobalDirectory()
	var g1Attempts, g2Attempts atomic.Int32
	gcd.RemoveStaleFunc = func(_ context.Context, _ string, _ int64, gbid string) error {
		switch gbid {
		case "g1":
			if g1Attempts.Add(1) < 3 {
				return errors.ConnectionFailed("gcd", nil)
			}
			return nil
		case "g2":
			g2Attempts.Add(1)
			return errors.UnsupportedAddress(gbid)
		}
		return nil
	}
	d, err := New(testConfig(), Deps{GCD: gcd, Routing: discoverytest.NewRoutingTable()})
	require.NoError(t, err)

	d.reclaimStale(context.Background())

	assert.Equal(t, int32(3), g1Attempts.Load())
	assert.Equal(t, int32(1), g2Attempts.Load())
}

func TestLifecycle(t *testing.T) {
	d, err := New(testConfig(), Deps{GCD: discoverytest.NewGlobalDirectory(), Routing: discoverytest.NewRoutingTable()})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "directory", d.Name())
	assert.Equal(t, component.StatusUnhealthy, d.Health(ctx).Status)

	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Start(ctx))
	assert.Equal(t, component.StatusHealthy, d.Health(ctx).Status)

	require.NoError(t, d.Stop(ctx))
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, errors.ErrCodeShutdown, errors.CodeOf(d.Start(ctx)))
	assert.Equal(t, errors.ErrCodeShutdown, errors.CodeOf(d.Add(ctx, provider("p1", "d", discovery.ScopeGlobal), false, nil)))
}
