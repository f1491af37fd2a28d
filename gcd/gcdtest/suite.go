// Package gcdtest holds a conformance suite shared by the gcd storages.
package gcdtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/gcd"
)

// Record returns a record for participantID registered by clusterControllerID.
func Record(participantID, clusterControllerID, gbid string) gcd.Record {
	return gcd.Record{
		Entry: discovery.GlobalDiscoveryEntry{
			DiscoveryEntry: discovery.DiscoveryEntry{
				ProviderVersion: discovery.Version{Major: 1, Minor: 2},
				Domain:          "d",
				InterfaceName:   "vehicle/Radio",
				ParticipantID:   participantID,
				Qos:             discovery.ProviderQos{Priority: 3, Scope: discovery.ScopeGlobal},
				LastSeenDateMs:  1000,
				ExpiryDateMs:    5000,
			},
			Address: discovery.Address{BrokerURI: gbid, Topic: clusterControllerID}.MustEncode(),
		},
		ClusterControllerID: clusterControllerID,
	}
}

// RunStorage checks the Storage contract against storages made by newStorage.
func RunStorage(t *testing.T, newStorage func(t *testing.T) gcd.Storage) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		s := newStorage(t)
		want := Record("p1", "cc1", "g1")
		require.NoError(t, s.Put(ctx, "g1", want))

		got, ok, err := s.Get(ctx, "g1", "p1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)

		_, ok, err = s.Get(ctx, "g2", "p1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put replaces", func(t *testing.T) {
		s := newStorage(t)
		r := Record("p1", "cc1", "g1")
		require.NoError(t, s.Put(ctx, "g1", r))
		r.Entry.LastSeenDateMs = 2000
		require.NoError(t, s.Put(ctx, "g1", r))

		records, err := s.List(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(2000), records[0].Entry.LastSeenDateMs)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.Put(ctx, "g1", Record("p1", "cc1", "g1")))

		ok, err := s.Delete(ctx, "g1", "p1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Delete(ctx, "g1", "p1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list is per gbid", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.Put(ctx, "g1", Record("p1", "cc1", "g1")))
		require.NoError(t, s.Put(ctx, "g1", Record("p2", "cc1", "g1")))
		require.NoError(t, s.Put(ctx, "g2", Record("p3", "cc1", "g2")))

		records, err := s.List(ctx, "g1")
		require.NoError(t, err)
		var ids []string
		for _, r := range records {
			ids = append(ids, r.Entry.ParticipantID)
		}
		assert.ElementsMatch(t, []string{"p1", "p2"}, ids)

		empty, err := s.List(ctx, "g3")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStorage(t).Ping(ctx))
	})
}
