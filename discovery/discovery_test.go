package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() DiscoveryEntry {
	return DiscoveryEntry{
		ProviderVersion: Version{Major: 47, Minor: 11},
		Domain:          "vehicle",
		InterfaceName:   "radio",
		ParticipantID:   "p1",
		Qos: ProviderQos{
			CustomParameters: []CustomParameter{{Name: "k", Value: "v"}},
			Priority:         2,
			Scope:            ScopeGlobal,
		},
		LastSeenDateMs: 100,
		ExpiryDateMs:   200,
		PublicKeyID:    "key",
	}
}

func TestEqualIgnoringTimestamps(t *testing.T) {
	a := testEntry()
	b := testEntry()
	b.LastSeenDateMs = 5000
	b.ExpiryDateMs = 9000
	assert.True(t, a.EqualIgnoringTimestamps(b))

	c := testEntry()
	c.Qos.CustomParameters[0].Value = "other"
	assert.False(t, a.EqualIgnoringTimestamps(c))

	d := testEntry()
	d.ProviderVersion.Minor = 12
	assert.False(t, a.EqualIgnoringTimestamps(d))

	g1 := GlobalDiscoveryEntry{DiscoveryEntry: a, Address: "x"}
	g2 := GlobalDiscoveryEntry{DiscoveryEntry: b, Address: "y"}
	assert.False(t, g1.EqualIgnoringTimestamps(g2))
	g2.Address = "x"
	assert.True(t, g1.EqualIgnoringTimestamps(g2))
}

func TestCloneDoesNotShareParameters(t *testing.T) {
	a := testEntry()
	b := a.Clone()
	b.Qos.CustomParameters[0].Name = "changed"
	assert.Equal(t, "k", a.Qos.CustomParameters[0].Name)
}

func TestIsExpired(t *testing.T) {
	e := testEntry()
	assert.False(t, e.IsExpired(200))
	assert.True(t, e.IsExpired(201))
}

func TestProviderScopeText(t *testing.T) {
	b, err := json.Marshal(testEntry())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"scope":"GLOBAL"`)

	var e DiscoveryEntry
	require.NoError(t, json.Unmarshal([]byte(`{"participantId":"p","qos":{"scope":"LOCAL"}}`), &e))
	assert.Equal(t, ScopeLocal, e.Qos.Scope)

	err = json.Unmarshal([]byte(`{"qos":{"scope":"NOWHERE"}}`), &e)
	assert.Error(t, err)
}

func TestParseDiscoveryScope(t *testing.T) {
	for _, name := range DiscoveryScopeNames() {
		scope, err := ParseDiscoveryScope(name)
		require.NoError(t, err)
		assert.Equal(t, name, scope.String())
	}

	scope, err := ParseDiscoveryScope("")
	require.NoError(t, err)
	assert.Equal(t, LocalThenGlobal, scope)

	_, err = ParseDiscoveryScope("EVERYWHERE")
	assert.Error(t, err)
}

func TestAddressCodec(t *testing.T) {
	addr := Address{BrokerURI: "defaultgbid", Topic: "cc/topic"}
	s, err := addr.Encode()
	require.NoError(t, err)
	assert.Contains(t, s, `"_typeName":"MqttAddress"`)

	decoded, err := DecodeAddress(s)
	require.NoError(t, err)
	assert.Equal(t, addr, decoded)

	assert.Equal(t, "defaultgbid", GbidOf(s, "fallback"))
	assert.Equal(t, "fallback", GbidOf(`{"_typeName":"WebSocketAddress","host":"h"}`, "fallback"))
	assert.Equal(t, "fallback", GbidOf("not json", "fallback"))

	rewritten := WithGbid(s, "other")
	assert.Equal(t, "other", GbidOf(rewritten, "fallback"))
	assert.Equal(t, "not json", WithGbid("not json", "other"))
}
