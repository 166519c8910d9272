package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawknest/rrdns/internal/dns/common/rrdata"
	"github.com/hawknest/rrdns/internal/dns/domain"
)

func mustRR(t *testing.T, name string, rrtype domain.RRType, ttl uint32, text string) domain.ResourceRecord {
	t.Helper()
	data, err := rrdata.Encode(rrtype, text)
	require.NoError(t, err)
	rr, err := domain.NewAuthoritativeResourceRecord(name, rrtype, domain.RRClassIN, ttl, data, text)
	require.NoError(t, err)
	return rr
}

func TestBuildZones_InstallsSOAFirstAndRaisesTTL(t *testing.T) {
	soa := mustRR(t, "example.", domain.RRTypeSOA, 60, "ns1.example. hostmaster.example. 1 7200 3600 1209600 3600")
	a := mustRR(t, "www.example.", domain.RRTypeA, 10, "192.0.2.1")

	zones, err := BuildZones(map[string][]domain.ResourceRecord{
		"example.": {a, soa},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, zones.Count())

	z, ok := zones.Lookup("www.example.")
	require.True(t, ok)
	res := z.Resolve("www.example.", domain.RRTypeA)
	require.Equal(t, ZoneAnswer, res.Kind)
	require.Len(t, res.Answer, 1)
	assert.Equal(t, uint32(3600), res.Answer[0].TTL())
}

func TestBuildZones_RoutesWildcardOwners(t *testing.T) {
	a := mustRR(t, "*.example.", domain.RRTypeA, 300, "192.0.2.9")

	zones, err := BuildZones(map[string][]domain.ResourceRecord{
		"example.": {a},
	})
	require.NoError(t, err)

	z, ok := zones.Lookup("anything.example.")
	require.True(t, ok)
	res := z.Resolve("anything.example.", domain.RRTypeA)
	require.Equal(t, ZoneAnswer, res.Kind)
	require.Len(t, res.Answer, 1)
	assert.Equal(t, "192.0.2.9", res.Answer[0].Text)
}

func TestBuildZones_IndependentZones(t *testing.T) {
	a1 := mustRR(t, "a.one.", domain.RRTypeA, 300, "192.0.2.1")
	a2 := mustRR(t, "b.two.", domain.RRTypeA, 300, "192.0.2.2")

	zones, err := BuildZones(map[string][]domain.ResourceRecord{
		"one.": {a1},
		"two.": {a2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, zones.Count())
	assert.ElementsMatch(t, []string{"one.", "two."}, zones.Apexes())
}
