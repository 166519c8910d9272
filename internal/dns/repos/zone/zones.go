package zone

import (
	"strings"

	"github.com/hawknest/rrdns/internal/dns/domain"
)

// Zones is an immutable snapshot of every loaded zone, keyed by apex. A
// reload builds a new Zones value and the resolver swaps its reference
// wholesale; concurrent readers never need to lock.
type Zones struct {
	byApex map[string]*Zone
}

// NewZones returns an empty Zones collection.
func NewZones() *Zones {
	return &Zones{byApex: make(map[string]*Zone)}
}

// Put inserts or replaces the zone for its apex.
func (zs *Zones) Put(z *Zone) {
	zs.byApex[string(z.Apex)] = z
}

// Remove deletes the zone for the given apex, if present.
func (zs *Zones) Remove(apex string) {
	delete(zs.byApex, string(domain.FromDottedString(apex)))
}

// Lookup returns the zone whose apex is the longest suffix of name.
func (zs *Zones) Lookup(name string) (*Zone, bool) {
	canon := string(domain.FromDottedString(name))
	var best *Zone
	bestLen := -1
	for apex, z := range zs.byApex {
		if canon != apex && !strings.HasSuffix(canon, "."+apex) {
			continue
		}
		if len(apex) > bestLen {
			best = z
			bestLen = len(apex)
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// Apexes returns every zone apex currently loaded.
func (zs *Zones) Apexes() []string {
	out := make([]string, 0, len(zs.byApex))
	for apex := range zs.byApex {
		out = append(out, apex)
	}
	return out
}

// Count returns the number of zones in the snapshot.
func (zs *Zones) Count() int {
	return len(zs.byApex)
}

// FindRecords is a convenience lookup for callers (such as the CNAME alias
// chaser) that only need a flat "does this exact (name, type) exist"
// answer, ignoring the richer delegation/CNAME/name-error distinctions that
// resolveLocal consumes directly via Lookup + Zone.Resolve.
func (zs *Zones) FindRecords(q domain.Question) ([]domain.ResourceRecord, bool) {
	z, ok := zs.Lookup(q.Name)
	if !ok {
		return nil, false
	}
	res := z.Resolve(q.Name, q.Type)
	if res.Kind != ZoneAnswer || len(res.Answer) == 0 {
		return nil, false
	}
	return res.Answer, true
}
