package zone

import (
	"fmt"
	"strings"

	"github.com/hawknest/rrdns/internal/dns/domain"
)

// BuildZones converts the flat, apex-keyed record lists produced by
// LoadZoneDirectory into a Zones snapshot of apex-indexed trees: each
// zone's SOA (if present) is installed first so every other record's TTL is
// raised to the SOA minimum on insertion, and owner names starting with
// "*." are routed to InsertWildcard rather than Insert.
func BuildZones(zoneRecords map[string][]domain.ResourceRecord) (*Zones, error) {
	zones := NewZones()
	for apex, records := range zoneRecords {
		z := NewZone(apex)

		for _, rr := range records {
			if rr.Type == domain.RRTypeSOA {
				if err := z.SetSOA(rr); err != nil {
					return nil, fmt.Errorf("zone %s: %w", apex, err)
				}
			}
		}

		for _, rr := range records {
			if rr.Type == domain.RRTypeSOA {
				continue
			}
			var err error
			if strings.HasPrefix(rr.Name, "*.") {
				err = z.InsertWildcard(rr)
			} else {
				err = z.Insert(rr)
			}
			if err != nil {
				return nil, fmt.Errorf("zone %s: %w", apex, err)
			}
		}

		zones.Put(z)
	}
	return zones, nil
}
