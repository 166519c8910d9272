// Package zone implements the apex-indexed zone tree: per-zone name
// resolution with wildcard and delegation semantics, SOA-governed
// authority, and a Zones collection keyed by longest-apex-suffix lookup.
package zone

import (
	"fmt"
	"strings"

	"github.com/hawknest/rrdns/internal/dns/common/rrdata"
	"github.com/hawknest/rrdns/internal/dns/domain"
)

// ZoneResultKind tags which of the four resolve outcomes a ZoneResult carries.
type ZoneResultKind int

const (
	ZoneAnswer ZoneResultKind = iota
	ZoneCNAME
	ZoneDelegation
	ZoneNameError
)

// ZoneResult is the outcome of resolving a name against a single zone.
type ZoneResult struct {
	Kind        ZoneResultKind
	Answer      []domain.ResourceRecord // ZoneAnswer: the matching RRset (possibly empty: NODATA)
	CNAMETarget string                  // ZoneCNAME: the target name to chase
	CNAMERecord domain.ResourceRecord   // ZoneCNAME: the CNAME RR itself
	Delegation  []domain.ResourceRecord // ZoneDelegation: the NS RRset
}

// zoneNode is one node of the per-zone tree, addressed by the fully
// qualified name it represents.
type zoneNode struct {
	name     string
	exact    map[domain.RRType][]domain.ResourceRecord
	wildcard map[domain.RRType][]domain.ResourceRecord
	children map[string]*zoneNode
}

func newZoneNode(name string) *zoneNode {
	return &zoneNode{name: name, children: make(map[string]*zoneNode)}
}

// Zone is a single apex-rooted tree of records, optionally authoritative
// (carrying an SOA). All insertions into an authoritative zone have their
// TTL raised to at least soa.Minimum.
type Zone struct {
	Apex domain.DomainName
	SOA  *domain.ResourceRecord
	root *zoneNode
}

// NewZone constructs an empty zone for the given apex.
func NewZone(apex string) *Zone {
	canon := domain.FromDottedString(apex)
	return &Zone{Apex: canon, root: newZoneNode(string(canon))}
}

// IsAuthoritative reports whether the zone carries an SOA.
func (z *Zone) IsAuthoritative() bool {
	return z.SOA != nil
}

// effectiveTTL raises ttl to the zone's SOA minimum when authoritative.
func (z *Zone) effectiveTTL(ttl uint32) uint32 {
	if z.SOA == nil {
		return ttl
	}
	fields, err := rrdata.DecodeSOAFields(z.SOA.Data)
	if err != nil {
		return ttl
	}
	if fields.Minimum > ttl {
		return fields.Minimum
	}
	return ttl
}

// SetSOA installs rr as the zone's SOA record (z.SOA), owned by the apex with
// TTL = SOA.Minimum, and marks the zone authoritative. The SOA is not added
// to the apex node's record set, so Resolve of the apex for type SOA finds
// no SOA record there.
func (z *Zone) SetSOA(rr domain.ResourceRecord) error {
	fields, err := rrdata.DecodeSOAFields(rr.Data)
	if err != nil {
		return fmt.Errorf("invalid SOA rdata for zone %s: %w", z.Apex, err)
	}
	soaRR, err := domain.NewAuthoritativeResourceRecord(string(z.Apex), domain.RRTypeSOA, rr.Class, fields.Minimum, rr.Data, rr.Text)
	if err != nil {
		return err
	}
	z.SOA = &soaRR
	return nil
}

// Insert adds rr as an exact record at its owner name, which must be a
// subdomain of (or equal to) the apex.
func (z *Zone) Insert(rr domain.ResourceRecord) error {
	return z.insertInto(rr, false)
}

// InsertWildcard adds rr as a wildcard record at the node denoted by
// stripping the leading "*." label from rr.Name.
func (z *Zone) InsertWildcard(rr domain.ResourceRecord) error {
	return z.insertInto(rr, true)
}

func (z *Zone) insertInto(rr domain.ResourceRecord, wildcard bool) error {
	name := domain.DomainName(rr.Name)
	if !name.IsSubdomainOf(z.Apex) {
		return fmt.Errorf("record %s is not a subdomain of zone apex %s", rr.Name, z.Apex)
	}

	owner := rr.Name
	if wildcard {
		owner = strings.TrimPrefix(rr.Name, "*.")
	}
	labels := domain.DomainName(owner).TrimSuffix(z.Apex)

	node := z.root
	for _, label := range labels {
		child, ok := node.children[label]
		if !ok {
			child = newZoneNode(label + "." + node.name)
			node.children[label] = child
		}
		node = child
	}

	ttl := z.effectiveTTL(rr.TTL())
	raised, err := domain.NewAuthoritativeResourceRecord(owner, rr.Type, rr.Class, ttl, rr.Data, rr.Text)
	if err != nil {
		return err
	}

	if wildcard {
		if node.wildcard == nil {
			node.wildcard = make(map[domain.RRType][]domain.ResourceRecord)
		}
		node.wildcard[rr.Type] = appendDedup(node.wildcard[rr.Type], raised)
	} else {
		if node.exact == nil {
			node.exact = make(map[domain.RRType][]domain.ResourceRecord)
		}
		node.exact[rr.Type] = appendDedup(node.exact[rr.Type], raised)
	}
	return nil
}

// appendDedup appends rr unless an entry with identical rdata already exists.
func appendDedup(set []domain.ResourceRecord, rr domain.ResourceRecord) []domain.ResourceRecord {
	for i, existing := range set {
		if string(existing.Data) == string(rr.Data) {
			set[i] = rr
			return set
		}
	}
	return append(set, rr)
}

// Merge folds other into z. The two zones must share an apex. Record sets
// are combined de-duplicating by (rtype, rdata); if both sides carry an SOA,
// other's SOA wins.
func (z *Zone) Merge(other *Zone) error {
	if z.Apex != other.Apex {
		return fmt.Errorf("cannot merge zone %s into %s: apex mismatch", other.Apex, z.Apex)
	}
	if other.SOA != nil {
		z.SOA = other.SOA
	}
	mergeNode(z.root, other.root)
	return nil
}

func mergeNode(dst, src *zoneNode) {
	for rtype, rrs := range src.exact {
		if dst.exact == nil {
			dst.exact = make(map[domain.RRType][]domain.ResourceRecord)
		}
		for _, rr := range rrs {
			dst.exact[rtype] = appendDedup(dst.exact[rtype], rr)
		}
	}
	for rtype, rrs := range src.wildcard {
		if dst.wildcard == nil {
			dst.wildcard = make(map[domain.RRType][]domain.ResourceRecord)
		}
		for _, rr := range rrs {
			dst.wildcard[rtype] = appendDedup(dst.wildcard[rtype], rr)
		}
	}
	for label, child := range src.children {
		dstChild, ok := dst.children[label]
		if !ok {
			dstChild = newZoneNode(child.name)
			dst.children[label] = dstChild
		}
		mergeNode(dstChild, child)
	}
}

// Resolve implements the single-zone resolution algorithm: strip the apex,
// descend the tree consuming labels from the tail, and apply the terminal
// decision at an exact match, a synthesized wildcard match, or bail out to
// delegation/name-error when neither exists. name must be a subdomain of the
// apex (the caller, Zones.Lookup, guarantees this).
func (z *Zone) Resolve(name string, qtype domain.RRType) ZoneResult {
	labels := domain.DomainName(name).TrimSuffix(z.Apex)

	node := z.root
	for _, label := range labels {
		child, ok := node.children[label]
		if ok {
			node = child
			continue
		}
		if node.wildcard != nil {
			return z.terminalDecision(node.wildcard, name, qtype)
		}
		if nsRRs, hasNS := node.exact[domain.RRTypeNS]; hasNS && len(nsRRs) > 0 {
			return ZoneResult{Kind: ZoneDelegation, Delegation: nsRRs}
		}
		return ZoneResult{Kind: ZoneNameError}
	}
	return z.terminalDecision(node.exact, name, qtype)
}

// terminalDecision applies §4.1's terminal decision to the exact or
// synthesized wildcard record set R found for the queried name n.
func (z *Zone) terminalDecision(r map[domain.RRType][]domain.ResourceRecord, n string, qtype domain.RRType) ZoneResult {
	if qtype != domain.RRTypeNS {
		if ns, ok := r[domain.RRTypeNS]; ok && len(ns) > 0 {
			rewritten := make([]domain.ResourceRecord, len(ns))
			for i, rr := range ns {
				rewritten[i] = rewriteOwner(rr, n)
			}
			return ZoneResult{Kind: ZoneDelegation, Delegation: rewritten}
		}
	}
	if qtype != domain.RRTypeCNAME && qtype != domain.RRTypeANY {
		if cn, ok := r[domain.RRTypeCNAME]; ok && len(cn) > 0 {
			rr := rewriteOwner(cn[0], n)
			return ZoneResult{Kind: ZoneCNAME, CNAMETarget: strings.TrimSpace(rr.Text), CNAMERecord: rr}
		}
	}
	if qtype == domain.RRTypeANY {
		var flat []domain.ResourceRecord
		for _, rrs := range r {
			for _, rr := range rrs {
				flat = append(flat, rewriteOwner(rr, n))
			}
		}
		return ZoneResult{Kind: ZoneAnswer, Answer: flat}
	}
	rrs := r[qtype]
	rewritten := make([]domain.ResourceRecord, len(rrs))
	for i, rr := range rrs {
		rewritten[i] = rewriteOwner(rr, n)
	}
	return ZoneResult{Kind: ZoneAnswer, Answer: rewritten}
}

// rewriteOwner returns rr with its owner name replaced by n, used when a
// wildcard match synthesizes the queried name onto the node's stored records.
func rewriteOwner(rr domain.ResourceRecord, n string) domain.ResourceRecord {
	if rr.Name == n {
		return rr
	}
	out, err := domain.NewAuthoritativeResourceRecord(n, rr.Type, rr.Class, rr.TTL(), rr.Data, rr.Text)
	if err != nil {
		return rr
	}
	return out
}
