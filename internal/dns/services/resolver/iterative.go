package resolver

import (
	"context"
	"net"
	"sort"
	"strings"

	"github.com/hawknest/rrdns/internal/dns/domain"
)

// iterativeKind tags which variant of §4.4.2's response-interpretation
// outcome a candidate (or bootstrap) response produced.
type iterativeKind int

const (
	iterativeNone iterativeKind = iota
	iterativeAnswer
	iterativeCNAME
	iterativeDelegation
)

// iterativeOutcome is the result of interpreting one validated upstream
// response against the question in flight and the candidate set it came
// from. answer carries whatever RRs should be cached and/or folded into the
// caller's result, depending on kind.
type iterativeOutcome struct {
	kind        iterativeKind
	answer      []domain.ResourceRecord
	cnameTarget string
	delegation  *domain.Nameservers
	soa         *domain.ResourceRecord
}

// validateRecursiveResponse implements §4.4.1. The transaction-id check is
// already enforced by the codec: DecodeResponse errors out on an ID
// mismatch before a response ever reaches here, so only the remaining
// header and question-echo checks are performed.
func validateRecursiveResponse(query domain.Question, resp domain.DNSResponse) bool {
	if !resp.IsResponse {
		return false
	}
	if resp.Opcode != 0 {
		return false
	}
	if resp.Truncated {
		return false
	}
	if resp.RCode != domain.RCodeNoError {
		return false
	}
	return resp.Question.Name == query.Name &&
		resp.Question.Type == query.Type &&
		resp.Question.Class == query.Class
}

// interpretIterative implements §4.4.2 against a single validated response.
func interpretIterative(query domain.Question, cand domain.Nameservers, resp domain.DNSResponse) iterativeOutcome {
	cnameMap := make(map[string]string, len(resp.Answers))
	for _, rr := range resp.Answers {
		if rr.Type == domain.RRTypeCNAME && rr.Text != "" {
			cnameMap[rr.Name] = rr.Text
		}
	}

	finalName := query.Name
	visited := map[string]struct{}{finalName: {}}
	followed := false
	for {
		target, ok := cnameMap[finalName]
		if !ok {
			break
		}
		if _, cycle := visited[target]; cycle {
			return iterativeOutcome{kind: iterativeNone}
		}
		visited[target] = struct{}{}
		finalName = target
		followed = true
	}

	matchesFinal := false
	for _, rr := range resp.Answers {
		if rr.Name == finalName && rr.Type.Matches(query.Type) {
			matchesFinal = true
			break
		}
	}

	if followed || matchesFinal {
		var chain []domain.ResourceRecord
		finalCount := 0
		for _, rr := range resp.Answers {
			switch {
			case rr.Type == domain.RRTypeCNAME:
				chain = append(chain, rr)
			case rr.Name == finalName && rr.Type.Matches(query.Type):
				chain = append(chain, rr)
				finalCount++
			}
		}
		if finalCount > 0 {
			return iterativeOutcome{kind: iterativeAnswer, answer: chain}
		}
		return iterativeOutcome{kind: iterativeCNAME, answer: chain, cnameTarget: finalName}
	}

	if delegation, rrs := betterDelegation(query.Name, cand.MatchCount(), resp); delegation != nil {
		return iterativeOutcome{kind: iterativeDelegation, answer: rrs, delegation: delegation}
	}

	if soa := propagatedSOA(query.Name, cand.Name, resp); soa != nil {
		return iterativeOutcome{kind: iterativeAnswer, soa: soa}
	}

	return iterativeOutcome{kind: iterativeNone}
}

// betterDelegation implements §4.4.2 step 3 / §4.4.3: find the highest
// label-count NS owner across answers and authority that is both a
// superdomain of qname and more specific than matchCount, merging ties,
// then attach in-bailiwick glue from answers and additional only.
func betterDelegation(qname string, matchCount int, resp domain.DNSResponse) (*domain.Nameservers, []domain.ResourceRecord) {
	qd := domain.DomainName(qname)
	nsByOwner := map[string][]domain.ResourceRecord{}
	bestLC := matchCount

	scan := func(rrs []domain.ResourceRecord) {
		for _, rr := range rrs {
			if rr.Type != domain.RRTypeNS || rr.Text == "" {
				continue
			}
			owner := domain.DomainName(rr.Name)
			if !qd.IsSubdomainOf(owner) {
				continue
			}
			lc := owner.LabelCount()
			if lc <= matchCount {
				continue
			}
			nsByOwner[rr.Name] = append(nsByOwner[rr.Name], rr)
			if lc > bestLC {
				bestLC = lc
			}
		}
	}
	scan(resp.Answers)
	scan(resp.Authority)

	if bestLC <= matchCount {
		return nil, nil
	}

	var owners []string
	for owner := range nsByOwner {
		if domain.DomainName(owner).LabelCount() == bestLC {
			owners = append(owners, owner)
		}
	}
	if len(owners) == 0 {
		return nil, nil
	}
	sort.Strings(owners)

	hostSeen := map[string]struct{}{}
	var hostnames []string
	var nsRRs []domain.ResourceRecord
	for _, owner := range owners {
		for _, rr := range nsByOwner[owner] {
			nsRRs = append(nsRRs, rr)
			if _, dup := hostSeen[rr.Text]; dup {
				continue
			}
			hostSeen[rr.Text] = struct{}{}
			hostnames = append(hostnames, rr.Text)
		}
	}

	delegationOwner := owners[0]
	glue, glueRRs := collectGlue(hostSeen, delegationOwner, resp)
	return &domain.Nameservers{Name: delegationOwner, Hostnames: hostnames, Glue: glue}, append(nsRRs, glueRRs...)
}

// collectGlue gathers in-bailiwick A/AAAA records for hostnames from the
// answer and additional sections only; authority-section glue is ignored.
func collectGlue(hostnames map[string]struct{}, delegationOwner string, resp domain.DNSResponse) (map[string][]string, []domain.ResourceRecord) {
	owner := domain.DomainName(delegationOwner)
	glue := map[string][]string{}
	var rrs []domain.ResourceRecord

	consider := func(candidates []domain.ResourceRecord) {
		for _, rr := range candidates {
			if rr.Type != domain.RRTypeA && rr.Type != domain.RRTypeAAAA {
				continue
			}
			if _, wanted := hostnames[rr.Name]; !wanted {
				continue
			}
			if !domain.DomainName(rr.Name).IsSubdomainOf(owner) {
				continue
			}
			if rr.Text == "" {
				continue
			}
			glue[rr.Name] = append(glue[rr.Name], rr.Text)
			rrs = append(rrs, rr)
		}
	}
	consider(resp.Answers)
	consider(resp.Additional)

	if len(glue) == 0 {
		return nil, nil
	}
	return glue, rrs
}

// propagatedSOA implements §4.4.2 step 4: an authority SOA whose owner is a
// proper (strict) ancestor of qname, but not an ancestor-or-equal of the
// current candidate-set's owner, is a NODATA/NXDOMAIN propagation.
func propagatedSOA(qname, candidateName string, resp domain.DNSResponse) *domain.ResourceRecord {
	qd := domain.DomainName(qname)
	cd := domain.DomainName(candidateName)
	for i, rr := range resp.Authority {
		if rr.Type != domain.RRTypeSOA {
			continue
		}
		owner := domain.DomainName(rr.Name)
		if owner == qd {
			continue // not a proper suffix
		}
		if !qd.IsSubdomainOf(owner) {
			continue
		}
		if candidateName != "" && cd.IsSubdomainOf(owner) {
			continue // too generic for the delegation we are under
		}
		return &resp.Authority[i]
	}
	return nil
}

// orderCandidateHostnames implements §4.4 step 4's two-phase ordering:
// hostnames with glue already in hand (resolvable from local data) first,
// then the rest (which need a full recursive address lookup).
func orderCandidateHostnames(cand domain.Nameservers) []string {
	local := make([]string, 0, len(cand.Hostnames))
	remote := make([]string, 0, len(cand.Hostnames))
	for _, h := range cand.Hostnames {
		if ips, ok := cand.Glue[h]; ok && len(ips) > 0 {
			local = append(local, h)
		} else {
			remote = append(remote, h)
		}
	}
	return append(local, remote...)
}

// addressTypesForMode returns the RRTypes to try, in order, when resolving
// a candidate hostname to an address under the given protocol mode.
func addressTypesForMode(mode domain.ProtocolMode) []domain.RRType {
	switch mode {
	case domain.ProtocolOnlyV4:
		return []domain.RRType{domain.RRTypeA}
	case domain.ProtocolOnlyV6:
		return []domain.RRType{domain.RRTypeAAAA}
	case domain.ProtocolPreferV6:
		return []domain.RRType{domain.RRTypeAAAA, domain.RRTypeA}
	default: // ProtocolPreferV4
		return []domain.RRType{domain.RRTypeA, domain.RRTypeAAAA}
	}
}

// pickGlueIP chooses one address out of an already-known glue set, honoring
// protocolMode's family preference but falling back to whichever family is
// available when the preferred one (in a Prefer* mode) is absent.
func pickGlueIP(ips []string, mode domain.ProtocolMode) net.IP {
	var v4, v6 net.IP
	for _, s := range ips {
		ip := net.ParseIP(s)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			if v4 == nil {
				v4 = ip
			}
		} else if v6 == nil {
			v6 = ip
		}
	}
	switch mode {
	case domain.ProtocolOnlyV4:
		return v4
	case domain.ProtocolOnlyV6:
		return v6
	case domain.ProtocolPreferV6:
		if v6 != nil {
			return v6
		}
		return v4
	default:
		if v4 != nil {
			return v4
		}
		return v6
	}
}

// firstAddress extracts the first A/AAAA address out of a resolved RR set.
func firstAddress(rrs []domain.ResourceRecord) net.IP {
	for _, rr := range rrs {
		if rr.Type != domain.RRTypeA && rr.Type != domain.RRTypeAAAA {
			continue
		}
		if ip := net.ParseIP(rr.Text); ip != nil {
			return ip
		}
	}
	return nil
}

// resolveCandidateAddress resolves one candidate hostname to an IP,
// preferring glue already supplied by the delegation response and falling
// back to a full local-then-recursive address lookup (sharing rctx's budget
// and in-progress set, so it is bounded by the same recursion guard as
// everything else in this call).
func (r *Resolver) resolveCandidateAddress(stdctx context.Context, rctx *Ctx, cand domain.Nameservers, hostname string) (net.IP, bool) {
	if ips, ok := cand.Glue[hostname]; ok {
		if ip := pickGlueIP(ips, rctx.ProtocolMode()); ip != nil {
			return ip, true
		}
	}

	for _, qtype := range addressTypesForMode(rctx.ProtocolMode()) {
		q, err := domain.NewQuestion(0, hostname, qtype, domain.RRClassIN)
		if err != nil {
			continue
		}
		resolved, handled, rerr := r.resolveLocal(rctx, q)
		if rerr == nil && handled {
			if ip := firstAddress(resolved.Answer); ip != nil {
				return ip, true
			}
			continue
		}
		resolved, rerr = r.resolveRecursive(stdctx, rctx, q)
		if rerr == nil {
			if ip := firstAddress(resolved.Answer); ip != nil {
				return ip, true
			}
		}
	}
	return nil, false
}

// properSuffixes returns every strict ancestor domain of name, longest
// first, ending with the root zone, for §4.4 step 3's candidate-nameserver
// suffix walk.
func properSuffixes(name string) []string {
	trimmed := strings.TrimSuffix(name, ".")
	if trimmed == "" {
		return []string{"."}
	}
	labels := strings.Split(trimmed, ".")
	suffixes := make([]string, 0, len(labels)+1)
	for i := 1; i < len(labels); i++ {
		suffixes = append(suffixes, strings.Join(labels[i:], ".")+".")
	}
	suffixes = append(suffixes, ".")
	return suffixes
}
