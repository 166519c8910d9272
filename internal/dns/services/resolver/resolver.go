// Package resolver implements the two-stage DNS resolution core: a local
// resolver that walks the loaded zone tree and response cache, and a
// recursive resolver that queries candidate nameservers (or a single
// configured forwarder) when local data cannot answer a question.
package resolver

import (
	"context"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hawknest/rrdns/internal/dns/common/clock"
	"github.com/hawknest/rrdns/internal/dns/common/log"
	"github.com/hawknest/rrdns/internal/dns/domain"
	"github.com/hawknest/rrdns/internal/dns/repos/zone"
)

// Resolver orchestrates local-then-recursive DNS resolution for every
// question a transport hands it, and implements DNSResponder so any
// transport (UDP, TCP, ...) can drive it without knowing about the
// resolution algorithm underneath.
type Resolver struct {
	blocklist     Blocklist
	clock         clock.Clock
	logger        log.Logger
	upstream      UpstreamClient
	upstreamCache Cache
	zoneCache     ZoneCache
	aliasResolver AliasResolver
	inflight      singleflight.Group

	maxRecursion   int
	protocolMode   domain.ProtocolMode
	upstreamPort   int
	forwardAddress string
}

// ResolverOptions configures a Resolver. Blocklist, Upstream, UpstreamCache,
// and ZoneCache may be nil only in tests that don't exercise the
// corresponding code path; production wiring (cmd/rr-dnsd) always supplies
// all of them.
type ResolverOptions struct {
	Blocklist     Blocklist
	Clock         clock.Clock
	Logger        log.Logger
	Upstream      UpstreamClient
	UpstreamCache Cache
	ZoneCache     ZoneCache
	AliasResolver AliasResolver

	MaxRecursion   int
	ProtocolMode   domain.ProtocolMode
	UpstreamPort   int
	ForwardAddress string
}

// NewResolver constructs a Resolver from the given options, defaulting a nil
// AliasResolver to a chaser built from the supplied zone/upstream/cache/clock
// and a zero or negative MaxRecursion to 8.
func NewResolver(opts ResolverOptions) *Resolver {
	if opts.MaxRecursion <= 0 {
		opts.MaxRecursion = 8
	}
	alias := opts.AliasResolver
	if alias == nil {
		alias = NewAliasChaser(opts.ZoneCache, opts.Upstream, opts.UpstreamCache, opts.Clock, opts.Logger, opts.MaxRecursion)
	}
	return &Resolver{
		blocklist:      opts.Blocklist,
		clock:          opts.Clock,
		logger:         opts.Logger,
		upstream:       opts.Upstream,
		upstreamCache:  opts.UpstreamCache,
		zoneCache:      opts.ZoneCache,
		aliasResolver:  alias,
		maxRecursion:   opts.MaxRecursion,
		protocolMode:   opts.ProtocolMode,
		upstreamPort:   opts.UpstreamPort,
		forwardAddress: opts.ForwardAddress,
	}
}

// HandleRequest is the sole entry point transports call: it runs the local
// resolver, falls back to the recursive resolver on a miss, and renders
// whatever result (or error) comes out of either stage into a wire-ready
// DNSResponse. The client address is accepted for future policy decisions
// (e.g. per-client blocklisting) but does not currently affect resolution.
func (r *Resolver) HandleRequest(ctx context.Context, query domain.Question, clientAddr net.Addr) domain.DNSResponse {
	if r.blocklist != nil && r.blocklist.IsBlocked(query) {
		r.logger.Info(map[string]any{"question": query.Name, "client": clientAddr}, "query blocked")
		return domain.NewDNSErrorResponse(query.ID, domain.RCodeRefused)
	}

	rctx := NewCtx(r.maxRecursion, r.protocolMode, r.upstreamPort, r.forwardAddress)

	resolved, handled, rerr := r.resolveLocal(rctx, query)
	if rerr != nil {
		r.logger.Warn(map[string]any{"question": query.Name, "error": rerr.Error()}, "local resolution failed")
		return domain.NewDNSErrorResponse(query.ID, domain.RCodeServerFail)
	}
	if !handled {
		var err *domain.ResolutionError
		resolved, err = r.resolveRecursive(ctx, rctx, query)
		if err != nil {
			r.logger.Warn(map[string]any{"question": query.Name, "error": err.Error()}, "recursive resolution failed")
			return domain.NewDNSErrorResponse(query.ID, domain.RCodeServerFail)
		}
	}

	return r.render(query, resolved)
}

// render converts a ResolvedRecord into the wire-level DNSResponse shape.
func (r *Resolver) render(query domain.Question, resolved domain.ResolvedRecord) domain.DNSResponse {
	var authority []domain.ResourceRecord
	if resolved.SOA != nil {
		authority = []domain.ResourceRecord{*resolved.SOA}
	}
	resp, err := domain.NewDNSResponse(query.ID, resolved.RCode(), resolved.Answer, authority, nil)
	if err != nil {
		return domain.NewDNSErrorResponse(query.ID, domain.RCodeServerFail)
	}
	return resp
}

// resolveLocal implements the local-resolver algorithm: find the governing
// zone (if any) for the question, apply its per-zone resolution decision,
// and fall back to the shared response cache when no zone governs the name
// or the zone itself is non-authoritative (a stub carrying only delegation
// data). handled reports whether resolved is a final answer; when handled
// is false, the caller must continue to resolveRecursive.
func (r *Resolver) resolveLocal(rctx *Ctx, query domain.Question) (resolved domain.ResolvedRecord, handled bool, rerr *domain.ResolutionError) {
	if err := rctx.Enter(query.Name); err != nil {
		return domain.ResolvedRecord{}, false, err
	}
	defer rctx.Leave(query.Name)

	if r.zoneCache != nil {
		if z, ok := r.zoneCache.Lookup(query.Name); ok {
			resolved, handled, rerr = r.resolveFromZone(rctx, z, query)
			if handled || rerr != nil {
				return resolved, handled, rerr
			}
			// Falls through: a non-authoritative (stub) zone reported
			// ZoneNameError/ZoneDelegation, which does not settle the
			// question locally. Continue on to the cache below.
		}
	}

	if r.upstreamCache != nil {
		if recs, hit := r.upstreamCache.Get(query.Name, query.Type); hit {
			recs, chaseErr := r.chaseIfNeeded(query, recs)
			if chaseErr != nil && isFatalAliasError(chaseErr) {
				return domain.ResolvedRecord{}, false, domain.NewResolutionError(domain.ErrDeadEnd, query.Name)
			}
			return domain.NewNonAuthoritativeResolvedRecord(recs, nil), true, nil
		}
	}

	return domain.ResolvedRecord{}, false, nil
}

// resolveFromZone applies the §4.1 terminal decision already computed by
// zone.Resolve to the shape resolveLocal needs: a ResolvedRecord plus
// whether the question is now fully handled.
func (r *Resolver) resolveFromZone(rctx *Ctx, z *zone.Zone, query domain.Question) (domain.ResolvedRecord, bool, *domain.ResolutionError) {
	zr := z.Resolve(query.Name, query.Type)
	switch zr.Kind {
	case zone.ZoneAnswer:
		return domain.NewAuthoritativeResolvedRecord(zr.Answer, z.SOA), true, nil

	case zone.ZoneCNAME:
		chain, err := r.chaseIfNeeded(query, []domain.ResourceRecord{zr.CNAMERecord})
		if err != nil && isFatalAliasError(err) {
			return domain.ResolvedRecord{}, false, domain.NewResolutionError(domain.ErrDeadEnd, query.Name)
		}
		return domain.NewAuthoritativeResolvedRecord(chain, z.SOA), true, nil

	case zone.ZoneDelegation:
		if len(zr.Delegation) == 0 {
			return domain.ResolvedRecord{}, false, domain.NewLocalDelegationMissingNSError(string(z.Apex), query.Name)
		}
		rctx.seedDelegation(zr.Delegation)
		return domain.ResolvedRecord{}, false, nil

	case zone.ZoneNameError:
		if z.IsAuthoritative() {
			return domain.NewAuthoritativeNameError(z.SOA), true, nil
		}
		return domain.ResolvedRecord{}, false, nil

	default:
		return domain.ResolvedRecord{}, false, nil
	}
}

// chaseIfNeeded delegates to the injected AliasResolver when the head record
// is a CNAME the client didn't ask for, otherwise returns initial unchanged.
func (r *Resolver) chaseIfNeeded(query domain.Question, initial []domain.ResourceRecord) ([]domain.ResourceRecord, error) {
	if r.aliasResolver == nil {
		return initial, nil
	}
	return r.aliasResolver.Chase(query, initial)
}

// isFatalAliasError reports whether err should abort resolution outright
// (depth exceeded or loop detected) rather than simply truncating the chain
// at whatever was gathered so far.
func isFatalAliasError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), ErrAliasDepthExceeded.Error()) ||
		strings.Contains(err.Error(), ErrAliasLoopDetected.Error())
}

// resolveRecursive implements the recursive-resolver algorithm. When the
// resolver is configured to forward, every question goes to the single
// forwarder as a full recursive query. Otherwise it establishes a candidate
// nameserver set (from a zone-seeded delegation, a local NS lookup over
// ancestor suffixes, or, failing both, one recursive-desired bootstrap query
// to the configured upstream list) and then walks it with runCandidateLoop,
// restarting at a more specific delegation whenever one is observed, per
// §4.4 step 4 and §4.4.3. Concurrent callers asking the identical (name,
// type, class) question share a single in-flight bootstrap/forwarder query
// via singleflight, so a burst of repeated client queries for an uncached
// name costs one upstream round trip rather than one per client.
func (r *Resolver) resolveRecursive(stdctx context.Context, rctx *Ctx, query domain.Question) (domain.ResolvedRecord, *domain.ResolutionError) {
	if err := rctx.Enter(query.Name + "#recursive"); err != nil {
		return domain.ResolvedRecord{}, err
	}
	defer rctx.Leave(query.Name + "#recursive")

	if r.upstream == nil {
		return domain.ResolvedRecord{}, domain.NewResolutionError(domain.ErrDeadEnd, query.Name)
	}

	deadline, cancel := context.WithTimeout(stdctx, 60*time.Second)
	defer cancel()

	if rctx.IsForwarding() {
		return r.queryForwarder(deadline, query)
	}

	if rctx.Candidates() == nil {
		if cand := r.seedCandidatesFromSuffixes(query.Name); cand != nil {
			rctx.applyDelegation(*cand)
		}
	}

	if rctx.Candidates() == nil {
		return r.bootstrapCandidates(deadline, rctx, query)
	}
	return r.runCandidateLoop(deadline, rctx, query)
}

// queryForwarder implements §6's forwarding mode: the configured forwarder
// is the sole upstream, queried with recursion desired, and its answer is
// trusted as final (no candidate walk, no further validation beyond what
// the transport/codec already performed).
func (r *Resolver) queryForwarder(stdctx context.Context, query domain.Question) (domain.ResolvedRecord, *domain.ResolutionError) {
	v, err, _ := r.inflight.Do(query.CacheKey(), func() (any, error) {
		return r.upstream.Resolve(stdctx, query, r.clock.Now())
	})
	if err != nil {
		return domain.ResolvedRecord{}, domain.NewResolutionError(domain.ErrTimeout, query.Name)
	}
	resp := v.(domain.DNSResponse)

	var soa *domain.ResourceRecord
	for i, rr := range resp.Authority {
		if rr.Type == domain.RRTypeSOA {
			soa = &resp.Authority[i]
			break
		}
	}
	result := domain.NewNonAuthoritativeResolvedRecord(resp.Answers, soa)
	r.cacheAnswer(result)
	return result, nil
}

// seedCandidatesFromSuffixes implements §4.4 step 3: when no candidate set
// is in hand yet, look for NS records the zone tree itself carries at some
// ancestor of query.Name, longest suffix first.
func (r *Resolver) seedCandidatesFromSuffixes(name string) *domain.Nameservers {
	if r.zoneCache == nil {
		return nil
	}
	for _, suffix := range properSuffixes(name) {
		q, err := domain.NewQuestion(0, suffix, domain.RRTypeNS, domain.RRClassIN)
		if err != nil {
			continue
		}
		rrs, ok := r.zoneCache.FindRecords(q)
		if !ok || len(rrs) == 0 {
			continue
		}
		if cand := nameserversFromNSRecords(rrs); cand != nil {
			return cand
		}
	}
	return nil
}

// bootstrapCandidates covers deployments with no local root/delegation zone
// data: it asks the configured upstream list directly, the same recursive-
// desired query the forwarding path uses, and interprets whatever comes
// back as though it were a candidate response. A full recursive resolver
// almost always answers this in one hop (Answer/CNAME); an authoritative-
// only or referral-capable upstream may instead hand back a Delegation,
// which seeds the candidate set and hands off to runCandidateLoop.
func (r *Resolver) bootstrapCandidates(stdctx context.Context, rctx *Ctx, query domain.Question) (domain.ResolvedRecord, *domain.ResolutionError) {
	v, err, _ := r.inflight.Do(query.CacheKey(), func() (any, error) {
		return r.upstream.Resolve(stdctx, query, r.clock.Now())
	})
	if err != nil {
		return domain.ResolvedRecord{}, domain.NewResolutionError(domain.ErrTimeout, query.Name)
	}
	resp := v.(domain.DNSResponse)
	if !validateRecursiveResponse(query, resp) {
		return domain.ResolvedRecord{}, domain.NewResolutionError(domain.ErrDeadEnd, query.Name)
	}

	outcome := interpretIterative(query, domain.Nameservers{}, resp)
	result, rerr, done := r.settleOutcome(stdctx, rctx, query, outcome)
	if done {
		return result, rerr
	}
	return r.runCandidateLoop(stdctx, rctx, query)
}

// runCandidateLoop implements §4.4 step 4: query each candidate nameserver
// (local-glue-resolvable hostnames first, per orderCandidateHostnames),
// validating and interpreting every response. A Delegation outcome updates
// the candidate set via Ctx.applyDelegation and restarts the walk at the new
// set, per §4.4.3; a transport failure or an invalid/unrecognized response
// simply moves on to the next candidate. Exhausting every candidate in a
// round with no delegation observed is a DeadEnd.
func (r *Resolver) runCandidateLoop(stdctx context.Context, rctx *Ctx, query domain.Question) (domain.ResolvedRecord, *domain.ResolutionError) {
	for {
		cand := rctx.Candidates()
		if cand == nil {
			return domain.ResolvedRecord{}, domain.NewResolutionError(domain.ErrDeadEnd, query.Name)
		}

		restarted := false
		for _, host := range orderCandidateHostnames(*cand) {
			ip, ok := r.resolveCandidateAddress(stdctx, rctx, *cand, host)
			if !ok {
				continue
			}
			resp, err := r.upstream.QueryCandidate(stdctx, ip, rctx.UpstreamPort(), query, r.clock.Now())
			if err != nil {
				continue // §7: a per-hop failure just tries the next candidate
			}
			if !validateRecursiveResponse(query, resp) {
				continue
			}

			outcome := interpretIterative(query, *cand, resp)
			result, rerr, done := r.settleOutcome(stdctx, rctx, query, outcome)
			if done {
				return result, rerr
			}
			if outcome.kind == iterativeDelegation {
				restarted = true
				break
			}
		}
		if !restarted {
			return domain.ResolvedRecord{}, domain.NewResolutionError(domain.ErrDeadEnd, query.Name)
		}
	}
}

// settleOutcome dispatches one interpretIterative result: an Answer (which
// may be a NODATA/NXDOMAIN propagation carrying only an SOA) is cached and
// returned as final; a CNAME is cached and chased by recursing on the
// target; a Delegation updates rctx's candidate set and reports that the
// caller should continue the walk rather than return. done is false for
// both Delegation and None (try the next candidate / restart the loop).
func (r *Resolver) settleOutcome(stdctx context.Context, rctx *Ctx, query domain.Question, outcome iterativeOutcome) (domain.ResolvedRecord, *domain.ResolutionError, bool) {
	switch outcome.kind {
	case iterativeAnswer:
		result := domain.NewNonAuthoritativeResolvedRecord(outcome.answer, outcome.soa)
		r.cacheAnswer(result)
		return result, nil, true

	case iterativeCNAME:
		r.cacheAnswer(domain.NewNonAuthoritativeResolvedRecord(outcome.answer, nil))
		target, err := domain.NewQuestion(query.ID, outcome.cnameTarget, query.Type, query.Class)
		if err != nil {
			return domain.ResolvedRecord{}, domain.NewResolutionError(domain.ErrDeadEnd, query.Name), true
		}
		chained, rerr := r.resolveRecursive(stdctx, rctx, target)
		if rerr != nil {
			return domain.ResolvedRecord{}, rerr, true
		}
		merged := append(append([]domain.ResourceRecord{}, outcome.answer...), chained.Answer...)
		return domain.NewNonAuthoritativeResolvedRecord(merged, chained.SOA), nil, true

	case iterativeDelegation:
		if len(outcome.answer) > 0 {
			r.cacheAnswer(domain.NewNonAuthoritativeResolvedRecord(outcome.answer, nil))
		}
		rctx.applyDelegation(*outcome.delegation)
		return domain.ResolvedRecord{}, nil, false

	default: // iterativeNone
		return domain.ResolvedRecord{}, nil, false
	}
}

// cacheAnswer stores a successful recursive answer in the shared response
// cache so subsequent queries for the same (name, type) are served locally.
func (r *Resolver) cacheAnswer(result domain.ResolvedRecord) {
	if r.upstreamCache == nil || len(result.Answer) == 0 {
		return
	}
	_ = r.upstreamCache.InsertMany(result.Answer)
}
