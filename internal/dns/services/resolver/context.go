package resolver

import "github.com/hawknest/rrdns/internal/dns/domain"

// Ctx carries the scratch state threaded through a single client query as it
// moves through the local and recursive resolution algorithms: the
// recursion budget, the stack of questions already in flight (for cycle
// detection), and the per-query knobs that came from configuration
// (protocol mode, forwarding). It is distinct from the stdlib
// context.Context, which governs cancellation/deadlines rather than
// resolver-specific bookkeeping.
type Ctx struct {
	budget         int
	inProgress     map[string]struct{}
	protocolMode   domain.ProtocolMode
	upstreamPort   int
	forwardAddress string
	candidates     *domain.Nameservers
	matchCount     int
}

// NewCtx starts a fresh resolution context with the given recursion budget.
func NewCtx(maxRecursion int, mode domain.ProtocolMode, upstreamPort int, forwardAddress string) *Ctx {
	return &Ctx{
		budget:         maxRecursion,
		inProgress:     make(map[string]struct{}),
		protocolMode:   mode,
		upstreamPort:   upstreamPort,
		forwardAddress: forwardAddress,
	}
}

// Enter records question as in-progress and decrements the recursion
// budget, returning a ResolutionError if either bound is already exhausted.
// The caller must call Leave(question) once done with this hop, even on the
// error path, to keep the stack balanced for sibling candidate attempts.
func (c *Ctx) Enter(question string) *domain.ResolutionError {
	if c.budget <= 0 {
		return domain.NewResolutionError(domain.ErrRecursionLimit, question)
	}
	if _, dup := c.inProgress[question]; dup {
		return domain.NewResolutionError(domain.ErrDuplicateQuestion, question)
	}
	c.budget--
	c.inProgress[question] = struct{}{}
	return nil
}

// Leave removes question from the in-progress stack.
func (c *Ctx) Leave(question string) {
	delete(c.inProgress, question)
}

// IsForwarding reports whether a forward address is configured, in which
// case candidate-nameserver discovery is skipped entirely in favor of
// always querying the single forwarder.
func (c *Ctx) IsForwarding() bool {
	return c.forwardAddress != ""
}

// ForwardAddress returns the configured forwarder address, or "" when not forwarding.
func (c *Ctx) ForwardAddress() string {
	return c.forwardAddress
}

// ProtocolMode returns the address-family preference candidate hostname
// resolution should honor.
func (c *Ctx) ProtocolMode() domain.ProtocolMode {
	return c.protocolMode
}

// UpstreamPort returns the port candidate nameservers are queried on.
func (c *Ctx) UpstreamPort() int {
	return c.upstreamPort
}

// Candidates returns the current best candidate nameserver set, or nil if
// none has been established yet (resolveRecursive must then compute one per
// §4.4 step 3).
func (c *Ctx) Candidates() *domain.Nameservers {
	return c.candidates
}

// seedDelegation records a candidate nameserver set discovered by the local
// resolver (e.g. a stub zone's NS records), applying the same §4.4.3
// priority rule as a delegation observed mid-recursion.
func (c *Ctx) seedDelegation(ns []domain.ResourceRecord) {
	candidate := nameserversFromNSRecords(ns)
	if candidate == nil {
		return
	}
	c.applyDelegation(*candidate)
}

// applyDelegation implements §4.4.3: a strictly more specific delegation
// replaces the current candidate set and reports that the caller should
// restart the candidate query loop at step 4; an equally specific one merges
// in place without requiring a restart; a less specific one is ignored.
func (c *Ctx) applyDelegation(candidate domain.Nameservers) bool {
	mc := candidate.MatchCount()
	switch {
	case c.candidates == nil || mc > c.matchCount:
		c.candidates = &candidate
		c.matchCount = mc
		return true
	case mc == c.matchCount:
		merged := c.candidates.Merge(candidate)
		c.candidates = &merged
		return false
	default:
		return false
	}
}

// nameserversFromNSRecords builds a Nameservers candidate set from a list of
// NS resource records, all expected to share the same owner name. Returns
// nil if ns is empty or carries no usable target hostnames.
func nameserversFromNSRecords(ns []domain.ResourceRecord) *domain.Nameservers {
	if len(ns) == 0 {
		return nil
	}
	hostnames := make([]string, 0, len(ns))
	for _, rr := range ns {
		if rr.Text == "" {
			continue
		}
		hostnames = append(hostnames, rr.Text)
	}
	if len(hostnames) == 0 {
		return nil
	}
	return &domain.Nameservers{Name: ns[0].Name, Hostnames: hostnames}
}
