package domain

import (
	"errors"
	"fmt"
)

// ProtocolMode controls which address families are tried, and in what order,
// when a candidate nameserver's hostname must be resolved to an IP before it
// can be queried.
type ProtocolMode int

const (
	ProtocolOnlyV4 ProtocolMode = iota
	ProtocolPreferV4
	ProtocolPreferV6
	ProtocolOnlyV6
)

// String returns the textual name of the protocol mode, used in config and logs.
func (p ProtocolMode) String() string {
	switch p {
	case ProtocolOnlyV4:
		return "only_v4"
	case ProtocolPreferV4:
		return "prefer_v4"
	case ProtocolPreferV6:
		return "prefer_v6"
	case ProtocolOnlyV6:
		return "only_v6"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Nameservers is a candidate set of upstream nameservers discovered either
// from a zone delegation or from an upstream referral. Name is the owner
// name the delegation applies to (used to compute matchCount); Hostnames are
// the NS targets still needing address resolution; Glue holds any A/AAAA
// addresses for those hostnames the same response already supplied, keyed by
// hostname, so the candidate-query loop can skip a resolution round trip.
type Nameservers struct {
	Name      string
	Hostnames []string
	Glue      map[string][]string
}

// MatchCount returns the number of labels in the delegation owner name, used
// to decide whether a newly observed delegation is more specific than the
// one currently in hand.
func (n Nameservers) MatchCount() int {
	return DomainName(n.Name).LabelCount()
}

// Merge combines n with other, which §4.4.3 requires when two delegation
// responses name equally specific owners: hostnames and glue are unioned
// rather than one replacing the other.
func (n Nameservers) Merge(other Nameservers) Nameservers {
	seen := make(map[string]struct{}, len(n.Hostnames)+len(other.Hostnames))
	hostnames := make([]string, 0, len(n.Hostnames)+len(other.Hostnames))
	for _, h := range append(append([]string{}, n.Hostnames...), other.Hostnames...) {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		hostnames = append(hostnames, h)
	}
	glue := make(map[string][]string, len(n.Glue)+len(other.Glue))
	for h, ips := range n.Glue {
		glue[h] = append(glue[h], ips...)
	}
	for h, ips := range other.Glue {
		glue[h] = append(glue[h], ips...)
	}
	name := n.Name
	if name == "" {
		name = other.Name
	}
	return Nameservers{Name: name, Hostnames: hostnames, Glue: glue}
}

// ResolutionError is the typed error taxonomy shared by the local and
// recursive resolvers. Every resolver failure is one of these kinds; callers
// pattern-match on Kind rather than comparing error strings.
type ResolutionErrorKind int

const (
	ErrRecursionLimit ResolutionErrorKind = iota
	ErrDuplicateQuestion
	ErrDeadEnd
	ErrTimeout
	ErrCacheTypeMismatch
	ErrLocalDelegationMissingNS
)

func (k ResolutionErrorKind) String() string {
	switch k {
	case ErrRecursionLimit:
		return "recursion_limit"
	case ErrDuplicateQuestion:
		return "duplicate_question"
	case ErrDeadEnd:
		return "dead_end"
	case ErrTimeout:
		return "timeout"
	case ErrCacheTypeMismatch:
		return "cache_type_mismatch"
	case ErrLocalDelegationMissingNS:
		return "local_delegation_missing_ns"
	default:
		return "unknown"
	}
}

// ResolutionError reports a resolver failure along with the question that
// triggered it, so the caller can log or render it without additional context.
type ResolutionError struct {
	Kind     ResolutionErrorKind
	Question string // the owner name of the question in progress, when relevant
	Apex     string // zone apex, only set for ErrLocalDelegationMissingNS
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case ErrDuplicateQuestion:
		return fmt.Sprintf("duplicate question in progress: %s", e.Question)
	case ErrDeadEnd:
		return fmt.Sprintf("dead end resolving %s", e.Question)
	case ErrLocalDelegationMissingNS:
		return fmt.Sprintf("zone %s reported delegation for %s with no NS records", e.Apex, e.Question)
	default:
		return e.Kind.String()
	}
}

// Is reports whether target is a ResolutionError of the same Kind, so callers
// can use errors.Is(err, domain.NewResolutionError(domain.ErrDeadEnd, "")) style checks.
func (e *ResolutionError) Is(target error) bool {
	var other *ResolutionError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// NewResolutionError constructs a ResolutionError of the given kind for the named question.
func NewResolutionError(kind ResolutionErrorKind, question string) *ResolutionError {
	return &ResolutionError{Kind: kind, Question: question}
}

// NewLocalDelegationMissingNSError constructs the one ResolutionError variant
// carrying a zone apex in addition to the question name.
func NewLocalDelegationMissingNSError(apex, question string) *ResolutionError {
	return &ResolutionError{Kind: ErrLocalDelegationMissingNS, Apex: apex, Question: question}
}

// ResolvedRecordKind tags which of the three ResolvedRecord variants is populated.
type ResolvedRecordKind int

const (
	ResolvedAuthoritative ResolvedRecordKind = iota
	ResolvedAuthoritativeNameError
	ResolvedNonAuthoritative
)

// ResolvedRecord is the final, caller-facing result of resolution: one of
// Authoritative{answer, soa}, AuthoritativeNameError{soa}, or
// NonAuthoritative{answer, soa?}. The caller maps this to a wire response:
// Authoritative sets AA; AuthoritativeNameError sets AA and NameError rcode;
// NonAuthoritative clears AA and carries SOA in authority only if present.
type ResolvedRecord struct {
	Kind   ResolvedRecordKind
	Answer []ResourceRecord
	SOA    *ResourceRecord // nil unless the governing zone is authoritative (or propagated NODATA/NXDOMAIN)
}

// NewAuthoritativeResolvedRecord builds the Authoritative variant.
func NewAuthoritativeResolvedRecord(answer []ResourceRecord, soa *ResourceRecord) ResolvedRecord {
	return ResolvedRecord{Kind: ResolvedAuthoritative, Answer: answer, SOA: soa}
}

// NewAuthoritativeNameError builds the AuthoritativeNameError variant.
func NewAuthoritativeNameError(soa *ResourceRecord) ResolvedRecord {
	return ResolvedRecord{Kind: ResolvedAuthoritativeNameError, SOA: soa}
}

// NewNonAuthoritativeResolvedRecord builds the NonAuthoritative variant. soa may be nil.
func NewNonAuthoritativeResolvedRecord(answer []ResourceRecord, soa *ResourceRecord) ResolvedRecord {
	return ResolvedRecord{Kind: ResolvedNonAuthoritative, Answer: answer, SOA: soa}
}

// IsAuthoritative reports whether the AA bit should be set on the wire response.
func (r ResolvedRecord) IsAuthoritative() bool {
	return r.Kind == ResolvedAuthoritative || r.Kind == ResolvedAuthoritativeNameError
}

// RCode returns the DNS response code implied by this result.
func (r ResolvedRecord) RCode() RCode {
	if r.Kind == ResolvedAuthoritativeNameError {
		return RCodeNameError
	}
	return RCodeNoError
}
