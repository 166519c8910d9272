package domain

import (
	"fmt"
	"strings"

	"github.com/hawknest/rrdns/internal/dns/common/utils"
)

// DomainName is a canonical, dotted-string representation of a DNS name:
// an ordered sequence of labels ending in the root (empty) label. Labels
// compare case-insensitively; the canonical form stored here is always
// ASCII-lowercased with a trailing dot, matching utils.CanonicalDNSName.
type DomainName string

// maxNameLength and maxLabelLength mirror RFC 1035's wire-format limits.
const (
	maxNameLength  = 255
	maxLabelLength = 63
)

// FromDottedString canonicalizes a user- or config-supplied name into a DomainName.
func FromDottedString(s string) DomainName {
	return DomainName(utils.CanonicalDNSName(s))
}

// FromLabels builds a DomainName from labels ordered left-to-right (most
// specific first), rejecting malformed input: any label over 63 octets, or a
// total encoded length over 255 octets.
func FromLabels(labels []string) (DomainName, error) {
	total := 1 // root label
	for _, l := range labels {
		if len(l) == 0 {
			return "", fmt.Errorf("domain name contains an empty interior label")
		}
		if len(l) > maxLabelLength {
			return "", fmt.Errorf("label %q exceeds %d octets", l, maxLabelLength)
		}
		total += len(l) + 1
	}
	if total > maxNameLength {
		return "", fmt.Errorf("domain name exceeds %d encoded octets", maxNameLength)
	}
	return FromDottedString(strings.Join(labels, ".")), nil
}

// labels splits the canonical form back into its constituent labels, root excluded.
func (d DomainName) labels() []string {
	s := strings.TrimSuffix(string(d), ".")
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// LabelCount returns the number of non-root labels in the name.
func (d DomainName) LabelCount() int {
	return len(d.labels())
}

// IsSubdomainOf reports whether d is equal to or a strict descendant of apex.
func (d DomainName) IsSubdomainOf(apex DomainName) bool {
	dd, aa := string(d), string(apex)
	if dd == aa {
		return true
	}
	return strings.HasSuffix(dd, "."+aa) || (aa == "." && dd != "")
}

// TrimSuffix strips apex from the right of d, returning the relative labels
// ordered rightmost-first (i.e. closest to the apex first) as the resolver
// descends the zone tree from apex toward the leaf.
func (d DomainName) TrimSuffix(apex DomainName) []string {
	if string(d) == string(apex) {
		return nil
	}
	rel := strings.TrimSuffix(string(d), string(apex))
	rel = strings.TrimSuffix(rel, ".")
	if rel == "" {
		return nil
	}
	parts := strings.Split(rel, ".")
	// reverse so the label nearest the apex comes first
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts
}

// String returns the dotted textual form.
func (d DomainName) String() string {
	return string(d)
}
