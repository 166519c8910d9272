package resolver

import (
	"context"
	"net"
	"time"

	"github.com/hawknest/rrdns/internal/dns/domain"
	"github.com/hawknest/rrdns/internal/dns/repos/zone"
)

// UpstreamClient defines an interface for DNS upstream resolution.
// Implementations of this interface are responsible for sending DNS queries
// to an upstream server and returning the corresponding DNS response.
// The Resolve method takes a context for cancellation and timeout control,
// as well as a DNSQuery object, and returns a DNSResponse or an error.
type UpstreamClient interface {
	Resolve(ctx context.Context, query domain.Question, now time.Time) (domain.DNSResponse, error)

	// QueryCandidate sends a single non-recursive query to one caller-chosen
	// candidate nameserver address (ip, port), retrying over TCP when the
	// UDP attempt is truncated or otherwise unusable, per §4.4 step 4.
	QueryCandidate(ctx context.Context, ip net.IP, port int, query domain.Question, now time.Time) (domain.DNSResponse, error)
}

// Blocklist defines an interface for checking whether a DNS query is blocked.
// Implementations should provide logic to determine if a given DNSQuery
// should be considered blocked, typically for filtering or security purposes.
type Blocklist interface {
	// current no-op. Future roadmap for blocking will expand this interface.
	IsBlocked(q domain.Question) bool
}

// Cache defines the interface for the shared, owner-partitioned DNS
// response cache. Get returns only live (non-expired) records with their
// TTL rewritten to the residual value; Insert/InsertMany skip zero-TTL
// records; Prune is invoked by an external ticker, never by resolution
// itself.
type Cache interface {
	Get(name string, qtype domain.RRType) ([]domain.ResourceRecord, bool)
	Insert(rr domain.ResourceRecord)
	InsertMany(rrs []domain.ResourceRecord) error
	Prune() (didOverflow bool, size int, numExpired int, numEvicted int)
	Len() int
}

// AliasResolver expands a CNAME chain starting from an initial record set,
// returning the accumulated chain (CNAME hops plus, if found, the terminal
// RRset answering the original query type).
type AliasResolver interface {
	Chase(query domain.Question, initial []domain.ResourceRecord) ([]domain.ResourceRecord, error)
}

// DNSResponder defines an interface for handling DNS queries and generating responses.
// Implementations of this interface process DNS requests, abstracting away network protocol details.
// The HandleRequest method receives the query, client address, and context, and returns a DNS response.
type DNSResponder interface {
	// HandleRequest processes a DNS query and returns a DNS response.
	// The transport handles all network protocol details - the handler only sees domain objects.
	HandleRequest(ctx context.Context, query domain.Question, clientAddr net.Addr) domain.DNSResponse
}

// ZoneCache defines the interface the resolver needs against the loaded
// zone snapshot: a flat exact-match lookup (used by the CNAME alias
// chaser) plus the longest-apex-suffix lookup the local resolver uses to
// find a name's governing zone and run its full resolution algorithm.
type ZoneCache interface {
	// FindRecords returns authoritative resource records matching the
	// question's exact (name, type), ignoring delegation/CNAME/name-error
	// distinctions.
	FindRecords(query domain.Question) ([]domain.ResourceRecord, bool)

	// Lookup returns the zone whose apex is the longest suffix of name.
	Lookup(name string) (*zone.Zone, bool)

	// Apexes returns every zone apex currently loaded.
	Apexes() []string

	// Count returns the number of zones in the snapshot.
	Count() int
}
