package wire

import (
	"time"

	"github.com/hawknest/rrdns/internal/dns/domain"
)

type DNSCodec interface {
	// Upstream Functions
	// These methods are used to encode and decode DNS messages for communication with upstream servers.
	EncodeQuery(query domain.Question) ([]byte, error)
	DecodeResponse(data []byte, expectedID uint16, now time.Time) (domain.DNSResponse, error)

	// EncodeIterativeQuery encodes a non-recursive (RD=0) query carrying the
	// given transaction id rather than query.ID, for the recursive
	// resolver's candidate-nameserver query loop (§4.4 step 4). Unlike
	// EncodeQuery, which always sets RD=1 for the single-forwarder path,
	// iterative candidate queries must never ask a non-forwarder nameserver
	// to recurse on our behalf.
	EncodeIterativeQuery(id uint16, query domain.Question) ([]byte, error)

	// Authoritative Functions
	// These methods handle encoding and decoding of authoritative records for zone file management.
	DecodeQuery(data []byte) (domain.Question, error)
	EncodeResponse(resp domain.DNSResponse) ([]byte, error)
}
