package rrdata

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// SOAFields holds the decoded numeric and name fields of an SOA record.
type SOAFields struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// EncodeSOAData encodes an SOA record string into its binary representation.
func EncodeSOAData(data string) ([]byte, error) {
	// data = "mname rname serial refresh retry expire minimum"
	parts := strings.Fields(data)
	if len(parts) != 7 {
		return nil, fmt.Errorf("invalid SOA record format (expected 7 fields): %s", data)
	}

	// mname is the primary name server for the zone
	mname, err := EncodeDomainName(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid SOA mname: %v", err)
	}

	// rname is the zone administrator's mailbox written as a domain name,
	// e.g. "hostmaster@example.com" is given as "hostmaster.example.com"
	rname, err := EncodeDomainName(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid SOA rname: %v", err)
	}

	// The next five fields are unsigned integers
	// serial, refresh, retry, expire, minimum
	u32 := make([]byte, 20)
	for i := 0; i < 5; i++ {
		val, err := strconv.ParseUint(parts[i+2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SOA field %d: %v", i+2, err)
		}
		binary.BigEndian.PutUint32(u32[i*4:], uint32(val))
	}

	// Combine all parts into a single byte slice
	var encoded []byte
	encoded = append(encoded, mname...)
	encoded = append(encoded, rname...)
	encoded = append(encoded, u32...)

	return encoded, nil
}

// decodeSOAData decodes a binary SOA record into its "mname rname serial refresh retry expire minimum" string form.
func decodeSOAData(data []byte) (string, error) {
	f, err := DecodeSOAFields(data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %d %d %d %d %d", f.MName, f.RName, f.Serial, f.Refresh, f.Retry, f.Expire, f.Minimum), nil
}

// DecodeSOAFields decodes a binary SOA record into its structured fields.
// Exported (rather than returning only the flattened string form used by the
// other rrdata decoders) because the zone store needs SOA.Minimum directly to
// compute the effective TTL floor for every record in an authoritative zone.
func DecodeSOAFields(data []byte) (SOAFields, error) {
	if len(data) < 22 {
		return SOAFields{}, fmt.Errorf("invalid SOA data length: %d", len(data))
	}
	mname, err := DecodeDomainName(data)
	if err != nil {
		return SOAFields{}, fmt.Errorf("invalid SOA mname: %w", err)
	}
	offset := soaNameWireLen(data, 0)
	rname, err := DecodeDomainName(data[offset:])
	if err != nil {
		return SOAFields{}, fmt.Errorf("invalid SOA rname: %w", err)
	}
	offset += soaNameWireLen(data, offset)
	if offset+20 > len(data) {
		return SOAFields{}, fmt.Errorf("SOA record missing integer fields")
	}
	return SOAFields{
		MName:   mname,
		RName:   rname,
		Serial:  binary.BigEndian.Uint32(data[offset : offset+4]),
		Refresh: binary.BigEndian.Uint32(data[offset+4 : offset+8]),
		Retry:   binary.BigEndian.Uint32(data[offset+8 : offset+12]),
		Expire:  binary.BigEndian.Uint32(data[offset+12 : offset+16]),
		Minimum: binary.BigEndian.Uint32(data[offset+16 : offset+20]),
	}, nil
}

// soaNameWireLen returns the number of bytes a wire-encoded domain name
// occupies starting at offset, without resolving compression (rdata never
// contains pointers in this codec).
func soaNameWireLen(data []byte, offset int) int {
	start := offset
	for offset < len(data) {
		length := int(data[offset])
		offset++
		if length == 0 {
			break
		}
		offset += length
	}
	return offset - start
}
