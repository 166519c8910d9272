package rrdata

// EncodeNSData encodes an NS record string into its binary representation.
func EncodeNSData(data string) ([]byte, error) {
	// data = "ns.example.com"
	return EncodeDomainName(data)
}

// decodeNSData decodes a binary NS record into its target hostname string.
func decodeNSData(data []byte) (string, error) {
	return DecodeDomainName(data)
}
