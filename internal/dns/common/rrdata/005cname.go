package rrdata

// EncodeCNAMEData encodes a CNAME record string into its binary representation.
func EncodeCNAMEData(data string) ([]byte, error) {
	// data = "cname.example.com"
	return EncodeDomainName(data)
}

// decodeCNAMEData decodes a binary CNAME record into its target name string.
func decodeCNAMEData(data []byte) (string, error) {
	return DecodeDomainName(data)
}
