package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSchema separates schema hashes from any other content hash.
const DomainSchema = "realmbind/schema/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaHash computes the content hash of a canonical schema description.
func SchemaHash(desc Value) (string, error) {
	canonical, err := MarshalCanonical(desc)
	if err != nil {
		return "", fmt.Errorf("schema hash: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}
