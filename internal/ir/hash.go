package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainState = "overfall/state/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash computes the content hash of a state object.
// Equal states hash equally regardless of map iteration order.
func StateHash(state IRObject) (string, error) {
	data, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	return hashWithDomain(DomainState, data), nil
}

// MustStateHash is StateHash that panics on error.
// Use only with states known to be valid (e.g. built from IR types).
func MustStateHash(state IRObject) string {
	h, err := StateHash(state)
	if err != nil {
		panic(err)
	}
	return h
}
