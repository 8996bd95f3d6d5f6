package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainQuery = "omnistate/query/v1"
	DomainRow   = "omnistate/row/v1"
)

// hashWithDomain computes SHA-256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryKey computes the resolution cache key for a collection and its
// serialized query options. Equal keys mean "same request".
func QueryKey(collection string, options IRObject) (string, error) {
	canonical, err := MarshalCanonical(IRObject{
		"collection": IRString(collection),
		"options":    options,
	})
	if err != nil {
		return "", fmt.Errorf("QueryKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}

// RowHash fingerprints a row set. Live subscriptions use it to skip
// updates that carry no change. Rows may contain IRNull, so this uses the
// sorted-key encoding rather than the canonical one.
func RowHash(rows IRArray) (string, error) {
	data, err := MarshalIRValue(rows)
	if err != nil {
		return "", fmt.Errorf("RowHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRow, data), nil
}

// MustQueryKey is like QueryKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustQueryKey(collection string, options IRObject) string {
	key, err := QueryKey(collection, options)
	if err != nil {
		panic(err)
	}
	return key
}
