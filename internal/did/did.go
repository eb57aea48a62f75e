// Package did provides utilities for working with Decentralized Identifiers
// (DIDs) in the trustmesh method.
package did

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// Method is the DID method managed by this service.
const Method = "tmsh"

const prefix = "did:" + Method + ":"

// FromPublicKey derives the permanent identifier for a key pair: the base58
// encoding of the blake2b-256 hash of the raw public key. The same key always
// yields the same DID.
func FromPublicKey(publicKey []byte) string {
	sum := blake2b.Sum256(publicKey)
	return prefix + base58.Encode(sum[:])
}

// Validate checks that value is a well-formed identifier of this method.
func Validate(value string) error {
	if !strings.HasPrefix(value, prefix) {
		return fmt.Errorf("not a %s DID: %q", Method, value)
	}
	id := strings.TrimPrefix(value, prefix)
	if id == "" {
		return fmt.Errorf("empty method-specific id in %q", value)
	}
	if _, err := base58.Decode(id); err != nil {
		return fmt.Errorf("invalid method-specific id in %q: %w", value, err)
	}
	return nil
}
