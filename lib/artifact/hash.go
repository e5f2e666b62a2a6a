// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest identifying a stored payload.
type Hash [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same input bytes produce different hashes in
// different contexts, preventing cross-domain collisions.
type domainKey [32]byte

// Domain separation keys. Fixed constants; changing them invalidates
// every existing hash in that domain. The byte values are the ASCII
// encoding of the domain name, zero-padded to 32 bytes, so the keys
// are inspectable in hex dumps without sacrificing any cryptographic
// property.
var (
	payloadDomainKey = domainKey{
		'd', 'e', 'p', 's', 'y', 'n', 'c', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c', 't',
		'.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0, 0,
	}

	manifestDomainKey = domainKey{
		'd', 'e', 'p', 's', 'y', 'n', 'c', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c', 't',
		'.', 'm', 'a', 'n', 'i', 'f', 'e', 's', 't', 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashPayload computes the payload-domain BLAKE3 keyed hash of the
// given data. Always computed on uncompressed bytes so identical
// payloads deduplicate across compression algorithm changes.
func HashPayload(data []byte) Hash {
	return keyedHash(payloadDomainKey, data)
}

// HashManifest computes the manifest-domain hash of a serialized run
// manifest. Recorded inside run reports for integrity checks.
func HashManifest(data []byte) Hash {
	return keyedHash(manifestDomainKey, data)
}

// FormatHash returns the hex-encoded string representation of a hash.
// This is the canonical format used in manifests, logs, and CLI
// output.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing artifact hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("artifact hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// FormatRef returns the short artifact reference for a payload hash:
// the "art-" prefix followed by the first 12 hex characters.
func FormatRef(hash Hash) string {
	return "art-" + hex.EncodeToString(hash[:6])
}

// keyedHash computes a BLAKE3 keyed hash with the given domain key.
func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed requires exactly 32 bytes, which domainKey guarantees.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("artifact: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
