// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides depsync's standard CBOR encoding configuration.
//
// Depsync uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the forge REST API and CLI output.
//   - CBOR for durable artifacts: corpus snapshots, run checkpoints,
//     replay bundles, and run reports written through lib/artifact.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every depsync package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, which keeps artifact content hashes stable across runs.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
