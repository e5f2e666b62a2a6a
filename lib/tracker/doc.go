// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracker provides a typed REST client for the issue tracker
// that depsync reconciles against. The client handles token
// authentication, preemptive rate limit waiting with one-shot backoff
// retry, Link-header pagination, ETag caching for conditional GETs,
// and structured error parsing.
//
// The wire protocol is the GitHub-compatible REST surface that most
// forges expose: JSON bodies, RFC 5988 Link headers for pagination,
// and X-RateLimit-* response headers.
package tracker
