// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers shared by depsync binaries.
package process
