// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forgeflow/depsync/lib/clock"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), clock.Fake(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	// Payload sizes chosen to exercise every compression selection:
	// tiny (stored raw), mid-sized (lz4), large (zstd).
	payloads := map[string][]byte{
		"tiny":  []byte("short payload"),
		"mid":   bytes.Repeat([]byte("reconcile batch outcome "), 64),
		"large": bytes.Repeat([]byte("dependency record for item number "), 4096),
	}

	store := newTestStore(t)
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			ref, err := store.Save(KindSnapshot, "run-"+name, payload, map[string]string{"items": "3"})
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if !strings.HasPrefix(ref, "art-") || len(ref) != 16 {
				t.Errorf("ref = %q, want art-<12 hex>", ref)
			}

			loaded, err := store.Load(KindSnapshot, "run-"+name)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !bytes.Equal(loaded, payload) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(loaded), len(payload))
			}
		})
	}
}

func TestStore_CompressionSelection(t *testing.T) {
	store := newTestStore(t)

	tiny := []byte("x")
	large := bytes.Repeat([]byte("aaaa"), 32768)

	if _, err := store.Save(KindCheckpoint, "run-1", tiny, nil); err != nil {
		t.Fatalf("Save tiny: %v", err)
	}
	if _, err := store.Save(KindSnapshot, "run-1", large, nil); err != nil {
		t.Fatalf("Save large: %v", err)
	}

	manifest, err := store.ManifestFor("run-1")
	if err != nil {
		t.Fatalf("ManifestFor: %v", err)
	}
	if got := manifest.Entries[KindCheckpoint].Compression; got != "none" {
		t.Errorf("tiny payload compression = %q, want none", got)
	}
	if got := manifest.Entries[KindSnapshot].Compression; got != "zstd" {
		t.Errorf("large payload compression = %q, want zstd", got)
	}
	if manifest.Entries[KindSnapshot].CompressedSize >= manifest.Entries[KindSnapshot].Size {
		t.Error("repetitive payload should compress smaller than its size")
	}
}

func TestStore_IncompressibleFallsBackToRaw(t *testing.T) {
	store := newTestStore(t)

	// Pseudo-random bytes defeat lz4; the store must fall back to
	// storing raw rather than failing.
	payload := make([]byte, 4096)
	seed := uint32(0x9e3779b9)
	for i := range payload {
		seed = seed*1664525 + 1013904223
		payload[i] = byte(seed >> 24)
	}

	if _, err := store.Save(KindReplay, "run-rand", payload, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(KindReplay, "run-rand")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded, payload) {
		t.Error("round trip mismatch for incompressible payload")
	}
}

func TestStore_Dedup(t *testing.T) {
	store := newTestStore(t)
	payload := bytes.Repeat([]byte("same bytes "), 100)

	ref1, err := store.Save(KindSnapshot, "run-a", payload, nil)
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	ref2, err := store.Save(KindSnapshot, "run-b", payload, nil)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if ref1 != ref2 {
		t.Errorf("identical payloads got distinct refs: %q vs %q", ref1, ref2)
	}

	// Both runs must still load independently.
	for _, run := range []string{"run-a", "run-b"} {
		loaded, err := store.Load(KindSnapshot, run)
		if err != nil {
			t.Fatalf("Load %s: %v", run, err)
		}
		if !bytes.Equal(loaded, payload) {
			t.Errorf("round trip mismatch for %s", run)
		}
	}
}

func TestStore_LaterSaveReplacesKind(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Save(KindCheckpoint, "run-1", []byte("checkpoint one"), nil); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if _, err := store.Save(KindCheckpoint, "run-1", []byte("checkpoint two"), nil); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := store.Load(KindCheckpoint, "run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(loaded) != "checkpoint two" {
		t.Errorf("loaded %q, want the later checkpoint", loaded)
	}
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Load(KindSnapshot, "no-such-run"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing run: err = %v, want ErrNotFound", err)
	}

	if _, err := store.Save(KindSnapshot, "run-1", []byte("data data data data"), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Load(KindReplay, "run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing kind: err = %v, want ErrNotFound", err)
	}
}

func TestStore_Cleanup(t *testing.T) {
	store := newTestStore(t)

	// Simulate an interrupted write.
	stale := filepath.Join(store.root, tmpDir, "write-stale")
	if err := os.WriteFile(stale, []byte("partial"), 0o644); err != nil {
		t.Fatalf("writing stale temp file: %v", err)
	}

	if err := store.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Cleanup left the stale temp file behind")
	}
}

func TestHashPayload_DomainSeparation(t *testing.T) {
	data := []byte("identical input")
	if HashPayload(data) == HashManifest(data) {
		t.Error("payload and manifest domains must produce different hashes")
	}
	if HashPayload(data) != HashPayload(data) {
		t.Error("hashing is not deterministic")
	}
}

func TestParseHash_RoundTrip(t *testing.T) {
	hash := HashPayload([]byte("some payload"))
	parsed, err := ParseHash(FormatHash(hash))
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if parsed != hash {
		t.Error("format/parse round trip mismatch")
	}

	if _, err := ParseHash("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
	if _, err := ParseHash("abcd"); err == nil {
		t.Error("expected error for short hash")
	}
}
