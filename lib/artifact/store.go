// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/forgeflow/depsync/lib/clock"
	"github.com/forgeflow/depsync/lib/codec"
)

// Directory names within the store root.
const (
	objectDir   = "objects"
	manifestDir = "runs"
	tmpDir      = "tmp"
)

// Artifact kinds recorded in run manifests. One entry per kind per
// run; saving the same kind again (a later checkpoint) replaces the
// manifest entry while the superseded object stays on disk until
// Cleanup.
const (
	KindSnapshot   = "snapshot"
	KindCheckpoint = "checkpoint"
	KindReplay     = "replay"
	KindReport     = "report"
)

// objectHeaderSize is the fixed object file header: 1-byte
// compression tag followed by the uncompressed size as 8 bytes
// little-endian.
const objectHeaderSize = 9

// ErrNotFound is returned when a requested run or artifact kind has
// no stored entry.
var ErrNotFound = errors.New("artifact: not found")

// Store manages the local artifact directory. Payloads are written
// once under objects/, addressed by payload hash; per-run manifests
// under runs/ map artifact kinds to objects.
//
// Safe for concurrent reads. Writes to the same run must be
// serialized by the caller; the reconciler writes from a single
// control flow.
type Store struct {
	root   string
	clock  clock.Clock
	logger *slog.Logger
}

// NewStore creates a Store rooted at the given directory, creating
// the directory structure if it does not exist.
func NewStore(root string, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{
		root,
		filepath.Join(root, objectDir),
		filepath.Join(root, manifestDir),
		filepath.Join(root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}
	return &Store{root: root, clock: clk, logger: logger}, nil
}

// Entry describes one stored artifact within a run manifest.
type Entry struct {
	Kind           string            `cbor:"kind"`
	Ref            string            `cbor:"ref"`
	Hash           string            `cbor:"hash"`
	Size           int64             `cbor:"size"`
	CompressedSize int64             `cbor:"compressed_size"`
	Compression    string            `cbor:"compression"`
	SavedAt        time.Time         `cbor:"saved_at"`
	Meta           map[string]string `cbor:"meta,omitempty"`
}

// Manifest maps artifact kinds to stored objects for one
// reconciliation run.
type Manifest struct {
	RunID   string           `cbor:"run_id"`
	Entries map[string]Entry `cbor:"entries"`
}

// Save compresses and stores a payload, then records it in the run's
// manifest under the given kind. Returns the short artifact
// reference. Identical payloads share one object file.
func (store *Store) Save(kind, runID string, payload []byte, meta map[string]string) (string, error) {
	hash := HashPayload(payload)

	compressedSize, tag, err := store.writeObject(hash, payload)
	if err != nil {
		return "", err
	}

	manifest, err := store.loadManifest(runID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
		manifest = &Manifest{RunID: runID, Entries: make(map[string]Entry)}
	}

	manifest.Entries[kind] = Entry{
		Kind:           kind,
		Ref:            FormatRef(hash),
		Hash:           FormatHash(hash),
		Size:           int64(len(payload)),
		CompressedSize: compressedSize,
		Compression:    tag.String(),
		SavedAt:        store.clock.Now().UTC(),
		Meta:           meta,
	}

	if err := store.writeManifest(manifest); err != nil {
		return "", err
	}

	store.logger.Debug("artifact saved",
		"kind", kind,
		"run", runID,
		"ref", FormatRef(hash),
		"size", len(payload),
		"compressed", compressedSize,
	)
	return FormatRef(hash), nil
}

// Load returns the uncompressed payload stored for the given kind in
// the given run. Returns ErrNotFound if the run has no manifest or
// the manifest has no entry of that kind.
func (store *Store) Load(kind, runID string) ([]byte, error) {
	manifest, err := store.loadManifest(runID)
	if err != nil {
		return nil, err
	}
	entry, ok := manifest.Entries[kind]
	if !ok {
		return nil, fmt.Errorf("run %s has no %s artifact: %w", runID, kind, ErrNotFound)
	}

	hash, err := ParseHash(entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("run %s manifest: %w", runID, err)
	}
	payload, err := store.readObject(hash)
	if err != nil {
		return nil, err
	}

	// Integrity check: the object must hash back to its address.
	if HashPayload(payload) != hash {
		return nil, fmt.Errorf("artifact %s: content does not match its hash", entry.Ref)
	}
	return payload, nil
}

// ManifestFor returns the manifest for a run, or ErrNotFound.
func (store *Store) ManifestFor(runID string) (*Manifest, error) {
	return store.loadManifest(runID)
}

// Cleanup removes leftover temporary files from interrupted writes.
// Called once per reconciliation run regardless of outcome.
func (store *Store) Cleanup() error {
	entries, err := os.ReadDir(filepath.Join(store.root, tmpDir))
	if err != nil {
		return fmt.Errorf("reading tmp directory: %w", err)
	}
	for _, entry := range entries {
		path := filepath.Join(store.root, tmpDir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// writeObject stores a payload under its hash if not already present.
// Returns the on-disk object size including the header and the
// compression tag used. Writes go through tmp/ and are renamed into
// place so readers never observe a partial object.
func (store *Store) writeObject(hash Hash, payload []byte) (int64, CompressionTag, error) {
	path := store.objectPath(hash)

	if info, err := os.Stat(path); err == nil {
		// Already stored: identical payload from an earlier save.
		tag, err := readObjectTag(path)
		if err != nil {
			return 0, 0, err
		}
		return info.Size(), tag, nil
	}

	tag := selectCompression(len(payload))
	compressed, err := compress(payload, tag)
	if err != nil {
		if !errors.Is(err, errIncompressible) {
			return 0, 0, fmt.Errorf("compressing artifact: %w", err)
		}
		tag = CompressionNone
		compressed = payload
	}

	object := make([]byte, objectHeaderSize+len(compressed))
	object[0] = byte(tag)
	binary.LittleEndian.PutUint64(object[1:9], uint64(len(payload)))
	copy(object[objectHeaderSize:], compressed)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, 0, fmt.Errorf("creating object directory: %w", err)
	}
	if err := store.atomicWrite(path, object); err != nil {
		return 0, 0, err
	}
	return int64(len(object)), tag, nil
}

// readObjectTag reads the compression tag byte from an existing
// object file.
func readObjectTag(path string) (CompressionTag, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening object: %w", err)
	}
	defer file.Close()

	var header [1]byte
	if _, err := io.ReadFull(file, header[:]); err != nil {
		return 0, fmt.Errorf("reading object header: %w", err)
	}
	return CompressionTag(header[0]), nil
}

// readObject loads and decompresses an object by hash.
func (store *Store) readObject(hash Hash) ([]byte, error) {
	object, err := os.ReadFile(store.objectPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", FormatRef(hash), ErrNotFound)
		}
		return nil, fmt.Errorf("reading object %s: %w", FormatRef(hash), err)
	}
	if len(object) < objectHeaderSize {
		return nil, fmt.Errorf("object %s: truncated header", FormatRef(hash))
	}

	tag := CompressionTag(object[0])
	uncompressedSize := binary.LittleEndian.Uint64(object[1:9])
	payload, err := decompress(object[objectHeaderSize:], tag, int(uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", FormatRef(hash), err)
	}
	return payload, nil
}

// objectPath fans objects out by the first hex byte of the hash to
// keep directory sizes manageable.
func (store *Store) objectPath(hash Hash) string {
	hex := FormatHash(hash)
	return filepath.Join(store.root, objectDir, hex[:2], hex+".obj")
}

func (store *Store) manifestPath(runID string) string {
	return filepath.Join(store.root, manifestDir, runID+".cbor")
}

func (store *Store) loadManifest(runID string) (*Manifest, error) {
	data, err := os.ReadFile(store.manifestPath(runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("reading manifest for run %s: %w", runID, err)
	}
	var manifest Manifest
	if err := codec.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest for run %s: %w", runID, err)
	}
	return &manifest, nil
}

func (store *Store) writeManifest(manifest *Manifest) error {
	data, err := codec.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest for run %s: %w", manifest.RunID, err)
	}
	return store.atomicWrite(store.manifestPath(manifest.RunID), data)
}

// atomicWrite writes data to path via a temp file and rename.
func (store *Store) atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Join(store.root, tmpDir), "write-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
