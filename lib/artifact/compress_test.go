// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"bytes"
	"testing"
)

func TestCompressionTag_Strings(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil {
			t.Fatalf("ParseCompressionTag(%q): %v", tag.String(), err)
		}
		if parsed != tag {
			t.Errorf("round trip %v -> %q -> %v", tag, tag.String(), parsed)
		}
	}

	if _, err := ParseCompressionTag("brotli"); err == nil {
		t.Error("expected error for unknown tag name")
	}
}

func TestCompressDecompress(t *testing.T) {
	payload := bytes.Repeat([]byte("dependency graph node "), 200)

	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, err := compress(payload, tag)
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			if len(compressed) >= len(payload) {
				t.Fatalf("repetitive payload did not shrink: %d >= %d", len(compressed), len(payload))
			}

			restored, err := decompress(compressed, tag, len(payload))
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if !bytes.Equal(restored, payload) {
				t.Error("round trip mismatch")
			}

			// A wrong expected size must be rejected, not silently
			// truncated.
			if _, err := decompress(compressed, tag, len(payload)-1); err == nil {
				t.Error("expected size mismatch error")
			}
		})
	}
}

func TestSelectCompression(t *testing.T) {
	if got := selectCompression(10); got != CompressionNone {
		t.Errorf("tiny payload: %v, want none", got)
	}
	if got := selectCompression(4096); got != CompressionLZ4 {
		t.Errorf("mid payload: %v, want lz4", got)
	}
	if got := selectCompression(1 << 20); got != CompressionZstd {
		t.Errorf("large payload: %v, want zstd", got)
	}
}
