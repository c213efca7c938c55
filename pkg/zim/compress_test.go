package zim

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// compressFor encodes raw per the cluster compression code used by
// buildArchive's fixtures, mirroring the codecs newClusterStream consumes.
func compressFor(t interface{ Helper(); Fatalf(string, ...interface{}) }, compression byte, raw []byte) []byte {
	t.Helper()

	switch compression {
	case compressionIdentity:
		return raw

	case compressionLZMA2:
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		if err != nil {
			t.Fatalf("xz.NewWriter: %v", err)
		}
		if _, err := w.Write(raw); err != nil {
			t.Fatalf("xz write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("xz close: %v", err)
		}
		return buf.Bytes()

	case compressionZstd:
		var buf bytes.Buffer
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd.NewWriter: %v", err)
		}
		if _, err := w.Write(raw); err != nil {
			t.Fatalf("zstd write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("zstd close: %v", err)
		}
		return buf.Bytes()

	default:
		t.Fatalf("compressFor: unsupported compression code %d", compression)
		return nil
	}
}
