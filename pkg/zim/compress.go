package zim

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// zstdDecoderPool recycles zstd decoder contexts across clusters, avoiding
// a fresh allocation of decoder state for every cluster on large archives.
var zstdDecoderPool = sync.Pool{
	New: func() interface{} {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil
		}
		return dec
	},
}

// pooledZstdReader wraps a pooled *zstd.Decoder so it can be returned to the
// pool once the cluster holding it is exhausted, instead of being closed.
type pooledZstdReader struct {
	dec *zstd.Decoder
}

func (r *pooledZstdReader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *pooledZstdReader) release() {
	zstdDecoderPool.Put(r.dec)
}

// newClusterStream installs the decompressor named by mode's low nibble over
// src, which must be positioned just after the cluster's mode byte. The
// identity case returns src directly and does not double-buffer.
func newClusterStream(src io.Reader, mode byte) (io.Reader, func(), error) {
	switch mode & 0x0F {
	case compressionIdentity:
		return src, func() {}, nil

	case compressionLZMA2:
		// Code 4 clusters are XZ-container streams (magic \xFD7zXZ), not raw
		// LZMA2, so this must go through the container reader rather than
		// lzma.NewReader2.
		r, err := xz.NewReader(src)
		if err != nil {
			return nil, nil, fmt.Errorf("zim: opening lzma2 cluster: %w", err)
		}
		return r, func() {}, nil

	case compressionZstd:
		decIface := zstdDecoderPool.Get()
		dec, ok := decIface.(*zstd.Decoder)
		if !ok || dec == nil {
			d, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, nil, fmt.Errorf("zim: opening zstd cluster: %w", err)
			}
			return d, func() { d.Close() }, nil
		}
		if err := dec.Reset(src); err != nil {
			zstdDecoderPool.Put(dec)
			return nil, nil, fmt.Errorf("zim: resetting zstd cluster: %w", err)
		}
		wrapped := &pooledZstdReader{dec: dec}
		return wrapped, wrapped.release, nil

	default:
		return nil, nil, newFormatError(fmt.Sprintf("unsupported cluster compression code %d", mode&0x0F), nil)
	}
}

// offsetWidth returns the byte width of blob offsets encoded by mode's bit 4.
func offsetWidth(mode byte) int {
	if mode&offsetWidthBit != 0 {
		return 8
	}
	return 4
}
