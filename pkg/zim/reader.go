package zim

import (
	"encoding/binary"
	"fmt"
	"io"
)

// options holds the construction-time knobs accepted by Open.
type options struct {
	skipMetadata bool
	bufferSize   int
}

// Option configures Open.
type Option func(*options)

// WithSkipMetadata skips building the directory index, trading metadata
// (namespace, MIME type, URL, title, revision) for a faster open on archives
// where only blob bytes are needed.
func WithSkipMetadata() Option {
	return func(o *options) { o.skipMetadata = true }
}

// WithBufferSize sets the buffered source's window size. The default is
// defaultBufferSize.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// Reader iterates a ZIM archive's content entries in cluster-major,
// blob-minor order. It is not safe for concurrent use: one logical cursor
// walks the archive, and at most one Record is live at a time.
type Reader struct {
	src        io.ReadSeeker
	buf        *bufferedSource
	zeroOffset int64

	h            *header
	directories  map[uint64]dirEntry // nil when metadata was skipped
	contentCount int
	clusterPtrs  []uint64

	clusterIndex int64
	blobIndex    uint32
	blobCount    uint32
	offsets      []uint64

	stream       io.Reader
	releaseClust func()

	current *Record
	done    bool
}

// Open parses the header, optionally builds the directory index, and loads
// the cluster pointer table. src must be positioned at the archive's origin.
func Open(src io.ReadSeeker, opts ...Option) (*Reader, error) {
	o := options{bufferSize: defaultBufferSize}
	for _, fn := range opts {
		fn(&o)
	}

	buf, err := newBufferedSource(src, o.bufferSize)
	if err != nil {
		return nil, fmt.Errorf("zim: %w", err)
	}
	zeroOffset := buf.Tell()

	h, err := readHeader(buf)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		src:          src,
		buf:          buf,
		zeroOffset:   zeroOffset,
		h:            h,
		clusterIndex: -1,
	}

	if !o.skipMetadata {
		directories, count, err := buildDirectoryIndex(buf, h, zeroOffset)
		if err != nil {
			return nil, err
		}
		r.directories = directories
		r.contentCount = count
	}

	if _, err := buf.Seek(zeroOffset+int64(h.clusterPtrPos), io.SeekStart); err != nil {
		return nil, fmt.Errorf("zim: seeking cluster pointer list: %w", err)
	}
	clusterPtrs, err := readUint64List(buf, h.clusterCount)
	if err != nil {
		return nil, fmt.Errorf("zim: reading cluster pointer list: %w", err)
	}
	r.clusterPtrs = clusterPtrs

	return r, nil
}

// Len reports the number of entries the reader will yield. The second
// return value is true when that count is the number of content entries
// (metadata was loaded); it is false when metadata was skipped, in which
// case the count is the archive's raw entry count (including non-content
// entries) rather than an exact yield count.
func (r *Reader) Len() (int, bool) {
	if r.directories != nil {
		return r.contentCount, true
	}
	return int(r.h.entryCount), false
}

// UUID returns the archive's 16-byte identifier.
func (r *Reader) UUID() [16]byte {
	return r.h.uuid
}

// Version returns the archive's major and minor format version.
func (r *Reader) Version() (major, minor uint16) {
	return r.h.major, r.h.minor
}

// Next advances to the next content entry and returns a Record bound to it.
// It returns io.EOF once the archive is exhausted. Any previously returned
// Record is invalidated before the next one is minted.
func (r *Reader) Next() (*Record, error) {
	if r.done {
		return nil, io.EOF
	}

	if r.current != nil {
		if r.current.remaining > 0 {
			if _, err := io.CopyN(io.Discard, r.stream, r.current.remaining); err != nil {
				return nil, fmt.Errorf("zim: skipping unread record tail: %w", err)
			}
		}
		r.current.invalidate()
		r.current = nil
	}

	r.blobIndex++
	for r.blobIndex >= r.blobCount {
		r.clusterIndex++
		if r.clusterIndex >= int64(len(r.clusterPtrs)) {
			r.done = true
			r.releaseCluster()
			return nil, io.EOF
		}
		r.blobIndex = 0
		if err := r.enterCluster(); err != nil {
			return nil, err
		}
	}

	length := int64(r.offsets[r.blobIndex+1] - r.offsets[r.blobIndex])
	rec := &Record{Length: length, stream: r.stream, remaining: length}
	if r.directories != nil {
		if e, ok := r.directories[dirKey(uint32(r.clusterIndex), r.blobIndex)]; ok {
			rec.HasMetadata = true
			rec.Namespace = e.namespace
			rec.MIMEType = e.mimeType
			rec.URL = e.url
			rec.Title = e.title
			rec.Revision = e.revision
		}
	}
	r.current = rec
	return rec, nil
}

// enterCluster moves the underlying source to clusterPtrs[clusterIndex],
// installs the cluster's decompressor, and parses its blob offset table.
func (r *Reader) enterCluster() error {
	r.releaseCluster()

	if _, err := r.buf.Seek(r.zeroOffset+int64(r.clusterPtrs[r.clusterIndex]), io.SeekStart); err != nil {
		return fmt.Errorf("zim: seeking cluster %d: %w", r.clusterIndex, err)
	}

	var modeBuf [1]byte
	if _, err := io.ReadFull(r.buf, modeBuf[:]); err != nil {
		return fmt.Errorf("zim: reading cluster %d mode byte: %w", r.clusterIndex, err)
	}
	mode := modeBuf[0]

	stream, release, err := newClusterStream(r.buf, mode)
	if err != nil {
		return err
	}
	r.stream = stream
	r.releaseClust = release

	width := offsetWidth(mode)
	firstOffset, err := readClusterOffset(stream, width)
	if err != nil {
		return fmt.Errorf("zim: reading cluster %d blob offset table: %w", r.clusterIndex, err)
	}

	offsetCount := firstOffset / uint64(width)
	if offsetCount == 0 {
		return newFormatError(fmt.Sprintf("cluster %d has an empty blob offset table", r.clusterIndex), nil)
	}
	r.blobCount = uint32(offsetCount - 1)

	offsets := make([]uint64, offsetCount)
	offsets[0] = firstOffset
	for i := uint64(1); i < offsetCount; i++ {
		off, err := readClusterOffset(stream, width)
		if err != nil {
			return fmt.Errorf("zim: reading cluster %d blob offset table: %w", r.clusterIndex, err)
		}
		offsets[i] = off
	}
	r.offsets = offsets

	return nil
}

// readClusterOffset reads one blob-table offset of the given byte width.
func readClusterOffset(src io.Reader, width int) (uint64, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(src, buf); err != nil {
		return 0, err
	}
	if width == 8 {
		return binary.LittleEndian.Uint64(buf), nil
	}
	return uint64(binary.LittleEndian.Uint32(buf)), nil
}

// releaseCluster drops the current cluster's decompressor, if any.
func (r *Reader) releaseCluster() {
	if r.releaseClust != nil {
		r.releaseClust()
		r.releaseClust = nil
	}
	r.stream = nil
}

// Close invalidates any live record and closes the underlying source, if it
// implements io.Closer. Re-closing is not guaranteed to be safe.
func (r *Reader) Close() error {
	if r.current != nil {
		r.current.invalidate()
		r.current = nil
	}
	r.releaseCluster()
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
