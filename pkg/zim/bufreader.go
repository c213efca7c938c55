package zim

import "io"

// defaultBufferSize mirrors io.DEFAULT_BUFFER_SIZE, the default the Python
// original uses for BufferedFile.
const defaultBufferSize = 8192

// bufferedSource wraps a seekable byte source and services small reads from
// an in-memory window, eliding backing seeks whenever the target offset
// already lies within that window.
//
// Archive reading mixes tiny structured reads (offsets, sentinels, mime
// strings) with large sequential blob reads. Buffering keeps the syscall
// count down for the former, and in-window seeks let the directory scan
// jump between entries without thrashing the backing cursor.
type bufferedSource struct {
	src    io.ReadSeeker
	buf    []byte
	winOff int64 // absolute offset at which buf starts
	pos    int   // cursor within buf
	length int   // valid bytes in buf
}

func newBufferedSource(src io.ReadSeeker, bufferSize int) (*bufferedSource, error) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	off, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return &bufferedSource{
		src:    src,
		buf:    make([]byte, bufferSize),
		winOff: off,
	}, nil
}

func (b *bufferedSource) Tell() int64 {
	return b.winOff + int64(b.pos)
}

// Read copies from the window; when the window is exhausted, it advances the
// window start by the previous window length and refills from the backing
// source, continuing until the request is satisfied or the backing source
// reports end of stream.
func (b *bufferedSource) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n := copy(p[total:], b.buf[b.pos:b.length])
		total += n
		b.pos += n
		if total >= len(p) {
			break
		}

		b.winOff += int64(b.length)
		nr, err := b.src.Read(b.buf)
		b.length = nr
		b.pos = 0
		if nr == 0 {
			if err != nil && err != io.EOF {
				return total, err
			}
			break
		}
	}
	if total == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return total, nil
}

// Seek supports SEEK_CUR (converted to absolute) and SEEK_SET. Seeks landing
// within [winOff, winOff+length] only move the cursor; anything else
// delegates to the backing source and invalidates the window.
func (b *bufferedSource) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		offset += b.Tell()
		whence = io.SeekStart
	case io.SeekStart:
		// already absolute
	default:
		abs, err := b.src.Seek(offset, whence)
		if err != nil {
			return 0, err
		}
		b.winOff = abs
		b.pos = 0
		b.length = 0
		return abs, nil
	}

	if offset >= b.winOff && offset <= b.winOff+int64(b.length) {
		b.pos = int(offset - b.winOff)
		return offset, nil
	}

	abs, err := b.src.Seek(offset, io.SeekStart)
	if err != nil {
		return 0, err
	}
	b.winOff = abs
	b.pos = 0
	b.length = 0
	return abs, nil
}
