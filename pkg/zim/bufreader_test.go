package zim

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// loggedSource counts calls made to the backing source, so tests can assert
// on syscall-elision behavior without instrumenting the OS. Seek(0,
// io.SeekCurrent) only reports the position and moves nothing, so it is not
// counted as a seek.
type loggedSource struct {
	*bytes.Reader
	reads int
	seeks int
}

func newLoggedSource(data []byte) *loggedSource {
	return &loggedSource{Reader: bytes.NewReader(data)}
}

func (l *loggedSource) Read(p []byte) (int, error) {
	l.reads++
	return l.Reader.Read(p)
}

func (l *loggedSource) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekCurrent {
		l.seeks++
	}
	return l.Reader.Seek(offset, whence)
}

func TestBufferedSourceMatchesSpecTrace(t *testing.T) {
	data := []byte("abcdefghijklmnopqrstuvwxyz")
	src := newLoggedSource(data)
	buf, err := newBufferedSource(src, 5)
	require.NoError(t, err)

	require.Equal(t, 0, src.reads)
	require.Equal(t, 0, src.seeks)

	read := func(n int) []byte {
		p := make([]byte, n)
		nr, err := buf.Read(p)
		require.NoError(t, err)
		return p[:nr]
	}

	require.Equal(t, []byte("ab"), read(2))
	require.Equal(t, 1, src.reads)
	require.Equal(t, 0, src.seeks)

	require.Equal(t, []byte("cde"), read(3))
	require.Equal(t, 1, src.reads)

	require.Equal(t, []byte("f"), read(1))
	require.Equal(t, 2, src.reads)

	require.Equal(t, []byte("ghijklmno"), read(9))
	require.Equal(t, 3, src.reads)
	require.Equal(t, 0, src.seeks)

	off, err := buf.Seek(12, io.SeekStart)
	require.NoError(t, err)
	require.EqualValues(t, 12, off)
	require.Equal(t, 3, src.reads)
	require.Equal(t, 0, src.seeks)

	require.Equal(t, []byte("mno"), read(3))
	require.Equal(t, 3, src.reads)
	require.Equal(t, 0, src.seeks)

	off, err = buf.Seek(1, io.SeekCurrent)
	require.NoError(t, err)
	require.EqualValues(t, 16, off)
	require.Equal(t, 1, src.seeks)

	require.Equal(t, []byte("qrstuvwxyz"), read(10))
	require.Equal(t, 5, src.reads)
	require.Equal(t, 1, src.seeks)
}

func TestBufferedSourceExhaustsCleanlyAtEOF(t *testing.T) {
	src := newLoggedSource([]byte("hello"))
	buf, err := newBufferedSource(src, 3)
	require.NoError(t, err)

	got, err := io.ReadAll(&limitedReader{buf, 5})
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	p := make([]byte, 4)
	n, err := buf.Read(p)
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

// limitedReader adapts bufferedSource.Read (which never itself returns
// io.EOF on a partial, non-empty read) to io.ReadAll's expectations by
// bounding the total bytes requested.
type limitedReader struct {
	r *bufferedSource
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}
