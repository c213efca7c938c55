package zim

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenEmptyArchiveYieldsNothing(t *testing.T) {
	data := buildArchive(t, nil, nil, nil)
	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	count, exact := r.Len()
	require.True(t, exact)
	require.Equal(t, 0, count)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSingleUncompressedClusterYieldsBlobsWithMetadata(t *testing.T) {
	entries := []testDirEntry{
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 0, url: "a", title: "A title"},
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 1, url: "empty", title: ""},
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 2, url: "c", title: "C title"},
	}
	clusters := []testCluster{
		{compression: compressionIdentity, blobs: [][]byte{[]byte("ab"), {}, []byte("cdef")}},
	}
	data := buildArchive(t, []string{"text/plain"}, entries, clusters)

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	count, exact := r.Len()
	require.True(t, exact)
	require.Equal(t, 3, count)

	rec, err := r.Next()
	require.NoError(t, err)
	require.True(t, rec.HasMetadata)
	require.Equal(t, "a", rec.URL)
	require.Equal(t, "A title", rec.Title)
	require.EqualValues(t, 2, rec.Length)
	body, err := io.ReadAll(rec)
	require.NoError(t, err)
	require.Equal(t, "ab", string(body))

	rec, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "empty", rec.URL)
	require.EqualValues(t, 0, rec.Length)
	body, err = io.ReadAll(rec)
	require.NoError(t, err)
	require.Empty(t, body)

	rec, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "c", rec.URL)
	// Don't read the body at all; Next must skip the unread tail cleanly.

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestRedirectEntryExcludedFromIndexButBlobStillYielded(t *testing.T) {
	entries := []testDirEntry{
		{mimeIndex: mimeRedirect, namespace: 'C', url: "alias"},
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 0, url: "target", title: "Target"},
	}
	clusters := []testCluster{
		{compression: compressionIdentity, blobs: [][]byte{[]byte("hello")}},
	}
	data := buildArchive(t, []string{"text/plain"}, entries, clusters)

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	count, exact := r.Len()
	require.True(t, exact)
	require.Equal(t, 1, count)

	rec, err := r.Next()
	require.NoError(t, err)
	require.True(t, rec.HasMetadata)
	require.Equal(t, "target", rec.URL)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSkipMetadataReportsRawEntryCountInexact(t *testing.T) {
	entries := []testDirEntry{
		{mimeIndex: mimeRedirect, namespace: 'C', url: "alias"},
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 0, url: "target", title: "Target"},
	}
	clusters := []testCluster{
		{compression: compressionIdentity, blobs: [][]byte{[]byte("hello")}},
	}
	data := buildArchive(t, []string{"text/plain"}, entries, clusters)

	r, err := Open(bytes.NewReader(data), WithSkipMetadata())
	require.NoError(t, err)
	defer r.Close()

	count, exact := r.Len()
	require.False(t, exact)
	require.Equal(t, 2, count)

	rec, err := r.Next()
	require.NoError(t, err)
	require.False(t, rec.HasMetadata)
	body, err := io.ReadAll(rec)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestTwoClustersWithDifferentCompressionCodecs(t *testing.T) {
	entries := []testDirEntry{
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 0, url: "lzma-a"},
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 1, url: "lzma-b"},
		{mimeIndex: 0, namespace: 'C', clusterIndex: 1, blobIndex: 0, url: "zstd-a"},
	}
	clusters := []testCluster{
		{compression: compressionLZMA2, blobs: [][]byte{
			bytes.Repeat([]byte("x"), 300),
			[]byte("second blob"),
		}},
		{compression: compressionZstd, blobs: [][]byte{
			bytes.Repeat([]byte("y"), 300),
		}},
	}
	data := buildArchive(t, []string{"text/plain"}, entries, clusters)

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "lzma-a", rec.URL)
	// Read only part of the first blob; Next must discard the remainder
	// before decoding the second blob from the same LZMA2 stream.
	partial := make([]byte, 5)
	_, err = io.ReadFull(rec, partial)
	require.NoError(t, err)
	require.Equal(t, "xxxxx", string(partial))

	rec, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "lzma-b", rec.URL)
	body, err := io.ReadAll(rec)
	require.NoError(t, err)
	require.Equal(t, "second blob", string(body))

	rec, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "zstd-a", rec.URL)
	body, err = io.ReadAll(rec)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("y"), 300), body)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestWideClusterOffsetsAreHonored(t *testing.T) {
	entries := []testDirEntry{
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 0, url: "only"},
	}
	clusters := []testCluster{
		{compression: compressionIdentity, wideOffsets: true, blobs: [][]byte{[]byte("wide offset payload")}},
	}
	data := buildArchive(t, []string{"text/plain"}, entries, clusters)

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)
	body, err := io.ReadAll(rec)
	require.NoError(t, err)
	require.Equal(t, "wide offset payload", string(body))
}

func TestReadAfterNextReturnsInvalidated(t *testing.T) {
	entries := []testDirEntry{
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 0, url: "a"},
		{mimeIndex: 0, namespace: 'C', clusterIndex: 0, blobIndex: 1, url: "b"},
	}
	clusters := []testCluster{
		{compression: compressionIdentity, blobs: [][]byte{[]byte("one"), []byte("two")}},
	}
	data := buildArchive(t, []string{"text/plain"}, entries, clusters)

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)

	_, err = first.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrInvalidated)
}

func TestOpenRejectsUnsupportedMajorVersion(t *testing.T) {
	data := buildArchive(t, nil, nil, nil)
	// Overwrite the major version field (bytes 4:6) with an unsupported value.
	data[4] = 4
	data[5] = 0

	_, err := Open(bytes.NewReader(data))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	data := buildArchive(t, nil, nil, nil)
	data[0] ^= 0xFF

	_, err := Open(bytes.NewReader(data))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}
