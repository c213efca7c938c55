package zim

import (
	"bytes"
	"encoding/binary"
)

// testCluster describes one cluster to embed in a synthetic archive.
type testCluster struct {
	compression byte
	wideOffsets bool
	blobs       [][]byte
}

// testDirEntry describes one directory entry to embed in a synthetic
// archive. Sentinel entries (redirect/link/deleted) set mimeIndex to one of
// the sentinel constants and leave the content fields unused.
type testDirEntry struct {
	mimeIndex    uint16
	namespace    byte
	revision     uint32
	clusterIndex uint32
	blobIndex    uint32
	url          string
	title        string
}

// buildArchive assembles a minimal but complete ZIM archive in memory:
// header, MIME list, URL pointer list, cluster pointer list, directory
// entries, and clusters, laid out in that order. It returns the raw bytes.
func buildArchive(t interface{ Helper(); Fatalf(string, ...interface{}) }, mimeTypes []string, entries []testDirEntry, clusters []testCluster) []byte {
	t.Helper()

	var mimeList bytes.Buffer
	for _, m := range mimeTypes {
		mimeList.WriteString(m)
		mimeList.WriteByte(0)
	}
	mimeList.WriteByte(0)

	const headerLen = headerSize
	mimeListOff := int64(headerLen)
	urlPtrOff := mimeListOff + int64(mimeList.Len())
	clusterPtrOff := urlPtrOff + int64(len(entries))*8

	// Lay out directory entries right after the cluster pointer list, and
	// record each one's absolute offset for the URL pointer list.
	var dirBytes bytes.Buffer
	entryOffsets := make([]int64, len(entries))
	base := clusterPtrOff + int64(len(clusters))*8
	for i, e := range entries {
		entryOffsets[i] = base + int64(dirBytes.Len())
		binary.Write(&dirBytes, binary.LittleEndian, e.mimeIndex)
		if e.mimeIndex == mimeRedirect || e.mimeIndex == mimeLinkTarget || e.mimeIndex == mimeDeletedItem {
			continue
		}
		dirBytes.WriteByte(0) // parameter length
		dirBytes.WriteByte(e.namespace)
		binary.Write(&dirBytes, binary.LittleEndian, e.revision)
		binary.Write(&dirBytes, binary.LittleEndian, e.clusterIndex)
		binary.Write(&dirBytes, binary.LittleEndian, e.blobIndex)
		dirBytes.WriteString(e.url)
		dirBytes.WriteByte(0)
		dirBytes.WriteString(e.title)
		dirBytes.WriteByte(0)
	}

	clusterDataOff := base + int64(dirBytes.Len())
	var clusterBytes bytes.Buffer
	clusterOffsets := make([]int64, len(clusters))
	for i, c := range clusters {
		clusterOffsets[i] = clusterDataOff + int64(clusterBytes.Len())
		clusterBytes.WriteByte(encodeMode(c))
		payload := encodeClusterPayload(t, c)
		clusterBytes.Write(payload)
	}

	var out bytes.Buffer
	hdr := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(hdr[0:4], magicNumber)
	binary.LittleEndian.PutUint16(hdr[4:6], 6)
	binary.LittleEndian.PutUint16(hdr[6:8], 0)
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(len(entries)))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(len(clusters)))
	binary.LittleEndian.PutUint64(hdr[32:40], uint64(urlPtrOff))
	binary.LittleEndian.PutUint64(hdr[40:48], uint64(urlPtrOff)) // title pointer list unused by reader
	binary.LittleEndian.PutUint64(hdr[48:56], uint64(clusterPtrOff))
	binary.LittleEndian.PutUint64(hdr[56:64], uint64(mimeListOff))
	out.Write(hdr)

	out.Write(mimeList.Bytes())

	for _, off := range entryOffsets {
		binary.Write(&out, binary.LittleEndian, uint64(off))
	}
	for _, off := range clusterOffsets {
		binary.Write(&out, binary.LittleEndian, uint64(off))
	}
	out.Write(dirBytes.Bytes())
	out.Write(clusterBytes.Bytes())

	return out.Bytes()
}

func encodeMode(c testCluster) byte {
	mode := c.compression
	if c.wideOffsets {
		mode |= offsetWidthBit
	}
	return mode
}

// encodeClusterPayload builds the blob offset table followed by the blob
// payloads, then compresses the whole thing per the cluster's compression
// code (identity passthrough for tests that don't care about codec glue).
func encodeClusterPayload(t interface{ Helper(); Fatalf(string, ...interface{}) }, c testCluster) []byte {
	width := 4
	if c.wideOffsets {
		width = 8
	}

	var raw bytes.Buffer
	tableSize := (len(c.blobs) + 1) * width
	offset := uint64(tableSize)
	writeOffset(&raw, offset, width)
	for _, b := range c.blobs {
		offset += uint64(len(b))
		writeOffset(&raw, offset, width)
	}
	for _, b := range c.blobs {
		raw.Write(b)
	}

	return compressFor(t, c.compression, raw.Bytes())
}

func writeOffset(buf *bytes.Buffer, v uint64, width int) {
	if width == 8 {
		binary.Write(buf, binary.LittleEndian, v)
	} else {
		binary.Write(buf, binary.LittleEndian, uint32(v))
	}
}
