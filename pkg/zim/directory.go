package zim

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// dirEntry is the metadata carried by a content directory entry, keyed by
// its (cluster_index, blob_index) coordinate.
type dirEntry struct {
	namespace byte
	mimeType  string
	url       string
	title     string
	revision  uint32
}

// dirKey packs a (cluster, blob) coordinate into a single map key.
func dirKey(clusterIndex, blobIndex uint32) uint64 {
	return uint64(clusterIndex)<<32 | uint64(blobIndex)
}

// buildDirectoryIndex walks the URL pointer list in offset-sorted order,
// reading each content directory entry and discarding non-content sentinels
// (redirect, link target, deleted). It returns a mapping from
// (cluster_index, blob_index) to metadata, and the number of content entries
// found.
func buildDirectoryIndex(src *bufferedSource, h *header, zeroOffset int64) (map[uint64]dirEntry, int, error) {
	mimeTypes, err := readMimeList(src, zeroOffset+int64(h.mimeListPos))
	if err != nil {
		return nil, 0, err
	}

	if _, err := src.Seek(zeroOffset+int64(h.urlPtrPos), io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("zim: seeking url pointer list: %w", err)
	}
	offsets, err := readUint64List(src, h.entryCount)
	if err != nil {
		return nil, 0, fmt.Errorf("zim: reading url pointer list: %w", err)
	}

	// Reading in file order minimizes backward seeks, even though the
	// directory is keyed by (cluster, blob), not by file offset.
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	index := make(map[uint64]dirEntry, len(offsets))
	count := 0
	var mimeBuf [2]byte
	for _, off := range offsets {
		if _, err := src.Seek(zeroOffset+int64(off), io.SeekStart); err != nil {
			return nil, 0, fmt.Errorf("zim: seeking directory entry: %w", err)
		}

		if _, err := io.ReadFull(src, mimeBuf[:]); err != nil {
			return nil, 0, fmt.Errorf("zim: reading directory entry mime type: %w", err)
		}
		mimeIndex := binary.LittleEndian.Uint16(mimeBuf[:])

		if mimeIndex == mimeRedirect || mimeIndex == mimeLinkTarget || mimeIndex == mimeDeletedItem {
			continue
		}
		if int(mimeIndex) >= len(mimeTypes) {
			return nil, 0, newFormatError(fmt.Sprintf("mime type index %d out of range", mimeIndex), nil)
		}

		entry, err := readContentEntryTail(src, mimeTypes[mimeIndex])
		if err != nil {
			return nil, 0, err
		}
		index[dirKey(entry.clusterIndex, entry.blobIndex)] = entry.dirEntry
		count++
	}

	return index, count, nil
}

// contentEntryTail bundles a directory entry's cluster/blob coordinate
// alongside the metadata consumers care about.
type contentEntryTail struct {
	clusterIndex uint32
	blobIndex    uint32
	dirEntry
}

// readContentEntryTail reads the portion of a content directory entry that
// follows the MIME-type index: parameter length, namespace, revision,
// cluster index, blob index, URL, title, then the opaque parameter bytes
// (discarded).
func readContentEntryTail(src io.Reader, mimeType string) (contentEntryTail, error) {
	var head [10]byte
	if _, err := io.ReadFull(src, head[:]); err != nil {
		return contentEntryTail{}, fmt.Errorf("zim: reading directory entry: %w", err)
	}
	paramLen := head[0]
	namespace := head[1]
	revision := binary.LittleEndian.Uint32(head[2:6])
	clusterIndex := binary.LittleEndian.Uint32(head[6:10])

	var blobBuf [4]byte
	if _, err := io.ReadFull(src, blobBuf[:]); err != nil {
		return contentEntryTail{}, fmt.Errorf("zim: reading directory entry: %w", err)
	}
	blobIndex := binary.LittleEndian.Uint32(blobBuf[:])

	url, err := readCString(src)
	if err != nil {
		return contentEntryTail{}, err
	}
	title, err := readCString(src)
	if err != nil {
		return contentEntryTail{}, err
	}

	if paramLen > 0 {
		if _, err := io.CopyN(io.Discard, src, int64(paramLen)); err != nil {
			return contentEntryTail{}, fmt.Errorf("zim: reading directory entry parameters: %w", err)
		}
	}

	return contentEntryTail{
		clusterIndex: clusterIndex,
		blobIndex:    blobIndex,
		dirEntry: dirEntry{
			namespace: namespace,
			mimeType:  mimeType,
			url:       url,
			title:     title,
			revision:  revision,
		},
	}, nil
}

// readMimeList reads the NUL-terminated MIME type strings starting at off,
// stopping at the first empty string.
func readMimeList(src *bufferedSource, off int64) ([]string, error) {
	if _, err := src.Seek(off, io.SeekStart); err != nil {
		return nil, fmt.Errorf("zim: seeking mime list: %w", err)
	}
	var mimeTypes []string
	for {
		s, err := readCString(src)
		if err != nil {
			return nil, fmt.Errorf("zim: reading mime list: %w", err)
		}
		if s == "" {
			break
		}
		mimeTypes = append(mimeTypes, s)
	}
	return mimeTypes, nil
}
