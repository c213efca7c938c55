// Package zim reads ZIM archives (versions 5 and 6) as a forward-only
// sequence of content records.
//
// It does not support random access by URL or title, writing archives, or
// verifying the archive checksum. Applications needing those should look
// elsewhere; this package exists to stream through an archive once, in
// order, as cheaply as possible.
package zim
