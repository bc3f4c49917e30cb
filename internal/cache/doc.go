// Package cache is the blob store behind the content-cache server. Every
// entry is one archive file plus a ".sha256" sidecar holding its digest:
//
//	<StoragePath>/<namespace>/<escaped key>
//	<StoragePath>/<namespace>/<escaped key>.sha256
//
// Blobs are written to a temp file and renamed into place, and the sidecar
// is written last, so an entry without a sidecar is treated as absent.
package cache
