// Package storage moves uploaded media into an object store and answers
// questions about stored objects.
//
// Two providers exist: LocalProvider keeps objects in a directory and serves
// them from disk, MinioProvider puts them in an S3-compatible bucket and hands
// out presigned links. Both probe technical metadata with ffprobe. References
// are opaque to callers; only the provider that issued one can resolve it.
package storage
