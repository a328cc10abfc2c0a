// Package ffprobe wraps ffprobe's JSON output and flattens it into the
// technical metadata recorded on jobs (duration, dimensions, codec,
// container format, bitrate). Inspect accepts local paths and URLs, so the
// same code probes local files and presigned object storage links.
package ffprobe
