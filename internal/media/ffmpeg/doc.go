// Package ffmpeg drives the ffmpeg binary for every local rendering step:
// PCM speech transcode, still-plus-narration slide composites, and clip
// stitching with a stream-copy fast path and a re-encode fallback.
//
// Filter graphs are assembled with Graph rather than string concatenation so
// serialization is deterministic and every option value is quoted. Text that
// reaches drawtext always passes through SanitizeText first.
package ffmpeg
