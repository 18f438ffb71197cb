// Package ffprobe inspects rendered media files.
//
// A Prober runs ffprobe with JSON output and returns a Result whose helpers
// report duration, audio channel count and stream counts. The workflow uses it
// to size slide segments to their narration and to log final durations.
package ffprobe
