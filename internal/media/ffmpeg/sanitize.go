package ffmpeg

import (
	"strings"

	"lessonmedia/internal/textutil"
)

// SanitizeText reduces text to letters, digits, and single spaces so it can be
// embedded in a drawtext option without escaping. When maxLen is positive the
// result is cut at the last word boundary that fits.
func SanitizeText(value string, maxLen int) string {
	folded := textutil.ASCIIFold(value)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r':
			b.WriteByte(' ')
		}
	}
	clean := strings.Join(strings.Fields(b.String()), " ")
	if maxLen <= 0 || len(clean) <= maxLen {
		return clean
	}
	cut := clean[:maxLen]
	if clean[maxLen] != ' ' {
		if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
			cut = cut[:idx]
		}
	}
	return strings.TrimSpace(cut)
}
