package textutil

import "strings"

// maxTokenLen bounds tokens used as object-key and directory-name segments.
const maxTokenLen = 64

// SanitizeToken reduces an identity to a lowercase token safe for a single
// path segment. Diacritics are folded, runs of other characters collapse to
// one underscore, and the result is capped at 64 bytes. Empty results become
// "unknown".
func SanitizeToken(value string) string {
	folded := strings.ToLower(ASCIIFold(strings.TrimSpace(value)))
	var b strings.Builder
	gap := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	out := b.String()
	if len(out) > maxTokenLen {
		out = out[:maxTokenLen]
	}
	if out = strings.Trim(out, "_-"); out == "" {
		return "unknown"
	}
	return out
}
