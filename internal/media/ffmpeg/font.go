package ffmpeg

import (
	"os"
	"strings"
)

// Font selects the drawtext face, either by file or by fontconfig name.
type Font struct {
	File string
	Name string
}

// ResolveFont returns the first candidate that exists as a regular file, or
// the named fallback face.
func ResolveFont(candidates []string, fallback string) Font {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return Font{File: candidate}
		}
	}
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = "Sans"
	}
	return Font{Name: fallback}
}

// Param renders the drawtext option for this font.
func (f Font) Param() Param {
	if f.File != "" {
		return P("fontfile", f.File)
	}
	return P("font", f.Name)
}
