package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RequiredEncoders are the ffmpeg encoders the pipelines select explicitly.
var RequiredEncoders = []string{"libx264", "aac"}

// EncoderRunner returns the output of `ffmpeg -encoders`.
type EncoderRunner func(ctx context.Context, binary string) ([]byte, error)

// CheckEncoders reports whether binary lists each encoder in want, plus the
// configured audio codec.
func CheckEncoders(ctx context.Context, binary, audioCodec string, run EncoderRunner) Status {
	result := Status{
		Name:        "ffmpeg encoders",
		Command:     binary,
		Description: "encoders used by transcode, composite and re-encode stitch",
	}
	if run == nil {
		run = listEncoders
	}
	want := append([]string(nil), RequiredEncoders...)
	if codec := strings.TrimSpace(audioCodec); codec != "" {
		want = append(want, codec)
	}

	out, err := run(ctx, binary)
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	available := parseEncoders(string(out))
	var missing []string
	for _, name := range want {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing encoders: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// parseEncoders reads the encoder table, whose rows look like
// " V....D libx264   libx264 H.264 / AVC".
func parseEncoders(output string) map[string]struct{} {
	names := make(map[string]struct{})
	inTable := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "------") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) >= 2 && len(fields[0]) == 6 {
			names[fields[1]] = struct{}{}
		}
	}
	return names
}

func listEncoders(ctx context.Context, binary string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output()
}
