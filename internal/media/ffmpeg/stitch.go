package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lessonmedia/internal/logging"
)

// StitchMode reports how the final file was produced.
type StitchMode string

const (
	StitchStreamCopy StitchMode = "stream_copy"
	StitchReencode   StitchMode = "reencode"
)

// StitchRequest describes an ordered concatenation.
type StitchRequest struct {
	Inputs   []string
	Output   string
	ListPath string
	// Caption, when set, is drawn on the re-encoded output only.
	Caption string
	// SilentInputs maps input index to duration in seconds for inputs with no
	// audio stream. The re-encode fallback feeds those segments silence.
	SilentInputs map[int]float64
	Width        int
	Height       int
	FrameRate    int
}

// Stitch concatenates segments in order. Stream copy is attempted first; a
// failure falls back to a re-encoding concat filter.
func (t *Tool) Stitch(ctx context.Context, req StitchRequest) (StitchMode, error) {
	if len(req.Inputs) == 0 {
		return "", errors.New("stitch: no inputs")
	}
	if req.Output == "" {
		return "", errors.New("stitch: output path is required")
	}
	if req.ListPath == "" {
		req.ListPath = strings.TrimSuffix(req.Output, filepath.Ext(req.Output)) + ".concat.txt"
	}
	if err := writeConcatList(req.ListPath, req.Inputs); err != nil {
		return "", err
	}

	copyErr := t.exec(ctx, "stitch", req.Output, []string{
		"-f", "concat",
		"-safe", "0",
		"-i", req.ListPath,
		"-c", "copy",
		req.Output,
	})
	if copyErr == nil {
		return StitchStreamCopy, nil
	}
	logging.WithContext(ctx, t.logger).Info("stream copy concat failed; re-encoding",
		logging.Int("segments", len(req.Inputs)),
		logging.Error(copyErr),
	)

	if err := t.exec(ctx, "stitch-reencode", req.Output, t.reencodeArgs(req)); err != nil {
		return "", err
	}
	return StitchReencode, nil
}

// ConcatList renders the concat demuxer manifest for paths.
func ConcatList(paths []string) (string, error) {
	var b strings.Builder
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", path, err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String(), nil
}

func writeConcatList(path string, inputs []string) error {
	body, err := ConcatList(inputs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

func (t *Tool) reencodeGraph(req StitchRequest) *Graph {
	l := t.settings.Layout
	width, height, rate := req.Width, req.Height, req.FrameRate
	if width <= 0 {
		width = l.CanvasWidth
	}
	if height <= 0 {
		height = l.CanvasHeight
	}
	if rate <= 0 {
		rate = l.FrameRate
	}

	g := &Graph{}
	concatInputs := make([]string, 0, len(req.Inputs)*2)
	for i := range req.Inputs {
		idx := strconv.Itoa(i)
		g.Add(Node{
			Inputs:  []string{idx + ":v"},
			Name:    "scale",
			Params:  []Param{P("w", width), P("h", height), P("force_original_aspect_ratio", "decrease")},
			Outputs: []string{"s" + idx},
		})
		g.Add(Node{
			Inputs: []string{"s" + idx},
			Name:   "pad",
			Params: []Param{
				P("w", width), P("h", height),
				P("x", "(ow-iw)/2"), P("y", "(oh-ih)/2"),
				P("color", l.CanvasColor),
			},
			Outputs: []string{"p" + idx},
		})
		g.Add(Node{Inputs: []string{"p" + idx}, Name: "setsar", Params: []Param{{Value: "1"}}, Outputs: []string{"q" + idx}})
		g.Add(Node{Inputs: []string{"q" + idx}, Name: "fps", Params: []Param{{Value: strconv.Itoa(rate)}}, Outputs: []string{"v" + idx}})
		if seconds := req.SilentInputs[i]; seconds > 0 {
			g.Add(Node{
				Name: "anullsrc",
				Params: []Param{
					P("channel_layout", "stereo"), P("sample_rate", 44100),
					P("d", strconv.FormatFloat(seconds, 'f', -1, 64)),
				},
				Outputs: []string{"a" + idx},
			})
		} else {
			g.Add(Node{
				Inputs:  []string{idx + ":a"},
				Name:    "aformat",
				Params:  []Param{P("sample_rates", 44100), P("channel_layouts", "stereo")},
				Outputs: []string{"a" + idx},
			})
		}
		concatInputs = append(concatInputs, "v"+idx, "a"+idx)
	}

	caption := SanitizeText(req.Caption, maxTitleChars)
	videoOut := "vout"
	if caption != "" {
		videoOut = "joined"
	}
	g.Add(Node{
		Inputs:  concatInputs,
		Name:    "concat",
		Params:  []Param{P("n", len(req.Inputs)), P("v", 1), P("a", 1)},
		Outputs: []string{videoOut, "aout"},
	})
	if caption != "" {
		g.Add(Node{
			Inputs: []string{videoOut},
			Name:   "drawtext",
			Params: []Param{
				t.settings.Font.Param(),
				P("text", caption),
				P("fontsize", l.TitleFontSize),
				P("fontcolor", "white"),
				P("x", "(w-text_w)/2"),
				P("y", "h-text_h-60"),
			},
			Outputs: []string{"vout"},
		})
	}
	return g
}

func (t *Tool) reencodeArgs(req StitchRequest) []string {
	args := make([]string, 0, len(req.Inputs)*2+16)
	for _, input := range req.Inputs {
		args = append(args, "-i", input)
	}
	return append(args,
		"-filter_complex", t.reencodeGraph(req).String(),
		"-map", "[vout]",
		"-map", "[aout]",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		req.Output,
	)
}
