package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

const (
	maxTitleChars  = 48
	maxBulletChars = 56
)

// CompositeRequest describes one slide render.
type CompositeRequest struct {
	ImagePath  string
	AudioPath  string
	Title      string
	Bullets    []string
	MaxSeconds float64
	Output     string
}

// Composite renders a looped still with narration onto the slide canvas.
func (t *Tool) Composite(ctx context.Context, req CompositeRequest) error {
	if req.ImagePath == "" || req.AudioPath == "" || req.Output == "" {
		return errors.New("composite: image, audio, and output paths are required")
	}
	graph := t.compositeGraph(req)
	return t.exec(ctx, "composite", req.Output, t.compositeArgs(req, graph))
}

func (t *Tool) compositeGraph(req CompositeRequest) *Graph {
	l := t.settings.Layout
	size := l.ImageSize
	g := &Graph{}
	g.Add(Node{
		Inputs:  []string{"0:v"},
		Name:    "scale",
		Params:  []Param{P("w", size), P("h", size), P("force_original_aspect_ratio", "increase")},
		Outputs: []string{"scaled"},
	})
	g.Add(Node{
		Inputs:  []string{"scaled"},
		Name:    "crop",
		Params:  []Param{P("w", size), P("h", size)},
		Outputs: []string{"img"},
	})
	g.Add(Node{
		Name: "color",
		Params: []Param{
			P("c", l.CanvasColor),
			P("s", fmt.Sprintf("%dx%d", l.CanvasWidth, l.CanvasHeight)),
			P("r", l.FrameRate),
		},
		Outputs: []string{"bg"},
	})
	g.Add(Node{
		Inputs:  []string{"bg", "img"},
		Name:    "overlay",
		Params:  []Param{P("x", l.ImageX), P("y", l.ImageY), P("shortest", 1)},
		Outputs: []string{"v0"},
	})

	current := "v0"
	step := 0
	addText := func(text string, y, size int) {
		if text == "" {
			return
		}
		step++
		next := "v" + strconv.Itoa(step)
		g.Add(Node{
			Inputs: []string{current},
			Name:   "drawtext",
			Params: []Param{
				t.settings.Font.Param(),
				P("text", text),
				P("fontsize", size),
				P("fontcolor", "white"),
				P("x", l.TextX),
				P("y", y),
			},
			Outputs: []string{next},
		})
		current = next
	}
	addText(SanitizeText(req.Title, maxTitleChars), l.TitleY, l.TitleFontSize)
	for i, bullet := range req.Bullets {
		addText(SanitizeText(bullet, maxBulletChars), l.BulletY+i*l.BulletSpacing, l.BulletFontSize)
	}

	g.Add(Node{
		Inputs:  []string{current},
		Name:    "format",
		Params:  []Param{{Value: "yuv420p"}},
		Outputs: []string{"vout"},
	})
	return g
}

func (t *Tool) compositeArgs(req CompositeRequest, graph *Graph) []string {
	args := []string{
		"-loop", "1",
		"-framerate", strconv.Itoa(t.settings.Layout.FrameRate),
		"-i", req.ImagePath,
		"-i", req.AudioPath,
		"-filter_complex", graph.String(),
		"-map", "[vout]",
		"-map", "1:a",
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-ac", "2",
		"-shortest",
	}
	if req.MaxSeconds > 0 {
		args = append(args, "-t", strconv.FormatFloat(req.MaxSeconds, 'f', 3, 64))
	}
	return append(args, req.Output)
}
