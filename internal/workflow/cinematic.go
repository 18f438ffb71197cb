package workflow

import (
	"context"
	"path/filepath"
	"strings"

	"lessonmedia/internal/media/ffmpeg"
	"lessonmedia/internal/publisher"
	"lessonmedia/internal/services/genai"
	"lessonmedia/internal/stage"
	"lessonmedia/internal/textutil"
)

type cinematicScript struct {
	Title                string           `json:"title"`
	CharacterDescription string           `json:"character_description"`
	Scenes               []cinematicScene `json:"scenes"`
}

type cinematicScene struct {
	Visual    string `json:"visual"`
	Narration string `json:"narration"`
	Caption   string `json:"caption,omitempty"`
}

type cinematicManifest struct {
	Script          cinematicScript `json:"script"`
	Clips           []string        `json:"clips"`
	StitchMode      string          `json:"stitch_mode"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
}

// runCinematic: script, character sheet, then per scene an anchor frame and
// a video clip, then stitch and publish.
func (c *Coordinator) runCinematic(ctx context.Context, run *jobRun) (result, error) {
	cfg := c.deps.Config
	var script cinematicScript
	shape := stage.Shape{
		RootRequired:    []string{"title", "character_description"},
		Collection:      "scenes",
		ElementRequired: []string{"visual"},
		Exact:           cfg.Cinematic.SceneCount,
	}
	if err := run.structured(ctx, "script", scriptPrompt(run.payload, cfg.Cinematic.SceneCount), shape, &script); err != nil {
		return result{}, err
	}

	sheet, err := run.image(ctx, "character-sheet",
		characterSheetPrompt(run.payload, script.CharacterDescription), nil,
		run.scratch.Path("character-sheet.png"))
	if err != nil {
		return result{}, err
	}

	clips := make([]string, 0, len(script.Scenes))
	for i, scene := range script.Scenes {
		anchor, err := run.image(ctx, segmentName("anchor-frame", i),
			anchorFramePrompt(run.payload, scene.Visual),
			[]genai.InlineData{sheet},
			run.scratch.Segment("anchor", i+1, ".png"))
		if err != nil {
			return result{}, err
		}

		clip := run.scratch.Segment("scene", i+1, ".mp4")
		name := segmentName("scene-video", i)
		err = run.step(ctx, name, func(ctx context.Context) error {
			return c.runner.Video(ctx, stage.Spec{
				Name:   name,
				Prompt: sceneVideoPrompt(scene.Visual, scene.Narration),
				Config: genai.GenerationConfig{
					Resolution:      cfg.Generative.VideoResolution,
					AspectRatio:     cfg.Generative.VideoAspectRatio,
					DurationSeconds: cfg.Generative.VideoDurationSeconds,
					ReferenceImages: []genai.InlineData{anchor},
				},
			}, clip)
		})
		if err != nil {
			return result{}, err
		}
		clips = append(clips, clip)
	}

	final := run.scratch.Path("final.mp4")
	var mode ffmpeg.StitchMode
	err = run.step(ctx, "stitch", func(ctx context.Context) error {
		req := ffmpeg.StitchRequest{
			Inputs:       clips,
			Output:       final,
			SilentInputs: run.silentClips(ctx, clips, float64(cfg.Generative.VideoDurationSeconds)),
		}
		if cfg.Cinematic.Caption {
			req.Caption = captionText(script.Title, run.payload.Title)
		}
		var err error
		mode, err = c.deps.Media.Stitch(ctx, req)
		return err
	})
	if err != nil {
		return result{}, err
	}

	manifest := cinematicManifest{
		Script:          script,
		Clips:           baseNames(clips),
		StitchMode:      string(mode),
		DurationSeconds: run.duration(ctx, final),
	}
	url, err := run.publish(ctx, "publish", final, publisher.ContentVideo)
	if err != nil {
		return result{}, err
	}
	return result{URL: url, Manifest: manifest}, nil
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, path := range paths {
		out[i] = filepath.Base(path)
	}
	return out
}

// captionText prefers the generated title and falls back to the submitted one.
func captionText(generated, submitted string) string {
	if title := strings.TrimSpace(generated); title != "" {
		return title
	}
	return textutil.TitleCase(submitted)
}
