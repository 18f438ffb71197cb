package workflow

import (
	"context"
	"math"

	"lessonmedia/internal/media/ffmpeg"
	"lessonmedia/internal/publisher"
	"lessonmedia/internal/services"
	"lessonmedia/internal/services/genai"
	"lessonmedia/internal/stage"
)

type slideshowOutline struct {
	Title  string  `json:"title"`
	Slides []slide `json:"slides"`
}

type slide struct {
	Title       string   `json:"title"`
	Bullets     []string `json:"bullets"`
	ImagePrompt string   `json:"image_prompt"`
	Narration   string   `json:"narration"`
}

type slideSegment struct {
	Index           int     `json:"index"`
	Segment         string  `json:"segment"`
	AudioSeconds    float64 `json:"audio_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type slideshowManifest struct {
	Outline              slideshowOutline `json:"outline"`
	Segments             []slideSegment   `json:"segments"`
	StitchMode           string           `json:"stitch_mode"`
	TotalDurationSeconds float64          `json:"total_duration_seconds"`
}

// runSlideshow: outline, then per slide {image ∥ narration → transcode},
// probe, composite, then stitch and publish.
func (c *Coordinator) runSlideshow(ctx context.Context, run *jobRun) (result, error) {
	cfg := c.deps.Config
	var outline slideshowOutline
	shape := stage.Shape{
		Collection:      "slides",
		ElementRequired: []string{"title", "image_prompt", "narration"},
		Min:             1,
		Max:             cfg.Slideshow.MaxSlides,
	}
	prompt := outlinePrompt(run.payload, cfg.Slideshow.MaxSlides, cfg.Slideshow.MaxBullets)
	if err := run.structured(ctx, "outline", prompt, shape, &outline); err != nil {
		return result{}, err
	}

	limit := cfg.SlideMaxDuration().Seconds()
	segments := make([]slideSegment, 0, len(outline.Slides))
	paths := make([]string, 0, len(outline.Slides))
	total := 0.0
	for i, s := range outline.Slides {
		imagePath := run.scratch.Segment("slide", i+1, ".png")
		audioPath := run.scratch.Segment("narration", i+1, ".mp3")
		err := run.parallel(ctx,
			func(ctx context.Context) error {
				_, err := run.image(ctx, segmentName("slide-image", i), slideImagePrompt(run.payload, s.ImagePrompt), nil, imagePath)
				return err
			},
			func(ctx context.Context) error {
				return run.speech(ctx, segmentName("slide-narration", i), segmentName("transcode", i),
					narrationPrompt(s.Narration), genai.GenerationConfig{Voice: cfg.Generative.Voice}, audioPath)
			},
		)
		if err != nil {
			return result{}, err
		}

		segment := slideSegment{Index: i + 1, Segment: run.scratch.Segment("segment", i+1, ".mp4")}
		name := segmentName("composite", i)
		err = run.step(ctx, name, func(ctx context.Context) error {
			probe, err := c.deps.Prober.Inspect(ctx, audioPath)
			if err != nil {
				return err
			}
			segment.AudioSeconds = probe.DurationSeconds()
			if segment.AudioSeconds <= 0 {
				return services.Wrap(services.ErrMissingAsset, name, "probe narration", "narration has no measurable duration", nil)
			}
			segment.DurationSeconds = math.Min(segment.AudioSeconds, limit)
			return c.deps.Media.Composite(ctx, ffmpeg.CompositeRequest{
				ImagePath:  imagePath,
				AudioPath:  audioPath,
				Title:      s.Title,
				Bullets:    limitBullets(s.Bullets, cfg.Slideshow.MaxBullets),
				MaxSeconds: limit,
				Output:     segment.Segment,
			})
		})
		if err != nil {
			return result{}, err
		}
		paths = append(paths, segment.Segment)
		total += segment.DurationSeconds
		segments = append(segments, segment)
	}

	final := run.scratch.Path("final.mp4")
	var mode ffmpeg.StitchMode
	err := run.step(ctx, "stitch", func(ctx context.Context) error {
		var err error
		mode, err = c.deps.Media.Stitch(ctx, ffmpeg.StitchRequest{Inputs: paths, Output: final})
		return err
	})
	if err != nil {
		return result{}, err
	}
	for i := range segments {
		segments[i].Segment = baseNames([]string{segments[i].Segment})[0]
	}

	url, err := run.publish(ctx, "publish", final, publisher.ContentVideo)
	if err != nil {
		return result{}, err
	}
	return result{URL: url, Manifest: slideshowManifest{
		Outline:              outline,
		Segments:             segments,
		StitchMode:           string(mode),
		TotalDurationSeconds: total,
	}}, nil
}

func limitBullets(bullets []string, max int) []string {
	out := make([]string, 0, len(bullets))
	for _, bullet := range bullets {
		if max > 0 && len(out) == max {
			break
		}
		if bullet != "" {
			out = append(out, bullet)
		}
	}
	return out
}
