package workflow

import (
	"context"
	"encoding/json"

	"lessonmedia/internal/publisher"
	"lessonmedia/internal/services"
	"lessonmedia/internal/services/genai"
	"lessonmedia/internal/stage"
)

type storyScript struct {
	Title                string      `json:"title"`
	CharacterDescription string      `json:"character_description"`
	Pages                []storyPage `json:"pages"`
}

type storyPage struct {
	Text         string `json:"text"`
	Illustration string `json:"illustration"`
}

// storyDocument is the published story.json.
type storyDocument struct {
	Title             string          `json:"title"`
	CharacterSheetURL string          `json:"character_sheet_url"`
	Pages             []publishedPage `json:"pages"`
}

type publishedPage struct {
	Number       int    `json:"number"`
	Text         string `json:"text"`
	Illustration string `json:"illustration"`
	ImageURL     string `json:"image_url"`
	AudioURL     string `json:"audio_url,omitempty"`
}

type storyAssets struct {
	image string
	audio string
}

// runStory: story script, character sheet, then per page an illustration and
// optional narration, then every asset and the story document are published.
func (c *Coordinator) runStory(ctx context.Context, run *jobRun) (result, error) {
	cfg := c.deps.Config
	var script storyScript
	shape := stage.Shape{
		RootRequired:    []string{"title", "character_description"},
		Collection:      "pages",
		ElementRequired: []string{"text", "illustration"},
		Min:             1,
		Max:             cfg.Story.MaxPages,
	}
	if err := run.structured(ctx, "story", storyPrompt(run.payload, cfg.Story.MaxPages), shape, &script); err != nil {
		return result{}, err
	}

	sheetPath := run.scratch.Path("character-sheet.png")
	sheet, err := run.image(ctx, "character-sheet",
		characterSheetPrompt(run.payload, script.CharacterDescription), nil, sheetPath)
	if err != nil {
		return result{}, err
	}

	assets := make([]storyAssets, len(script.Pages))
	for i, page := range script.Pages {
		assets[i].image = run.scratch.Segment("page", i+1, ".png")
		fns := []func(context.Context) error{
			func(ctx context.Context) error {
				_, err := run.image(ctx, segmentName("page-illustration", i),
					pageIllustrationPrompt(run.payload, page.Illustration),
					[]genai.InlineData{sheet}, assets[i].image)
				return err
			},
		}
		if cfg.Story.Narration {
			assets[i].audio = run.scratch.Segment("page", i+1, ".mp3")
			fns = append(fns, func(ctx context.Context) error {
				return run.speech(ctx, segmentName("page-narration", i), segmentName("transcode", i),
					narrationPrompt(page.Text), genai.GenerationConfig{Voice: cfg.Generative.Voice}, assets[i].audio)
			})
		}
		if err := run.parallel(ctx, fns...); err != nil {
			return result{}, err
		}
	}

	doc := storyDocument{Title: script.Title, Pages: make([]publishedPage, len(script.Pages))}
	doc.CharacterSheetURL, err = run.publish(ctx, "publish-character-sheet", sheetPath, publisher.ContentImage)
	if err != nil {
		return result{}, err
	}
	for i, page := range script.Pages {
		out := publishedPage{Number: i + 1, Text: page.Text, Illustration: page.Illustration}
		out.ImageURL, err = run.publish(ctx, segmentName("publish-page-image", i), assets[i].image, publisher.ContentImage)
		if err != nil {
			return result{}, err
		}
		if assets[i].audio != "" {
			out.AudioURL, err = run.publish(ctx, segmentName("publish-page-audio", i), assets[i].audio, publisher.ContentAudio)
			if err != nil {
				return result{}, err
			}
		}
		doc.Pages[i] = out
	}

	docPath := run.scratch.Path("story.json")
	if err := run.step(ctx, "write-story", func(context.Context) error {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return services.Wrap(services.ErrInfrastructure, "write-story", "encode", "story document", err)
		}
		return writeAsset("write-story", docPath, data)
	}); err != nil {
		return result{}, err
	}

	url, err := run.publish(ctx, "publish", docPath, publisher.ContentManifest)
	if err != nil {
		return result{}, err
	}
	return result{URL: url, Manifest: doc}, nil
}
