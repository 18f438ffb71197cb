package workflow

import (
	"fmt"
	"strings"
)

// brief renders the shared lesson header used by every manifest prompt.
func (p Payload) brief() string {
	var b strings.Builder
	if p.Title != "" {
		fmt.Fprintf(&b, "Lesson title: %s\n", p.Title)
	}
	if p.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", p.Audience)
	}
	if p.Style != "" {
		fmt.Fprintf(&b, "Visual style: %s\n", p.Style)
	}
	fmt.Fprintf(&b, "Language: %s\n\nLesson content:\n%s\n", p.Language, p.Content)
	return b.String()
}

func (p Payload) styleSuffix() string {
	if p.Style == "" {
		return ""
	}
	return " Style: " + p.Style + "."
}

func scriptPrompt(p Payload, scenes int) string {
	return fmt.Sprintf(`You are writing a short cinematic explainer film for the lesson below.
Respond with JSON only, shaped as:
{"title": string, "character_description": string, "scenes": [{"visual": string, "narration": string, "caption": string}]}
Write exactly %d scenes in story order. "character_description" describes one recurring guide character in enough visual detail to draw consistently. Each "visual" describes what the camera sees in one continuous eight second shot featuring that character. Each "narration" is one or two sentences spoken over the shot.

%s`, scenes, p.brief())
}

func characterSheetPrompt(p Payload, description string) string {
	return fmt.Sprintf("Character reference sheet on a plain background: front, side and three-quarter views of %s. Consistent proportions, clothing and colors across views.%s",
		description, p.styleSuffix())
}

func anchorFramePrompt(p Payload, visual string) string {
	return fmt.Sprintf("Opening frame of a film shot: %s Keep the character identical to the reference sheet.%s", visual, p.styleSuffix())
}

func sceneVideoPrompt(visual, narration string) string {
	if narration == "" {
		return visual
	}
	return fmt.Sprintf("%s\nThe character says: %q", visual, narration)
}

func outlinePrompt(p Payload, maxSlides, maxBullets int) string {
	return fmt.Sprintf(`Turn the lesson below into a narrated slideshow.
Respond with JSON only, shaped as:
{"title": string, "slides": [{"title": string, "bullets": [string], "image_prompt": string, "narration": string}]}
Use at most %d slides with at most %d short bullets each. "image_prompt" describes one illustration for the slide. "narration" is what a teacher says over the slide, under thirty seconds when read aloud.

%s`, maxSlides, maxBullets, p.brief())
}

func slideImagePrompt(p Payload, imagePrompt string) string {
	return fmt.Sprintf("Square educational illustration, no text: %s%s", imagePrompt, p.styleSuffix())
}

func narrationPrompt(text string) string {
	return "Read in a warm, clear teaching voice: " + text
}

func dialoguePrompt(p Payload) string {
	hosts := "Use exactly two speaker names and alternate naturally."
	switch len(p.Speakers) {
	case 0:
	case 1:
		hosts = fmt.Sprintf("One host is named %s; choose a name for the second. Alternate naturally.", p.Speakers[0])
	default:
		hosts = fmt.Sprintf("The hosts are named %s and %s. Use exactly these speaker names and alternate naturally.", p.Speakers[0], p.Speakers[1])
	}
	return fmt.Sprintf(`Write a short conversational podcast between two hosts explaining the lesson below.
Respond with JSON only, shaped as:
{"title": string, "lines": [{"speaker": string, "text": string}]}
%s

%s`, hosts, p.brief())
}

func dialogueSpeechPrompt(turns []dialogueTurn) string {
	var b strings.Builder
	b.WriteString("TTS the following conversation:\n")
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Speaker, turn.Text)
	}
	return b.String()
}

func storyPrompt(p Payload, maxPages int) string {
	return fmt.Sprintf(`Write an illustrated story that teaches the lesson below.
Respond with JSON only, shaped as:
{"title": string, "character_description": string, "pages": [{"text": string, "illustration": string}]}
Use at most %d pages. "character_description" describes the main character in enough visual detail to draw consistently. "illustration" describes the picture for the page.

%s`, maxPages, p.brief())
}

func pageIllustrationPrompt(p Payload, illustration string) string {
	return fmt.Sprintf("Storybook illustration, no text: %s Keep the main character identical to the reference sheet.%s",
		illustration, p.styleSuffix())
}
