package workflow

import (
	"context"

	"lessonmedia/internal/logging"
	"lessonmedia/internal/publisher"
	"lessonmedia/internal/services"
	"lessonmedia/internal/services/genai"
	"lessonmedia/internal/stage"
)

type dialogueScript struct {
	Title string         `json:"title"`
	Lines []dialogueTurn `json:"lines"`
}

type dialogueTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type dialogueManifest struct {
	Script          dialogueScript    `json:"script"`
	Voices          map[string]string `json:"voices"`
	DroppedLines    int               `json:"dropped_lines,omitempty"`
	DurationSeconds float64           `json:"duration_seconds,omitempty"`
}

// runDialogue: dialogue script, multi-speaker speech, transcode, publish.
func (c *Coordinator) runDialogue(ctx context.Context, run *jobRun) (result, error) {
	var script dialogueScript
	shape := stage.Shape{
		RootRequired:    []string{"title"},
		Collection:      "lines",
		ElementRequired: []string{"speaker", "text"},
		Min:             2,
	}
	if err := run.structured(ctx, "dialogue", dialoguePrompt(run.payload), shape, &script); err != nil {
		return result{}, err
	}

	voices := c.deps.Config.Generative.DialogueVoices
	speakers, kept := assignVoices(script.Lines, voices)
	if dropped := len(script.Lines) - len(kept); dropped > 0 {
		run.logger.Warn("dialogue has more than two speakers",
			logging.Int("dropped_lines", dropped),
			logging.String(logging.FieldEventType, "dialogue_speakers_trimmed"),
			logging.String(logging.FieldErrorHint, "only the first two speakers are voiced"),
			logging.String(logging.FieldImpact, "lines by other speakers are omitted from the audio"),
		)
	}
	if len(speakers) == 0 {
		return result{}, services.Wrap(services.ErrConfiguration, "dialogue-speech", "assign voices",
			"generative.dialogue_voices is empty", nil)
	}

	cfg := genai.GenerationConfig{}
	if len(speakers) == 1 {
		cfg.Voice = speakers[0].Voice
	} else {
		cfg.Speakers = speakers
	}
	audio := run.scratch.Path("dialogue.mp3")
	if err := run.speech(ctx, "dialogue-speech", "transcode", dialogueSpeechPrompt(kept), cfg, audio); err != nil {
		return result{}, err
	}

	manifest := dialogueManifest{
		Script:          script,
		Voices:          voiceMap(speakers),
		DroppedLines:    len(script.Lines) - len(kept),
		DurationSeconds: run.duration(ctx, audio),
	}
	url, err := run.publish(ctx, "publish", audio, publisher.ContentAudio)
	if err != nil {
		return result{}, err
	}
	return result{URL: url, Manifest: manifest}, nil
}

// assignVoices maps the first two distinct speakers to the configured voices
// in order of appearance. Lines by any other speaker are dropped.
func assignVoices(lines []dialogueTurn, voices []string) ([]genai.SpeakerVoice, []dialogueTurn) {
	limit := min(2, len(voices))
	var speakers []genai.SpeakerVoice
	seen := make(map[string]bool, limit)
	kept := make([]dialogueTurn, 0, len(lines))
	for _, line := range lines {
		if !seen[line.Speaker] {
			if len(speakers) == limit {
				continue
			}
			seen[line.Speaker] = true
			speakers = append(speakers, genai.SpeakerVoice{Speaker: line.Speaker, Voice: voices[len(speakers)]})
		}
		kept = append(kept, line)
	}
	return speakers, kept
}

func voiceMap(speakers []genai.SpeakerVoice) map[string]string {
	out := make(map[string]string, len(speakers))
	for _, s := range speakers {
		out[s.Speaker] = s.Voice
	}
	return out
}
