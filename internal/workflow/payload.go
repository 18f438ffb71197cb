package workflow

import (
	"bytes"
	"encoding/json"
	"strings"

	"lessonmedia/internal/language"
	"lessonmedia/internal/services"
)

// Payload is the content a job is produced from. Only Content is required.
type Payload struct {
	Title    string   `json:"title,omitempty"`
	Content  string   `json:"content"`
	Style    string   `json:"style,omitempty"`
	Audience string   `json:"audience,omitempty"`
	Language string   `json:"language,omitempty"`
	Speakers []string `json:"speakers,omitempty"`
}

func decodePayload(raw json.RawMessage) (Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Payload{}, services.Wrap(services.ErrValidation, "", "decode payload", "payload is empty", nil)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, services.Wrap(services.ErrValidation, "", "decode payload", "payload is not a JSON object", err)
	}
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
	p.Style = strings.TrimSpace(p.Style)
	p.Audience = strings.TrimSpace(p.Audience)
	p.Language = language.Name(p.Language)
	p.Speakers = trimSpeakers(p.Speakers)
	if p.Content == "" {
		return Payload{}, services.Wrap(services.ErrValidation, "", "decode payload", "payload content is required", nil)
	}
	if p.Language == "" {
		p.Language = "English"
	}
	return p, nil
}

func trimSpeakers(names []string) []string {
	var out []string
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
