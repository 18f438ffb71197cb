package genai

import "lessonmedia/internal/config"

// ConfigFrom maps the [generative] section onto client settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		APIKey:       cfg.Generative.APIKey,
		BaseURL:      cfg.Generative.BaseURL,
		TextModel:    cfg.Generative.TextModel,
		ImageModel:   cfg.Generative.ImageModel,
		SpeechModel:  cfg.Generative.SpeechModel,
		VideoModel:   cfg.Generative.VideoModel,
		Timeout:      cfg.GenerativeTimeout(),
		PollInterval: cfg.PollInterval(),
		PollTimeout:  cfg.PollTimeout(),
	}
}
