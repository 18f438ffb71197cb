package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultHTTPTimeout  = 120 * time.Second
	defaultPollInterval = 10 * time.Second
	apiKeyHeader        = "x-goog-api-key"
)

// Config captures the runtime settings required to talk to the service.
type Config struct {
	APIKey       string
	BaseURL      string
	TextModel    string
	ImageModel   string
	SpeechModel  string
	VideoModel   string
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration // zero polls until done
}

// Client wraps the generateContent and predictLongRunning endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleeper    func(context.Context, time.Duration) error
	now        func() time.Time
	onPoll     func(done bool)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how poll waits are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// WithClock overrides the time source used for the poll deadline.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPollObserver registers a callback invoked after every operation poll.
func WithPollObserver(fn func(done bool)) Option {
	return func(c *Client) {
		c.onPoll = fn
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sleeper:    sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("genai request: http %d: %s", e.StatusCode, summarizeSnippet(e.Body))
}

func (c *Client) modelFor(mode Mode) (string, error) {
	var model string
	switch mode {
	case ModeText:
		model = c.cfg.TextModel
	case ModeImage:
		model = c.cfg.ImageModel
	case ModeAudio:
		model = c.cfg.SpeechModel
	case ModeVideo:
		model = c.cfg.VideoModel
	default:
		return "", fmt.Errorf("genai: unsupported mode %q", mode)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return "", fmt.Errorf("genai: no model configured for %s mode", mode)
	}
	return model, nil
}

// Generate issues a generateContent call for text, image, or audio output.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	var empty Response
	if req.Mode == ModeVideo {
		return empty, errors.New("genai generate: video requests use SubmitVideo")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return empty, errors.New("genai generate: prompt required")
	}
	if c.cfg.APIKey == "" {
		return empty, errors.New("genai generate: api key required")
	}
	model, err := c.modelFor(req.Mode)
	if err != nil {
		return empty, err
	}

	payload := buildGenerateRequest(req)
	body, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/models/"+model+":generateContent", payload)
	if err != nil {
		return empty, err
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("genai generate: decode response: %w (snippet: %s)", err, summarizeSnippet(string(body)))
	}
	if decoded.Error != nil {
		return empty, fmt.Errorf("genai generate: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return empty, fmt.Errorf("genai generate: prompt blocked: %s", decoded.PromptFeedback.BlockReason)
	}

	resp := Response{Raw: body}
	var text strings.Builder
	for _, candidate := range decoded.Candidates {
		if resp.FinishReason == "" {
			resp.FinishReason = candidate.FinishReason
		}
		for _, p := range candidate.Content.Parts {
			if p.Text != "" {
				text.WriteString(p.Text)
			}
			if p.InlineData != nil && resp.Inline == nil {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return empty, fmt.Errorf("genai generate: decode inline data: %w", err)
				}
				resp.Inline = &InlineData{MIMEType: p.InlineData.MIMEType, Data: data}
			}
		}
		if text.Len() > 0 || resp.Inline != nil {
			break
		}
	}
	resp.Text = text.String()
	return resp, nil
}

func buildGenerateRequest(req Request) generateContentRequest {
	parts := []part{{Text: req.Prompt}}
	for _, ref := range req.Config.ReferenceImages {
		if ref.Empty() {
			continue
		}
		parts = append(parts, part{InlineData: &inlineBlob{
			MIMEType: ref.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}
	out := generateContentRequest{Contents: []content{{Role: "user", Parts: parts}}}

	switch req.Mode {
	case ModeText:
		if req.Config.ResponseMIMEType != "" {
			out.GenerationConfig = &generationConfig{ResponseMIMEType: req.Config.ResponseMIMEType}
		}
	case ModeImage:
		gc := &generationConfig{ResponseModalities: []string{"IMAGE"}}
		if req.Config.AspectRatio != "" {
			gc.ImageConfig = &imageConfig{AspectRatio: req.Config.AspectRatio}
		}
		out.GenerationConfig = gc
	case ModeAudio:
		out.GenerationConfig = &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       buildSpeechConfig(req.Config),
		}
	}
	return out
}

func buildSpeechConfig(cfg GenerationConfig) *speechConfig {
	if len(cfg.Speakers) > 1 {
		voices := make([]speakerVoiceConfig, 0, len(cfg.Speakers))
		for _, sv := range cfg.Speakers {
			voices = append(voices, speakerVoiceConfig{
				Speaker:     sv.Speaker,
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: sv.Voice}},
			})
		}
		return &speechConfig{
			MultiSpeakerVoiceConfig: &multiSpeakerVoiceConfig{SpeakerVoiceConfigs: voices},
			LanguageCode:            cfg.LanguageCode,
		}
	}
	voice := cfg.Voice
	if voice == "" && len(cfg.Speakers) == 1 {
		voice = cfg.Speakers[0].Voice
	}
	if voice == "" && cfg.LanguageCode == "" {
		return nil
	}
	out := &speechConfig{LanguageCode: cfg.LanguageCode}
	if voice != "" {
		out.VoiceConfig = &voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: voice}}
	}
	return out
}

// HealthCheck verifies the API key and text model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("genai health: api key required")
	}
	model, err := c.modelFor(ModeText)
	if err != nil {
		return err
	}
	body, err := c.doJSON(ctx, http.MethodGet, c.cfg.BaseURL+"/models/"+model, nil)
	if err != nil {
		return fmt.Errorf("genai health: %w", err)
	}
	var parsed struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("genai health: decode response: %w", err)
	}
	if strings.TrimSpace(parsed.Name) == "" {
		return errors.New("genai health: unexpected response")
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("genai request: build url: %w", err)
	}
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("genai request: encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("genai request: new request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai request: http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("genai request: read body (timeout=%s): %w", c.timeoutDuration(), err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return body, &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func summarizeSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := replacer.Replace(trimmed)
	clean = strings.Join(strings.Fields(clean), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
