package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"lessonmedia/internal/fileutil"
)

// ErrPollTimeout is returned by AwaitOperation when the configured poll
// timeout elapses before the operation reports done.
var ErrPollTimeout = errors.New("operation poll timeout")

// OperationError reports an operation that finished with an error payload.
type OperationError struct {
	Name    string
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s failed: %s", e.Name, e.Message)
}

// SubmitVideo starts a long-running video generation. The first reference
// image, when present, seeds the clip.
func (c *Client) SubmitVideo(ctx context.Context, req Request) (Operation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Operation{}, errors.New("genai video: prompt required")
	}
	if c.cfg.APIKey == "" {
		return Operation{}, errors.New("genai video: api key required")
	}
	model, err := c.modelFor(ModeVideo)
	if err != nil {
		return Operation{}, err
	}
	instance := videoInstance{Prompt: req.Prompt}
	for _, ref := range req.Config.ReferenceImages {
		if ref.Empty() {
			continue
		}
		instance.Image = &videoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(ref.Data),
			MIMEType:           ref.MIMEType,
		}
		break
	}
	payload := predictLongRunningRequest{
		Instances: []videoInstance{instance},
		Parameters: videoParameters{
			AspectRatio:     req.Config.AspectRatio,
			Resolution:      req.Config.Resolution,
			DurationSeconds: req.Config.DurationSeconds,
		},
	}
	body, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/models/"+model+":predictLongRunning", payload)
	if err != nil {
		return Operation{}, err
	}
	op, err := decodeOperation(body)
	if err != nil {
		return Operation{}, fmt.Errorf("genai video: %w", err)
	}
	if op.Name == "" {
		return Operation{}, fmt.Errorf("genai video: response missing operation name (snippet: %s)", summarizeSnippet(string(body)))
	}
	return op, nil
}

// GetOperation fetches the current state of an operation.
func (c *Client) GetOperation(ctx context.Context, name string) (Operation, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return Operation{}, errors.New("genai operation: name required")
	}
	body, err := c.doJSON(ctx, http.MethodGet, c.cfg.BaseURL+"/"+name, nil)
	if err != nil {
		return Operation{}, err
	}
	op, err := decodeOperation(body)
	if err != nil {
		return Operation{}, fmt.Errorf("genai operation: %w", err)
	}
	if op.Name == "" {
		op.Name = name
	}
	return op, nil
}

func decodeOperation(body []byte) (Operation, error) {
	var decoded operationResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Operation{}, fmt.Errorf("decode operation: %w (snippet: %s)", err, summarizeSnippet(string(body)))
	}
	op := Operation{Name: decoded.Name, Done: decoded.Done}
	if decoded.Error != nil {
		op.Error = strings.TrimSpace(decoded.Error.Message)
		if op.Error == "" {
			op.Error = fmt.Sprintf("code %d", decoded.Error.Code)
		}
	}
	if decoded.Response != nil && decoded.Response.GenerateVideoResponse != nil {
		resp := decoded.Response.GenerateVideoResponse
		if len(resp.GeneratedSamples) > 0 {
			op.VideoURI = strings.TrimSpace(resp.GeneratedSamples[0].Video.URI)
		}
		if op.VideoURI == "" && len(resp.RAIMediaFilteredReasons) > 0 && op.Error == "" {
			op.Error = "filtered: " + strings.Join(resp.RAIMediaFilteredReasons, "; ")
		}
	}
	return op, nil
}

// AwaitOperation polls op at the configured interval until it is done. A
// done operation carrying an error yields *OperationError. When a poll
// timeout is configured and elapses first, the error wraps ErrPollTimeout.
func (c *Client) AwaitOperation(ctx context.Context, op Operation) (Operation, error) {
	var deadline time.Time
	if c.cfg.PollTimeout > 0 {
		deadline = c.now().Add(c.cfg.PollTimeout)
	}
	polls := 0
	for !op.Done {
		if !deadline.IsZero() && !c.now().Before(deadline) {
			return op, fmt.Errorf("%w: %s not done after %s (%d polls)", ErrPollTimeout, op.Name, c.cfg.PollTimeout, polls)
		}
		if err := c.sleeper(ctx, c.cfg.PollInterval); err != nil {
			return op, err
		}
		next, err := c.GetOperation(ctx, op.Name)
		if err != nil {
			return op, err
		}
		polls++
		op = next
		if c.onPoll != nil {
			c.onPoll(op.Done)
		}
	}
	if op.Error != "" {
		return op, &OperationError{Name: op.Name, Message: op.Error}
	}
	return op, nil
}

// Download streams uri to dest. The API key is sent because generated files
// are served behind the same credential.
func (c *Client) Download(ctx context.Context, uri, dest string) (int64, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return 0, errors.New("genai download: uri required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return 0, fmt.Errorf("genai download: new request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	download := &http.Client{Transport: c.httpClient.Transport}
	resp, err := download.Do(req)
	if err != nil {
		return 0, fmt.Errorf("genai download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		buf := make([]byte, 512)
		n, _ := resp.Body.Read(buf)
		return 0, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(buf[:n])}
	}
	written, err := fileutil.StreamToFile(dest, resp.Body, 0o644)
	if err != nil {
		return 0, fmt.Errorf("genai download: %w", err)
	}
	if written == 0 {
		_ = os.Remove(dest)
		return 0, errors.New("genai download: empty body")
	}
	return written, nil
}
