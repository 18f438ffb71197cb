package stage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FailureReason classifies why structured output was rejected.
type FailureReason string

const (
	ReasonEmpty   FailureReason = "empty"
	ReasonNotJSON FailureReason = "not_json"
	ReasonShape   FailureReason = "shape"
)

// ExtractionFailure describes rejected structured output.
type ExtractionFailure struct {
	Reason  FailureReason
	Detail  string
	Snippet string
}

func (f *ExtractionFailure) Error() string {
	if f.Snippet == "" {
		return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
	}
	return fmt.Sprintf("%s: %s (payload snippet: %s)", f.Reason, f.Detail, f.Snippet)
}

// Shape declares what a manifest must contain. Collection names the array
// field holding the ordered segments; Exact, when positive, overrides Min/Max.
type Shape struct {
	RootRequired    []string
	Collection      string
	ElementRequired []string
	Exact           int
	Min             int
	Max             int
}

// Extraction is either a validated JSON payload or a failure, never both.
type Extraction struct {
	payload []byte
	Failure *ExtractionFailure
}

// OK reports whether extraction produced a payload.
func (e Extraction) OK() bool {
	return e.Failure == nil && len(e.payload) > 0
}

// Payload returns the validated JSON bytes.
func (e Extraction) Payload() []byte {
	return e.payload
}

// Decode unmarshals the validated payload into target.
func (e Extraction) Decode(target any) error {
	if e.Failure != nil {
		return e.Failure
	}
	if err := json.Unmarshal(e.payload, target); err != nil {
		return &ExtractionFailure{Reason: ReasonNotJSON, Detail: err.Error(), Snippet: summarizePayloadSnippet(string(e.payload))}
	}
	return nil
}

// Extract parses raw model output and validates it against shape.
func Extract(raw string, shape Shape) Extraction {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return failed(ReasonEmpty, "no text in response", "")
	}

	var root map[string]any
	payload := trimmed
	if err := json.Unmarshal([]byte(payload), &root); err != nil {
		payload = sanitizeJSONPayload(trimmed)
		if payload == "" {
			return failed(ReasonEmpty, "only code fence in response", trimmed)
		}
		if err := json.Unmarshal([]byte(payload), &root); err != nil {
			return failed(ReasonNotJSON, err.Error(), payload)
		}
	}
	if root == nil {
		return failed(ReasonShape, "top-level value is not an object", payload)
	}

	for _, field := range shape.RootRequired {
		if !present(root[field]) {
			return failed(ReasonShape, fmt.Sprintf("missing required field %q", field), payload)
		}
	}

	if shape.Collection != "" {
		items, ok := root[shape.Collection].([]any)
		if !ok {
			return failed(ReasonShape, fmt.Sprintf("field %q is not an array", shape.Collection), payload)
		}
		if detail := checkCount(shape, len(items)); detail != "" {
			return failed(ReasonShape, fmt.Sprintf("%s: %s", shape.Collection, detail), payload)
		}
		for i, item := range items {
			element, ok := item.(map[string]any)
			if !ok {
				return failed(ReasonShape, fmt.Sprintf("%s[%d] is not an object", shape.Collection, i), payload)
			}
			for _, field := range shape.ElementRequired {
				if !present(element[field]) {
					return failed(ReasonShape, fmt.Sprintf("%s[%d] missing required field %q", shape.Collection, i, field), payload)
				}
			}
		}
	}

	return Extraction{payload: []byte(payload)}
}

func checkCount(shape Shape, n int) string {
	switch {
	case shape.Exact > 0 && n != shape.Exact:
		return fmt.Sprintf("expected exactly %d entries, got %d", shape.Exact, n)
	case shape.Exact > 0:
		return ""
	case n < shape.Min:
		return fmt.Sprintf("expected at least %d entries, got %d", shape.Min, n)
	case shape.Max > 0 && n > shape.Max:
		return fmt.Sprintf("expected at most %d entries, got %d", shape.Max, n)
	}
	return ""
}

func present(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func failed(reason FailureReason, detail, payload string) Extraction {
	failure := &ExtractionFailure{Reason: reason, Detail: detail}
	if payload != "" {
		failure.Snippet = summarizePayloadSnippet(payload)
	}
	return Extraction{Failure: failure}
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
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
