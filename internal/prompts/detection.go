// internal/prompts/detection.go
package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers"
	"github.com/xeipuuv/gojsonschema"
)

// detectionSchema is the shape an LLM host must answer with in JSON mode.
var detectionSchema = map[string]any{
	"type":     "object",
	"required": []any{"results"},
	"properties": map[string]any{
		"results": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"language", "confidence"},
				"properties": map[string]any{
					"language":   map[string]any{"type": "string", "minLength": 2},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
			},
		},
	},
}

// DetectionMessages asks a chat model to rank the languages of input.
func DetectionMessages(input string, expected []string) []providers.ChatMessage {
	var b strings.Builder
	b.WriteString("Identify the language of the user's text. ")
	b.WriteString(`Answer only with JSON of the form {"results":[{"language":"<BCP 47 code>","confidence":<0..1>}]}, `)
	b.WriteString("listing up to 5 candidates ordered from most to least likely. Confidences should sum to at most 1.")
	if len(expected) > 0 {
		fmt.Fprintf(&b, " The text is most likely one of: %s.", strings.Join(expected, ", "))
	}
	return []providers.ChatMessage{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: input},
	}
}

// ParseDetections validates a JSON detection answer against the detection schema and
// returns the guesses ordered by confidence.
func ParseDetections(raw string) ([]capability.Detection, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return nil, fmt.Errorf("detection answer contains no JSON object")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(detectionSchema), gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("detection answer failed validation: %s", strings.Join(details, "; "))
	}

	var decoded struct {
		Results []struct {
			Language   string  `json:"language"`
			Confidence float64 `json:"confidence"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, err
	}

	out := make([]capability.Detection, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		out = append(out, capability.Detection{Language: strings.TrimSpace(r.Language), Confidence: r.Confidence})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

// extractJSONObject returns the outermost {...} span of s, tolerating code fences
// and chatter around the object.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
