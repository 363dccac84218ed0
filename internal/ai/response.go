package ai

import (
	"encoding/json"
	"strings"
)

// responseText is one of the shapes the provider uses for generated text.
// The set is closed: flatText, textList and outputItems.
type responseText interface {
	text() string
	sealed()
}

// flatText is "output_text": "...".
type flatText string

// textList is "output_text": ["...", {"text": "..."}].
type textList []string

// outputItems is "output": [{"content": [{"text": "..."}]}].
type outputItems []string

func (t flatText) text() string    { return string(t) }
func (t textList) text() string    { return strings.Join(t, "") }
func (t outputItems) text() string { return strings.Join(t, "") }

func (flatText) sealed()    {}
func (textList) sealed()    {}
func (outputItems) sealed() {}

type rawResponse struct {
	OutputText json.RawMessage `json:"output_text"`
	Output     []struct {
		Content []struct {
			Text *string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// decodeResponse picks the first populated shape. It returns nil when the
// body is not JSON or carries no text in any known shape.
func decodeResponse(body []byte) responseText {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	if len(raw.OutputText) > 0 {
		var s string
		if err := json.Unmarshal(raw.OutputText, &s); err == nil && s != "" {
			return flatText(s)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw.OutputText, &items); err == nil {
			var parts textList
			for _, it := range items {
				if s, ok := fragmentText(it); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return parts
			}
		}
	}

	var parts outputItems
	for _, o := range raw.Output {
		for _, c := range o.Content {
			if c.Text != nil {
				parts = append(parts, *c.Text)
			}
		}
	}
	if len(parts) > 0 {
		return parts
	}
	return nil
}

func fragmentText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != nil {
		return *obj.Text, true
	}
	return "", false
}
