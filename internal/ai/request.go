package ai

import (
	"encoding/json"
	"fmt"
)

// imageUserText accompanies an uploaded image.
const imageUserText = "Recreate the diagram in this image as a draw.io document."

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type inputMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
}

func systemMessage(instruction string) inputMessage {
	return inputMessage{Role: "system", Content: []contentPart{{Type: "input_text", Text: instruction}}}
}

// BuildTextRequest encodes a text-to-diagram request.
func BuildTextRequest(model, instruction, text string) ([]byte, error) {
	return encodeRequest(responsesRequest{
		Model: model,
		Input: []inputMessage{
			systemMessage(instruction),
			{Role: "user", Content: []contentPart{{Type: "input_text", Text: text}}},
		},
	})
}

// BuildImageRequest encodes an image-to-diagram request. dataURL is sent
// as-is.
func BuildImageRequest(model, instruction, dataURL string) ([]byte, error) {
	return encodeRequest(responsesRequest{
		Model: model,
		Input: []inputMessage{
			systemMessage(instruction),
			{Role: "user", Content: []contentPart{
				{Type: "input_text", Text: imageUserText},
				{Type: "input_image", ImageURL: dataURL},
			}},
		},
	})
}

func encodeRequest(r responsesRequest) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode ai request: %w", err)
	}
	return b, nil
}
