package ai

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects the instruction template.
type Mode string

const (
	ModeWorkflow Mode = "workflow"
	ModeSwimlane Mode = "swimlane"
	ModeERD      Mode = "erd"
	ModeSmart    Mode = "smart"
	ModeImage    Mode = "image"
)

var allModes = []Mode{ModeWorkflow, ModeSwimlane, ModeERD, ModeSmart, ModeImage}

//go:embed prompts.yaml
var promptsYAML []byte

// Prompts holds the instruction templates by mode.
type Prompts struct {
	templates map[Mode]string
}

// LoadPrompts parses the embedded templates. Every mode must be present.
func LoadPrompts() (*Prompts, error) {
	return parsePrompts(promptsYAML)
}

func parsePrompts(data []byte) (*Prompts, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	p := &Prompts{templates: make(map[Mode]string, len(allModes))}
	for _, m := range allModes {
		tmpl := strings.TrimSpace(raw[string(m)])
		if tmpl == "" {
			return nil, fmt.Errorf("prompt template %q is missing", m)
		}
		p.templates[m] = tmpl
	}
	return p, nil
}

// ParseMode maps a user-supplied tag to a Mode. Unknown or empty tags fall
// back to fallback.
func ParseMode(tag string, fallback Mode) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(tag)))
	for _, known := range allModes {
		if m == known {
			return m
		}
	}
	return fallback
}

// For returns the template for m, or the workflow template when m is unknown.
func (p *Prompts) For(m Mode) string {
	if t, ok := p.templates[m]; ok {
		return t
	}
	return p.templates[ModeWorkflow]
}
