package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
	"github.com/flowme-cloud/flowme-backend/internal/settings"
)

const (
	MaxTextChars  = 12000
	MaxImageChars = 4000000

	imagePrefix = "data:image/"
)

var (
	ErrEmptyText     = errors.New("text is required")
	ErrTextTooLong   = fmt.Errorf("text must be at most %d characters", MaxTextChars)
	ErrEmptyImage    = errors.New("image is required")
	ErrImageTooLarge = fmt.Errorf("image must be at most %d characters", MaxImageChars)
	ErrImageFormat   = errors.New("image must be a data:image/ URL")
)

// SettingsSource supplies the current AI configuration.
type SettingsSource interface {
	Current(ctx context.Context) (*settings.Settings, error)
}

// Gateway validates input and configuration, calls the provider and
// extracts the draw.io document from the answer.
type Gateway struct {
	settings   SettingsSource
	dispatcher Dispatcher
	prompts    *Prompts
}

func NewGateway(src SettingsSource, d Dispatcher, p *Prompts) *Gateway {
	return &Gateway{settings: src, dispatcher: d, prompts: p}
}

// call is a validated request ready to be sent.
type call struct {
	target *Target
	body   []byte
	mode   Mode
}

// IsValidationError reports whether err was caused by the caller's input or
// by the stored configuration, rather than by the provider.
func IsValidationError(err error) bool {
	for _, e := range []error{
		ErrEmptyText, ErrTextTooLong, ErrEmptyImage, ErrImageTooLarge, ErrImageFormat,
		ErrConfigDisabled, ErrConfigProvider, ErrConfigSecret, ErrConfigBaseURL, ErrConfigHost,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return ErrTextTooLong
	}
	return nil
}

func checkImage(dataURL string) error {
	if strings.TrimSpace(dataURL) == "" {
		return ErrEmptyImage
	}
	if len(dataURL) > MaxImageChars {
		return ErrImageTooLarge
	}
	if !strings.HasPrefix(dataURL, imagePrefix) {
		return ErrImageFormat
	}
	return nil
}

func (g *Gateway) target(ctx context.Context) (*Target, error) {
	s, err := g.settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AI settings: %w", err)
	}
	return AssertConfig(s)
}

func (g *Gateway) prepareText(ctx context.Context, text, mode string) (*call, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	t, err := g.target(ctx)
	if err != nil {
		return nil, err
	}
	m := ParseMode(mode, ModeWorkflow)
	body, err := BuildTextRequest(t.Model, g.prompts.For(m), text)
	if err != nil {
		return nil, err
	}
	return &call{target: t, body: body, mode: m}, nil
}

func (g *Gateway) prepareImage(ctx context.Context, dataURL, mode string) (*call, error) {
	if err := checkImage(dataURL); err != nil {
		return nil, err
	}
	t, err := g.target(ctx)
	if err != nil {
		return nil, err
	}
	m := ParseMode(mode, ModeImage)
	body, err := BuildImageRequest(t.Model, g.prompts.For(m), dataURL)
	if err != nil {
		return nil, err
	}
	return &call{target: t, body: body, mode: m}, nil
}

func (g *Gateway) execute(ctx context.Context, c *call) (string, error) {
	logger := logging.NewLogger(ctx)
	logger.LogInfof("ai_generate", "mode=%s model=%s", c.mode, c.target.Model)

	resp, err := g.dispatcher.Dispatch(ctx, c.target, c.body)
	if err != nil {
		logger.LogError("ai_generate", err)
		return "", err
	}
	xml, err := extractFromResponse(resp)
	if err != nil {
		logger.LogWarnf("ai_generate", "no diagram in response bytes=%d", len(resp))
		return "", err
	}
	return xml, nil
}

// TextToDiagram turns a description into draw.io XML. An unknown mode uses
// the workflow template.
func (g *Gateway) TextToDiagram(ctx context.Context, text, mode string) (string, error) {
	c, err := g.prepareText(ctx, text, mode)
	if err != nil {
		return "", err
	}
	return g.execute(ctx, c)
}

// ImageToDiagram rebuilds the diagram in an image data URL. An empty mode
// uses the image template.
func (g *Gateway) ImageToDiagram(ctx context.Context, dataURL, mode string) (string, error) {
	c, err := g.prepareImage(ctx, dataURL, mode)
	if err != nil {
		return "", err
	}
	return g.execute(ctx, c)
}
