package ai

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/flowme-cloud/flowme-backend/internal/settings"
)

var (
	ErrConfigDisabled = errors.New("AI generation is disabled")
	ErrConfigProvider = errors.New("unsupported AI provider")
	ErrConfigSecret   = errors.New("AI API key is not configured")
	ErrConfigBaseURL  = errors.New("AI base URL must be a valid https URL")
	ErrConfigHost     = errors.New("AI host is not in the allowed hosts list")
)

// SupportedProvider is the only provider tag accepted.
const SupportedProvider = "openai"

// Target is a validated destination for a generation call.
type Target struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// AssertConfig checks the stored settings and fails closed on anything
// missing or not allowed.
func AssertConfig(s *settings.Settings) (*Target, error) {
	if s == nil || !s.Enabled {
		return nil, ErrConfigDisabled
	}
	if strings.ToLower(strings.TrimSpace(s.AIProvider)) != SupportedProvider {
		return nil, ErrConfigProvider
	}
	if strings.TrimSpace(s.SecretValue) == "" {
		return nil, ErrConfigSecret
	}

	base := strings.TrimSpace(s.APIBaseURL)
	if base == "" {
		base = settings.DefaultAPIBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme != "https" || u.Hostname() == "" {
		return nil, ErrConfigBaseURL
	}
	if !HostAllowed(u.Hostname(), s.AllowedAIHosts) {
		return nil, ErrConfigHost
	}

	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = settings.DefaultModel
	}
	timeout := s.TimeoutSeconds
	if timeout <= 0 {
		timeout = settings.DefaultTimeoutSeconds
	}

	return &Target{
		Endpoint: responsesEndpoint(base),
		APIKey:   strings.TrimSpace(s.SecretValue),
		Model:    model,
		Timeout:  time.Duration(timeout) * time.Second,
	}, nil
}

// responsesEndpoint appends the responses path, without doubling /v1.
func responsesEndpoint(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/responses"
	}
	return base + "/v1/responses"
}
