// Package settings persists the AI configuration singleton.
package settings

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Key is the storage key of the configuration record.
const Key = "flowme.config"

const (
	DefaultProvider       = "openai"
	DefaultModel          = "gpt-5.2"
	DefaultAPIBaseURL     = "https://api.openai.com"
	DefaultAllowedHost    = "api.openai.com"
	DefaultTimeoutSeconds = 360
)

// HostList is the AI host allowlist. It is stored as a comma separated
// string and accepts either a string or an array on input.
type HostList []string

// ParseHostList splits a comma separated list, dropping blanks.
func ParseHostList(s string) HostList {
	out := HostList{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h HostList) String() string {
	return strings.Join(h, ",")
}

func (h HostList) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *HostList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	list, err := toHostList(raw)
	if err != nil {
		return err
	}
	*h = list
	return nil
}

func toHostList(v any) (HostList, error) {
	switch t := v.(type) {
	case nil:
		return HostList{}, nil
	case string:
		return ParseHostList(t), nil
	default:
		items, err := cast.ToStringSliceE(t)
		if err != nil {
			return nil, fmt.Errorf("allowedAiHosts: %w", err)
		}
		return ParseHostList(strings.Join(items, ",")), nil
	}
}

// Settings is the stored AI configuration.
type Settings struct {
	Enabled        bool     `json:"enabled"`
	AIProvider     string   `json:"aiProvider"`
	SecretID       string   `json:"secretId"`
	SecretValue    string   `json:"secretValue"`
	Model          string   `json:"model"`
	APIBaseURL     string   `json:"apiBaseUrl"`
	AllowedAIHosts HostList `json:"allowedAiHosts"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
}

// Defaults returns a disabled configuration with the stock provider values.
func Defaults() *Settings {
	return &Settings{
		AIProvider:     DefaultProvider,
		Model:          DefaultModel,
		APIBaseURL:     DefaultAPIBaseURL,
		AllowedAIHosts: HostList{DefaultAllowedHost},
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// View is what clients see: the secret is never sent back.
type View struct {
	Settings
	SecretConfigured bool `json:"secretConfigured"`
}

// Public strips the secret.
func (s Settings) Public() View {
	configured := s.SecretValue != ""
	s.SecretValue = ""
	return View{Settings: s, SecretConfigured: configured}
}

// Update is a partial change from the settings form. Nil fields keep the
// stored value; a JSON null counts as omitted. The form sends numbers and booleans as strings at times, so
// decoding is lenient.
type Update struct {
	Enabled        *bool
	AIProvider     *string
	SecretID       *string
	SecretValue    *string
	Model          *string
	APIBaseURL     *string
	AllowedAIHosts *HostList
	TimeoutSeconds *int
}

func (u *Update) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("configuration payload must be an object")
	}

	if v, ok := raw["enabled"]; ok && v != nil {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("enabled: %w", err)
		}
		u.Enabled = &b
	}
	strField := func(key string, dst **string) {
		if v, ok := raw[key]; ok && v != nil {
			s := strings.TrimSpace(cast.ToString(v))
			*dst = &s
		}
	}
	strField("aiProvider", &u.AIProvider)
	strField("secretId", &u.SecretID)
	strField("secretValue", &u.SecretValue)
	strField("model", &u.Model)
	strField("apiBaseUrl", &u.APIBaseURL)

	if v, ok := raw["allowedAiHosts"]; ok && v != nil {
		hosts, err := toHostList(v)
		if err != nil {
			return err
		}
		u.AllowedAIHosts = &hosts
	}
	if v, ok := raw["timeoutSeconds"]; ok && v != nil && v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("timeoutSeconds: %w", err)
		}
		u.TimeoutSeconds = &n
	}
	return nil
}

// Apply merges u over s. An empty secret keeps the stored one.
func (u Update) Apply(s *Settings) {
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	if u.AIProvider != nil {
		s.AIProvider = *u.AIProvider
	}
	if u.SecretID != nil {
		s.SecretID = *u.SecretID
	}
	if u.SecretValue != nil && *u.SecretValue != "" {
		s.SecretValue = *u.SecretValue
	}
	if u.Model != nil {
		s.Model = *u.Model
	}
	if u.APIBaseURL != nil {
		s.APIBaseURL = *u.APIBaseURL
	}
	if u.AllowedAIHosts != nil {
		s.AllowedAIHosts = *u.AllowedAIHosts
	}
	if u.TimeoutSeconds != nil {
		s.TimeoutSeconds = *u.TimeoutSeconds
		if s.TimeoutSeconds <= 0 {
			s.TimeoutSeconds = DefaultTimeoutSeconds
		}
	}
}
