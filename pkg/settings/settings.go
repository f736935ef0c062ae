package settings

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ClientSettings configures the HTTP transport shared by adapters.
type ClientSettings struct {
	Timeout    *time.Duration `yaml:"timeout,omitempty"`
	UserAgent  *string        `yaml:"user_agent,omitempty"`
	HTTPClient *http.Client   `yaml:"-"`
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	return &ClientSettings{
		Timeout: &defaultTimeout,
	}
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// Client returns the configured HTTP client, building one from the timeout
// when none was injected.
func (cs *ClientSettings) Client() *http.Client {
	if cs.HTTPClient != nil {
		return cs.HTTPClient
	}
	ret := &http.Client{}
	if cs.Timeout != nil {
		ret.Timeout = *cs.Timeout
	}
	return ret
}

// StepSettings is the process-wide configuration store adapters are
// constructed from. Keys follow the "<provider>-api-key" /
// "<provider>-base-url" convention.
type StepSettings struct {
	APIKeys  map[string]string `yaml:"api_keys,omitempty"`
	BaseURLs map[string]string `yaml:"base_urls,omitempty"`
	Client   *ClientSettings   `yaml:"client,omitempty"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		APIKeys:  map[string]string{},
		BaseURLs: map[string]string{},
		Client:   NewClientSettings(),
	}
}

// NewStepSettingsFromYAML loads settings from a YAML file on top of defaults.
func NewStepSettingsFromYAML(path string) (*StepSettings, error) {
	ret := NewStepSettings()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read settings file %s", path)
	}
	if err := yaml.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrapf(err, "failed to parse settings file %s", path)
	}

	return ret, nil
}

func (s *StepSettings) Clone() *StepSettings {
	return clone.Clone(s).(*StepSettings)
}

// APIKey resolves the key for a provider: the explicit store first, then
// viper's bound configuration, then the per-provider environment variable
// (e.g. GEMINI_API_KEY). Resolution runs on every call, so keys exported or
// bound after the settings were built are still picked up.
func (s *StepSettings) APIKey(provider string) (string, bool) {
	if key, ok := s.APIKeys[provider+"-api-key"]; ok && key != "" {
		return key, true
	}
	if key := viper.GetString(provider + "-api-key"); key != "" {
		return key, true
	}
	if key := os.Getenv(strings.ToUpper(provider) + "_API_KEY"); key != "" {
		return key, true
	}
	return "", false
}

// BaseURL returns the configured endpoint override for a provider, or the
// given default.
func (s *StepSettings) BaseURL(provider string, defaultURL string) string {
	if u, ok := s.BaseURLs[provider+"-base-url"]; ok && u != "" {
		return u
	}
	if u := viper.GetString(provider + "-base-url"); u != "" {
		return u
	}
	return defaultURL
}

func (s *StepSettings) HTTPClient() *http.Client {
	if s.Client == nil {
		return &http.Client{}
	}
	return s.Client.Client()
}
