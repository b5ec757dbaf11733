package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvBackendCallTimeout = "TESSERA_BACKEND_CALL_TIMEOUT"

	EnvBackendLocalProvider = "TESSERA_BACKEND_LOCAL_PROVIDER"
	EnvBackendLocalBaseURL  = "TESSERA_BACKEND_LOCAL_BASE_URL"

	EnvBackendCloudProvider   = "TESSERA_BACKEND_CLOUD_PROVIDER"
	EnvBackendCloudBaseURL    = "TESSERA_BACKEND_CLOUD_BASE_URL"
	EnvBackendCloudToken      = "TESSERA_BACKEND_CLOUD_TOKEN"
	EnvBackendCloudDeployment = "TESSERA_BACKEND_CLOUD_DEPLOYMENT"
	EnvBackendCloudAPIVersion = "TESSERA_BACKEND_CLOUD_API_VERSION"
	EnvBackendCloudAuthType   = "TESSERA_BACKEND_CLOUD_AUTH_TYPE"
)

// ProviderSettings describes one reasoning provider endpoint.
type ProviderSettings struct {
	Provider   string `toml:"provider"`
	BaseURL    string `toml:"base_url"`
	Token      string `toml:"token"`
	Deployment string `toml:"deployment"`
	APIVersion string `toml:"api_version"`
	AuthType   string `toml:"auth_type"`
}

// Configured reports whether the endpoint has been set up.
func (p *ProviderSettings) Configured() bool {
	return p.Provider != ""
}

// ProviderConfig converts the settings into a go-agents provider
// configuration, or nil when unconfigured.
func (p *ProviderSettings) ProviderConfig() *gaconfig.ProviderConfig {
	if !p.Configured() {
		return nil
	}

	options := make(map[string]any)
	for key, value := range map[string]string{
		"token":       p.Token,
		"deployment":  p.Deployment,
		"api_version": p.APIVersion,
		"auth_type":   p.AuthType,
	} {
		if value != "" {
			options[key] = value
		}
	}

	return &gaconfig.ProviderConfig{
		Name:    p.Provider,
		BaseURL: p.BaseURL,
		Options: options,
	}
}

func (p *ProviderSettings) merge(overlay *ProviderSettings) {
	if overlay.Provider != "" {
		p.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		p.BaseURL = overlay.BaseURL
	}
	if overlay.Token != "" {
		p.Token = overlay.Token
	}
	if overlay.Deployment != "" {
		p.Deployment = overlay.Deployment
	}
	if overlay.APIVersion != "" {
		p.APIVersion = overlay.APIVersion
	}
	if overlay.AuthType != "" {
		p.AuthType = overlay.AuthType
	}
}

// BackendConfig holds reasoning backend endpoints and the per-call timeout.
type BackendConfig struct {
	CallTimeout string           `toml:"call_timeout"`
	Local       ProviderSettings `toml:"local"`
	Cloud       ProviderSettings `toml:"cloud"`
}

// CallTimeoutDuration returns CallTimeout as a time.Duration.
func (c *BackendConfig) CallTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CallTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *BackendConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *BackendConfig) Merge(overlay *BackendConfig) {
	if overlay.CallTimeout != "" {
		c.CallTimeout = overlay.CallTimeout
	}
	c.Local.merge(&overlay.Local)
	c.Cloud.merge(&overlay.Cloud)
}

func (c *BackendConfig) loadDefaults() {
	if c.CallTimeout == "" {
		c.CallTimeout = "2m"
	}
	if c.Local.Provider == "" {
		c.Local.Provider = "ollama"
	}
	if c.Local.BaseURL == "" {
		c.Local.BaseURL = "http://localhost:11434"
	}
}

func (c *BackendConfig) loadEnv() {
	setString := func(envVar string, target *string) {
		if v := os.Getenv(envVar); v != "" {
			*target = v
		}
	}

	setString(EnvBackendCallTimeout, &c.CallTimeout)
	setString(EnvBackendLocalProvider, &c.Local.Provider)
	setString(EnvBackendLocalBaseURL, &c.Local.BaseURL)
	setString(EnvBackendCloudProvider, &c.Cloud.Provider)
	setString(EnvBackendCloudBaseURL, &c.Cloud.BaseURL)
	setString(EnvBackendCloudToken, &c.Cloud.Token)
	setString(EnvBackendCloudDeployment, &c.Cloud.Deployment)
	setString(EnvBackendCloudAPIVersion, &c.Cloud.APIVersion)
	setString(EnvBackendCloudAuthType, &c.Cloud.AuthType)
}

func (c *BackendConfig) validate() error {
	if _, err := time.ParseDuration(c.CallTimeout); err != nil {
		return fmt.Errorf("invalid call_timeout: %w", err)
	}
	if c.Cloud.Configured() && c.Cloud.BaseURL == "" {
		return fmt.Errorf("cloud base_url required when a cloud provider is set")
	}
	return nil
}
