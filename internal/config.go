package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Content sources.
const (
	SourceCatalog = "catalog"
	SourceBackend = "backend"
)

// Narration providers.
const (
	ProviderFunction = "function"
	ProviderOpenAI   = "openai"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Content   ContentConfig     `yaml:"content"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Backend   BackendConfig     `yaml:"backend"`
	Narration NarrationConfig   `yaml:"narration"`
	Preview   PreviewConfig     `yaml:"preview"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	switch c.Content.Source {
	case SourceCatalog:
		if err := c.SQLite.Validate(); err != nil {
			return err
		}
	case SourceBackend:
		if err := c.Backend.Validate(); err != nil {
			return err
		}
	}
	if err := c.Narration.Validate(); err != nil {
		return err
	}
	if err := c.Preview.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig selects where stories come from.
//
// Source "catalog" reads Markdown story files from Dir into the local SQLite
// catalog; "backend" queries the hosted REST backend.
type ContentConfig struct {
	Source string `yaml:"source"`
	Dir    string `yaml:"dir"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required, validation.In(SourceCatalog, SourceBackend)),
		validation.Field(&c.Dir, validation.When(c.Source == SourceCatalog, validation.Required)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// BackendConfig holds the hosted backend connection.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, httpURL),
		validation.Field(&c.APIKey, validation.Required),
	)
}

// NarrationConfig selects and configures the narration provider.
type NarrationConfig struct {
	Provider string `yaml:"provider"`
	// URL is the hosted backend base for the "function" provider.
	URL      string        `yaml:"url"`
	Function string        `yaml:"function"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the narration configuration.
func (c *NarrationConfig) Validate() error {
	fn := c.Provider == ProviderFunction
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderFunction, ProviderOpenAI)),
		validation.Field(&c.URL, validation.When(fn, validation.Required, httpURL)),
		validation.Field(&c.Function, validation.When(fn, validation.Required)),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Model, validation.When(!fn, validation.Required)),
		validation.Field(&c.BaseURL, httpURL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// PreviewConfig bounds the story preview activations.
type PreviewConfig struct {
	LoadTimeout    time.Duration `yaml:"load_timeout"`
	IdleTTL        time.Duration `yaml:"idle_ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	MaxActivations int           `yaml:"max_activations"`
	// RenderWait is how long a page waits for the content load before
	// rendering the loading state.
	RenderWait time.Duration `yaml:"render_wait"`
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LoadTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.IdleTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SweepInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxActivations, validation.Min(0)),
		validation.Field(&c.RenderWait, validation.Min(time.Duration(0))),
	)
}

// httpURL accepts empty values and absolute http(s) URLs.
var httpURL = validation.By(func(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
})

// AuthConfig holds authentication for operator endpoints.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// Environment variables read by NewDefaultConfig. config/config.yaml expands
// the same names.
const (
	EnvBackendURL = "BACKEND_URL"
	EnvBackendKey = "BACKEND_ANON_KEY"
	EnvAuthToken  = "APP_AUTH_TOKEN"
)

// NewDefaultConfig returns a new Config with sensible default values.
// Backend and narration credentials come from the environment, so a
// deployment without a config file still validates once they are set.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Source: SourceCatalog,
			Dir:    "./content",
		},
		SQLite: SQLiteConfig{
			Path: "./heritage.db",
		},
		Backend: BackendConfig{
			URL:     os.Getenv(EnvBackendURL),
			APIKey:  os.Getenv(EnvBackendKey),
			Timeout: 10 * time.Second,
		},
		Narration: NarrationConfig{
			Provider: ProviderFunction,
			URL:      os.Getenv(EnvBackendURL),
			Function: "text-to-speech",
			APIKey:   os.Getenv(EnvBackendKey),
			Model:    "gpt-4o-mini",
			Timeout:  30 * time.Second,
		},
		Preview: PreviewConfig{
			LoadTimeout:    10 * time.Second,
			IdleTTL:        15 * time.Minute,
			SweepInterval:  time.Minute,
			MaxActivations: 1024,
			RenderWait:     300 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode:  AuthModeDisabled,
			Token: os.Getenv(EnvAuthToken),
		},
	}
}
