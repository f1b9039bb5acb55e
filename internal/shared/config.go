package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is the prefix used for environment overrides, e.g. WRAPPED_SERVER_PORT.
const EnvPrefix = "wrapped"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Mail        MailConfig        `toml:"mail"`
	Storage     StorageConfig     `toml:"storage"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	LogLevel    string            `toml:"log_level" split_words:"true"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	OpenAI  OpenAIConfig  `toml:"openai"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
//
// The endpoint fields are only overridden in tests.
type SpotifyConfig struct {
	ClientID     string  `toml:"client_id" envconfig:"SPOTIFY_CLIENT_ID"`
	ClientSecret string  `toml:"client_secret" envconfig:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string  `toml:"redirect_uri" envconfig:"SPOTIFY_REDIRECT_URI"`
	ShowDialog   bool    `toml:"show_dialog" split_words:"true"`
	RateLimit    float64 `toml:"rate_limit" split_words:"true"`
	AuthURL      string  `toml:"auth_url" split_words:"true"`
	TokenURL     string  `toml:"token_url" split_words:"true"`
	APIURL       string  `toml:"api_url" split_words:"true"`
}

// OpenAIConfig configures the description generator. An empty APIKey disables it.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL string `toml:"base_url" split_words:"true"`
	Model   string `toml:"model"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is either "sqlite3" (DSN is a file path or ":memory:") or "pgx".
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn" envconfig:"DATABASE_URL"`
	MaxOpenConns int    `toml:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `toml:"max_idle_conns" split_words:"true"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string        `toml:"host"`
	Port         int           `toml:"port" envconfig:"PORT"`
	ReadTimeout  time.Duration `toml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `toml:"write_timeout" split_words:"true"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig holds the secrets for the session cookie store and auth tokens.
type SessionConfig struct {
	Name      string        `toml:"name"`
	Secret    string        `toml:"secret" envconfig:"SESSION_SECRET"`
	JWTSecret string        `toml:"jwt_secret" envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `toml:"token_ttl" split_words:"true"`
	Secure    bool          `toml:"secure"`
}

// MailConfig contains SMTP settings for the contact form.
type MailConfig struct {
	Host         string `toml:"host" envconfig:"EMAIL_HOST"`
	Port         int    `toml:"port" envconfig:"EMAIL_PORT"`
	Username     string `toml:"username" envconfig:"EMAIL_HOST_USER"`
	Password     string `toml:"password" envconfig:"EMAIL_HOST_PASSWORD"`
	From         string `toml:"from"`
	ContactEmail string `toml:"contact_email" envconfig:"CONTACT_EMAIL"`
	UseTLS       bool   `toml:"use_tls" split_words:"true"`
}

// StorageConfig points at an S3-compatible bucket for profile pictures.
// An empty Endpoint disables uploads.
type StorageConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key" split_words:"true"`
	SecretKey string `toml:"secret_key" split_words:"true"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl" split_words:"true"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `toml:"enabled"`
	ServiceName  string  `toml:"service_name" split_words:"true"`
	Endpoint     string  `toml:"endpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Protocol     string  `toml:"protocol"`
	SampleRatio  float64 `toml:"sample_ratio" split_words:"true"`
	MetricsRoute string  `toml:"metrics_route" split_words:"true"`
}

// LoadConfig reads a TOML configuration file from path on top of the embedded defaults,
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to the defaults (with environment
// overrides applied) otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadConfig(path)
	}
	config := DefaultConfig()
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv loads a .env file when present and overlays matching environment variables.
// Variables that are not set leave the current values untouched.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports the first missing setting required to serve requests.
func (c *Config) Validate() error {
	switch {
	case c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "":
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", ErrMissingCredentials)
	case c.Credentials.Spotify.RedirectURI == "":
		return fmt.Errorf("%w: spotify redirect_uri must be set", ErrInvalidConfig)
	case c.Database.Driver != "sqlite3" && c.Database.Driver != "pgx":
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	case c.Session.Secret == "" || c.Session.JWTSecret == "":
		return fmt.Errorf("%w: session secret and jwt_secret must be set", ErrInvalidConfig)
	}
	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidArgument, path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
