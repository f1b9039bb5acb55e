package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected database driver sqlite3, got %s", config.Database.Driver)
		}

		if config.Database.DSN != "./wrapped.db" {
			t.Errorf("expected database dsn ./wrapped.db, got %s", config.Database.DSN)
		}

		if config.Server.Port != 8000 {
			t.Errorf("expected server port 8000, got %d", config.Server.Port)
		}

		if config.Server.ReadTimeout != 15*time.Second {
			t.Errorf("expected read timeout 15s, got %v", config.Server.ReadTimeout)
		}

		if config.Mail.Host != "smtp.gmail.com" || config.Mail.Port != 587 || !config.Mail.UseTLS {
			t.Errorf("unexpected mail defaults: %+v", config.Mail)
		}

		if config.Credentials.OpenAI.Model != "gpt-3.5-turbo" {
			t.Errorf("expected openai model gpt-3.5-turbo, got %s", config.Credentials.OpenAI.Model)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.DSN != DefaultConfig().Database.DSN {
			t.Errorf("created config database dsn doesn't match default")
		}

		if err := CreateConfigFile(configPath); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("creating config file again should fail with ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
driver = "pgx"
dsn = "postgres://wrapped@localhost/wrapped"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:8080/spotify/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != DriverPostgres {
			t.Errorf("expected database driver pgx, got %s", config.Database.Driver)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Session.Name != "wrapped_session" {
			t.Errorf("unset sections should keep defaults, got session name %q", config.Session.Name)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Environment Overrides", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env-client")
		t.Setenv("OPENAI_API_KEY", "sk-env")
		t.Setenv("WRAPPED_SERVER_PORT", "9999")

		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env-client" {
			t.Errorf("expected client id from env, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.OpenAI.APIKey != "sk-env" {
			t.Errorf("expected openai key from env, got %s", config.Credentials.OpenAI.APIKey)
		}
		if config.Server.Port != 9999 {
			t.Errorf("expected port 9999 from env, got %d", config.Server.Port)
		}
		if config.Credentials.Spotify.RedirectURI == "" {
			t.Error("unset variables should keep file values")
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "saved"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Credentials.Spotify.ClientID != "saved" {
			t.Errorf("expected saved client id, got %s", loaded.Credentials.Spotify.ClientID)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}

		config.Credentials.Spotify.ClientID = "id"
		config.Credentials.Spotify.ClientSecret = "secret"
		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}

		config.Database.Driver = "mysql"
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
