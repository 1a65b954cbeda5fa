package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for cfgpush.
// It is read once at startup and passed by pointer; nothing mutates it afterwards.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	API        APIConfig        `toml:"api"`
	Watch      WatchConfig      `toml:"watch"`
	Notify     NotifyConfig     `toml:"notify"`
	Database   DatabaseConfig   `toml:"database"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// Duration is a time.Duration that reads and writes as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// APIConfig describes the commit API endpoint and its transport policy.
type APIConfig struct {
	BaseURL            string   `toml:"base_url"`   // e.g. https://gitlab.example.com/api/v4
	ProjectID          string   `toml:"project_id"` // numeric ID or "group/project"
	Token              string   `toml:"token"`      // sent as PRIVATE-TOKEN
	Branch             string   `toml:"branch"`
	MaxAttempts        int      `toml:"max_attempts"`
	RetryWaitMin       Duration `toml:"retry_wait_min"`
	RetryWaitMax       Duration `toml:"retry_wait_max"`
	Timeout            Duration `toml:"timeout"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

// WatchConfig describes where arrivals land and how they are picked up.
type WatchConfig struct {
	Root              string   `toml:"root"`
	Extension         string   `toml:"extension"`
	SegmentIndex      int      `toml:"segment_index"` // index into the slash-split path holding the device token
	SettleDelay       Duration `toml:"settle_delay"`
	StabilityInterval Duration `toml:"stability_interval"`
	StabilityTimeout  Duration `toml:"stability_timeout"`
	FallbackDelay     Duration `toml:"fallback_delay"`
	DeleteOnSuccess   bool     `toml:"delete_on_success"`
	Ignore            []string `toml:"ignore"`
}

// NotifyConfig holds the failure webhook. An empty URL disables notifications.
type NotifyConfig struct {
	WebhookURL string   `toml:"webhook_url"`
	Timeout    Duration `toml:"timeout"`
}

// DatabaseConfig represents configuration for the arrivals ledger.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ArchiveConfig controls the copy of each pushed configuration kept in a vault.
type ArchiveConfig struct {
	Enabled bool        `toml:"enabled"`
	Encrypt bool        `toml:"encrypt"`
	Vault   VaultConfig `toml:"vault"`
}

// VaultConfig represents configuration for a vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for archive encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`

	// Recipients lists additional age public keys that can open archived copies.
	Recipients []string `toml:"recipients,omitempty"`
}

// NewConfig creates a new Config rooted at baseDir with default policies.
func NewConfig(baseDir string) *Config {
	cfg := defaults()
	cfg.BaseDir = baseDir
	cfg.fillPaths()
	return cfg
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			Branch:             "master",
			MaxAttempts:        3,
			RetryWaitMin:       Duration{time.Second},
			RetryWaitMax:       Duration{30 * time.Second},
			Timeout:            Duration{30 * time.Second},
			InsecureSkipVerify: true,
		},
		Watch: WatchConfig{
			Extension:     ".gz",
			SegmentIndex:  3,
			SettleDelay:   Duration{30 * time.Second},
			FallbackDelay: Duration{time.Second},
		},
		Notify: NotifyConfig{
			Timeout: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{Type: "sqlite"},
		Archive: ArchiveConfig{
			Vault: VaultConfig{Type: "filesystem", Name: "archive"},
		},
	}
}

// fillPaths derives unset paths from BaseDir.
func (c *Config) fillPaths() {
	if c.BaseDir == "" {
		return
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.Database.DataDir == "" {
		c.Database.DataDir = filepath.Join(c.BaseDir, "db")
	}
	if c.Archive.Vault.FSVaultRoot == "" {
		c.Archive.Vault.FSVaultRoot = filepath.Join(c.BaseDir, "archive")
	}
	if c.Encryption.PublicKeyPath == "" {
		c.Encryption.PublicKeyPath = filepath.Join(c.BaseDir, "keys", "cfgpush.pub")
	}
	if c.Encryption.PrivateKeyPath == "" {
		c.Encryption.PrivateKeyPath = filepath.Join(c.BaseDir, "keys", "cfgpush.key")
	}
}

// Validate checks the settings every command that talks to the API depends on.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.ProjectID == "" {
		return fmt.Errorf("api.project_id is required")
	}
	if c.Watch.Extension == "" {
		return fmt.Errorf("watch.extension is required")
	}
	if c.Watch.SegmentIndex < 0 {
		return fmt.Errorf("watch.segment_index must not be negative, got %d", c.Watch.SegmentIndex)
	}
	if c.API.MaxAttempts < 1 {
		return fmt.Errorf("api.max_attempts must be at least 1, got %d", c.API.MaxAttempts)
	}
	return nil
}

// ApplyEnv overrides secrets from the environment so they can stay out of the config file:
//   - CFGPUSH_TOKEN: api.token
//   - CFGPUSH_WEBHOOK_URL: notify.webhook_url
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CFGPUSH_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := getenv("CFGPUSH_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Settings missing from the
// input keep their defaults, and unset paths are derived from base_dir.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := defaults()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.fillPaths()
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold the API token.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
