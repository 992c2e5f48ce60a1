package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directories.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	CatalogueDB string `toml:"catalogue_db"`
}

// Storage selects and tunes the object storage backend.
type Storage struct {
	Backend           string `toml:"backend"` // "local" or "r2"
	LocalDir          string `toml:"local_dir"`
	PresignTTLSeconds int    `toml:"presign_ttl_seconds"`
	MaxFileSize       int64  `toml:"max_file_size"`
	MaxTotalSize      int64  `toml:"max_total_size"`
}

// R2 contains Cloudflare R2 credentials.
type R2 struct {
	AccountID       string `toml:"account_id"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"` // overrides the account endpoint when set
}

// Server contains HTTP API settings.
type Server struct {
	Bind                   string `toml:"bind"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// Auth contains bearer token verification settings.
type Auth struct {
	JWTSecret string `toml:"jwt_secret"`
	Issuer    string `toml:"issuer"`
}

// Captcha contains reCAPTCHA verification settings.
type Captcha struct {
	SecretKey string  `toml:"secret_key"`
	VerifyURL string  `toml:"verify_url"`
	MinScore  float64 `toml:"min_score"`
}

// Fingerprint contains folder fingerprint settings.
type Fingerprint struct {
	Order   string `toml:"order"`
	Workers int    `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for hmcert.
//
// Configuration sections by subsystem:
//   - Paths: data directory and catalogue database
//   - Storage: object storage backend and upload limits
//   - R2: Cloudflare R2 credentials for the r2 backend
//   - Server: HTTP API bind address
//   - Auth: bearer token verification
//   - Captcha: reCAPTCHA v3 verification for presign requests
//   - Fingerprint: path ordering and read concurrency
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Storage     Storage     `toml:"storage"`
	R2          R2          `toml:"r2"`
	Server      Server      `toml:"server"`
	Auth        Auth        `toml:"auth"`
	Captcha     Captcha     `toml:"captcha"`
	Fingerprint Fingerprint `toml:"fingerprint"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// EnsureDirectories creates the data directory and, for the local backend,
// the object directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, filepath.Dir(c.Paths.CatalogueDB)}
	if c.Storage.Backend == BackendLocal {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RebaseDataDir moves the data directory to dir and re-derives the catalogue
// database and local object directory below it.
func (c *Config) RebaseDataDir(dir string) error {
	c.Paths.DataDir = dir
	c.Paths.CatalogueDB = ""
	c.Storage.LocalDir = ""
	if err := c.normalizePaths(); err != nil {
		return err
	}
	return c.normalizeStorage()
}

// ExpandPath expands a leading ~ and returns the cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML with secrets redacted.
func (c Config) Encode() (string, error) {
	redacted := c
	for _, secret := range []*string{&redacted.R2.SecretAccessKey, &redacted.Auth.JWTSecret, &redacted.Captcha.SecretKey} {
		if *secret != "" {
			*secret = "<redacted>"
		}
	}
	out, err := toml.Marshal(redacted)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}
