package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/humanmadecert/hmcert/fingerprint"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateCaptcha(); err != nil {
		return err
	}
	if err := c.validateFingerprint(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
	case BackendR2:
		var missing []string
		if c.R2.Endpoint == "" && c.R2.AccountID == "" {
			missing = append(missing, "r2.account_id")
		}
		if c.R2.AccessKeyID == "" {
			missing = append(missing, "r2.access_key_id")
		}
		if c.R2.SecretAccessKey == "" {
			missing = append(missing, "r2.secret_access_key")
		}
		if c.R2.Bucket == "" {
			missing = append(missing, "r2.bucket")
		}
		if len(missing) > 0 {
			return fmt.Errorf("storage.backend is r2 but %s not set", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendLocal, BackendR2, c.Storage.Backend)
	}
	if c.Storage.PresignTTLSeconds < 0 {
		return errors.New("storage.presign_ttl_seconds must be positive")
	}
	if c.Storage.MaxFileSize < 0 || c.Storage.MaxTotalSize < 0 {
		return errors.New("storage size limits must be positive")
	}
	return nil
}

func (c *Config) validateCaptcha() error {
	if c.Captcha.MinScore < 0 || c.Captcha.MinScore > 1 {
		return errors.New("captcha.min_score must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateFingerprint() error {
	if _, err := fingerprint.ParseOrder(c.Fingerprint.Order); err != nil {
		return fmt.Errorf("fingerprint.order: %w", err)
	}
	if c.Fingerprint.Workers < 0 {
		return errors.New("fingerprint.workers must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
