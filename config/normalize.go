package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeR2()
	c.normalizeSecrets()
	c.normalizeLogging()
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Fingerprint.Order = strings.TrimSpace(c.Fingerprint.Order)
	if c.Fingerprint.Order == "" {
		c.Fingerprint.Order = defaultFingerprintOrder
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogueDB) == "" {
		c.Paths.CatalogueDB = filepath.Join(c.Paths.DataDir, defaultCatalogueName)
	}
	if c.Paths.CatalogueDB, err = ExpandPath(c.Paths.CatalogueDB); err != nil {
		return fmt.Errorf("paths.catalogue_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultBackend
	}
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = filepath.Join(c.Paths.DataDir, defaultObjectsName)
	}
	var err error
	if c.Storage.LocalDir, err = ExpandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	if c.Storage.PresignTTLSeconds == 0 {
		c.Storage.PresignTTLSeconds = defaultPresignTTLSeconds
	}
	if c.Storage.MaxFileSize == 0 {
		c.Storage.MaxFileSize = defaultMaxFileSize
	}
	if c.Storage.MaxTotalSize == 0 {
		c.Storage.MaxTotalSize = defaultMaxTotalSize
	}
	return nil
}

func (c *Config) normalizeR2() {
	lookup(&c.R2.AccountID, "R2_ACCOUNT_ID")
	lookup(&c.R2.AccessKeyID, "R2_ACCESS_KEY_ID")
	lookup(&c.R2.SecretAccessKey, "R2_SECRET_ACCESS_KEY")
	lookup(&c.R2.Bucket, "R2_BUCKET_NAME")
	c.R2.Region = strings.TrimSpace(c.R2.Region)
	if c.R2.Region == "" {
		c.R2.Region = defaultR2Region
	}
	c.R2.Endpoint = strings.TrimRight(strings.TrimSpace(c.R2.Endpoint), "/")
}

func (c *Config) normalizeSecrets() {
	lookup(&c.Auth.JWTSecret, "HMCERT_JWT_SECRET")
	lookup(&c.Captcha.SecretKey, "RECAPTCHA_SECRET_KEY")
	c.Auth.Issuer = strings.TrimSpace(c.Auth.Issuer)
	c.Captcha.VerifyURL = strings.TrimSpace(c.Captcha.VerifyURL)
	if c.Captcha.VerifyURL == "" {
		c.Captcha.VerifyURL = defaultCaptchaVerifyURL
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// lookup trims *field and fills it from the environment when empty.
func lookup(field *string, env string) {
	*field = strings.TrimSpace(*field)
	if *field != "" {
		return
	}
	if value, ok := os.LookupEnv(env); ok {
		*field = strings.TrimSpace(value)
	}
}
