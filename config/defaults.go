package config

import "time"

const (
	BackendLocal = "local"
	BackendR2    = "r2"
)

const (
	defaultConfigPath        = "~/.config/hmcert/config.toml"
	defaultDataDir           = "~/.local/share/hmcert"
	defaultCatalogueName     = "catalogue.db"
	defaultObjectsName       = "objects"
	defaultBackend           = BackendLocal
	defaultPresignTTLSeconds = 60
	defaultMaxFileSize       = 5 * 1024 * 1024 * 1024
	defaultMaxTotalSize      = 5 * 1024 * 1024 * 1024
	defaultR2Region          = "auto"
	defaultBind              = "127.0.0.1:8080"
	defaultShutdownSeconds   = 10
	defaultCaptchaVerifyURL  = "https://www.google.com/recaptcha/api/siteverify"
	defaultCaptchaMinScore   = 0.5
	defaultFingerprintOrder  = "bytewise"
	defaultLogFormat         = "json"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Storage: Storage{
			Backend:           defaultBackend,
			PresignTTLSeconds: defaultPresignTTLSeconds,
			MaxFileSize:       defaultMaxFileSize,
			MaxTotalSize:      defaultMaxTotalSize,
		},
		R2: R2{
			Region: defaultR2Region,
		},
		Server: Server{
			Bind:                   defaultBind,
			ShutdownTimeoutSeconds: defaultShutdownSeconds,
		},
		Captcha: Captcha{
			VerifyURL: defaultCaptchaVerifyURL,
			MinScore:  defaultCaptchaMinScore,
		},
		Fingerprint: Fingerprint{
			Order: defaultFingerprintOrder,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// PresignTTL returns the presigned URL lifetime.
func (c *Config) PresignTTL() time.Duration {
	return time.Duration(c.Storage.PresignTTLSeconds) * time.Second
}

// ShutdownTimeout returns how long the server waits for in-flight requests.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
