package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/catalogue"
	"github.com/humanmadecert/hmcert/config"
	"github.com/humanmadecert/hmcert/fingerprint"
	"github.com/humanmadecert/hmcert/logging"
	"github.com/humanmadecert/hmcert/storage"
)

// globalFlags holds the persistent flags of the root command.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// app is the per-invocation environment: the loaded configuration and a
// logger built from it.
type app struct {
	cfg        *config.Config
	configPath string
	log        *zap.Logger
	sync       func()
}

func loadApp(flags *globalFlags) (*app, error) {
	cfg, path, _, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	format := cfg.Logging.Format
	if flags.logFormat != "" {
		format = flags.logFormat
	} else if isTerminal(os.Stderr) {
		format = "console"
	}

	log, sync, err := logging.New(level, format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, configPath: path, log: log, sync: sync}, nil
}

func (a *app) Close() {
	if a.sync != nil {
		a.sync()
	}
}

func (a *app) order() (fingerprint.Order, error) {
	return fingerprint.ParseOrder(a.cfg.Fingerprint.Order)
}

func (a *app) openCatalogue(ctx context.Context) (*catalogue.Store, error) {
	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return catalogue.Open(ctx, a.cfg.Paths.CatalogueDB, a.log.Named("catalogue"))
}

// openStore builds the configured object store. The local store is also
// returned on its own when it is the selected backend, since only it can be
// browsed.
func (a *app) openStore(ctx context.Context) (storage.Store, *storage.LocalStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendLocal:
		if err := a.cfg.EnsureDirectories(); err != nil {
			return nil, nil, err
		}
		local, err := storage.NewLocalStore(a.cfg.Storage.LocalDir, a.cfg.Storage.MaxFileSize, a.log.Named("storage"))
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	case config.BackendR2:
		r2cfg := storage.DefaultR2Config(a.cfg.R2.AccountID, a.cfg.R2.Bucket)
		r2cfg.AccessKeyID = a.cfg.R2.AccessKeyID
		r2cfg.SecretAccessKey = a.cfg.R2.SecretAccessKey
		r2cfg.Region = a.cfg.R2.Region
		r2cfg.Endpoint = a.cfg.R2.Endpoint
		r2cfg.PresignTTL = a.cfg.PresignTTL()
		r2cfg.MaxFileSize = a.cfg.Storage.MaxFileSize
		r2, err := storage.NewR2Store(ctx, r2cfg, a.log.Named("storage"))
		if err != nil {
			return nil, nil, err
		}
		return r2, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
