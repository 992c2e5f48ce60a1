package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/catfs"
	"github.com/humanmadecert/hmcert/version"
)

var errOverlap = errors.New("mountpoint and storage directory overlap")

// NewMountCmd creates and returns the mount subcommand.
// It exposes the catalogue as a read-only FUSE filesystem.
func NewMountCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mount [STORAGE_PATH] MOUNTPOINT",
		Short: "Mount the catalogue as a read-only filesystem",
		Long: `Mount the catalogue as a read-only filesystem at the specified mountpoint.

STORAGE_PATH is the hmcert data directory holding the catalogue database and,
for the local backend, the uploaded objects. It defaults to the configured
data directory. MOUNTPOINT is the directory where the filesystem will be
mounted. Each recorded track appears as a directory named by its folder
fingerprint.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			mountpoint := args[len(args)-1]
			if len(args) == 2 {
				if err := a.cfg.RebaseDataDir(args[0]); err != nil {
					return err
				}
			}
			storagePath := a.cfg.Paths.DataDir
			if pathsOverlap(storagePath, mountpoint) {
				return fmt.Errorf("%w: %s and %s", errOverlap, storagePath, mountpoint)
			}
			if err := os.MkdirAll(mountpoint, 0o755); err != nil {
				return fmt.Errorf("create mountpoint: %w", err)
			}

			cat, err := a.openCatalogue(cmd.Context())
			if err != nil {
				return err
			}
			defer cat.Close()

			var objects catfs.Objects
			if _, local, err := a.openStore(cmd.Context()); err == nil && local != nil {
				objects = local
			} else if err != nil {
				a.log.Warn("object store unavailable, mounting catalogue only", zap.Error(err))
			}

			a.log.Info("starting",
				zap.String("version", version.GetFullVersion()),
				zap.String("storage", storagePath),
				zap.String("mountpoint", mountpoint),
			)
			return catfs.Mount(cmd.Context(), mountpoint, catfs.New(cat, objects, a.log.Named("catfs")))
		},
	}
}

// pathsOverlap reports whether one path is the same as, or nested inside,
// the other.
func pathsOverlap(p1, p2 string) bool {
	a, err := filepath.Abs(p1)
	if err != nil {
		a = filepath.Clean(p1)
	}
	b, err := filepath.Abs(p2)
	if err != nil {
		b = filepath.Clean(p2)
	}
	return a == b || within(a, b) || within(b, a)
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
