package catfs

import (
	"context"
	"fmt"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"go.uber.org/zap"
)

// Mount serves filesystem read-only at mountpoint until ctx is cancelled or
// the filesystem is unmounted externally.
func Mount(ctx context.Context, mountpoint string, filesystem *FS) error {
	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("hmcert"),
		fuse.Subtype("catfs"),
		fuse.ReadOnly(),
	)
	if err != nil {
		return fmt.Errorf("mount %s: %w", mountpoint, err)
	}
	defer c.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			filesystem.log.Info("unmounting", zap.String("mountpoint", mountpoint))
			if err := fuse.Unmount(mountpoint); err != nil {
				filesystem.log.Warn("unmount failed", zap.String("mountpoint", mountpoint), zap.Error(err))
			}
		case <-done:
		}
	}()

	filesystem.log.Info("catalogue mounted", zap.String("mountpoint", mountpoint))
	if err := fs.Serve(c, filesystem); err != nil {
		return fmt.Errorf("serve %s: %w", mountpoint, err)
	}
	return nil
}
