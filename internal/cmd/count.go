package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewCountCmd creates and returns the count subcommand.
// It reports how many files and bytes a folder would contribute to a
// fingerprint.
func NewCountCmd() *cobra.Command {
	var (
		path         string
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "count [PATH]",
		Short: "Count files and bytes in a directory tree",
		Long: `Count the regular files and total bytes in a directory tree.

Only regular files are counted, the same set the fingerprint and upload
commands read. Useful for checking a project folder against the upload size
limit before starting a transfer.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				path = args[0]
			}
			out := cmd.OutOrStdout()
			progress := func(n int) {
				if showProgress {
					fmt.Fprintf(out, "Progress: %s files counted\n", humanize.Comma(int64(n)))
				}
			}
			count, size, err := countFiles(path, progress)
			if err != nil {
				return fmt.Errorf("count files: %w", err)
			}
			fmt.Fprintf(out, "Total files: %s\n", humanize.Comma(int64(count)))
			fmt.Fprintf(out, "Total size: %s\n", humanize.IBytes(uint64(size)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "./", "Path to count files in")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show progress every 10,000 files")

	return cmd
}

func countFiles(root string, progress func(int)) (int, int64, error) {
	var (
		count int
		size  int64
	)
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		count++
		size += info.Size()
		if progress != nil && count%10000 == 0 {
			progress(count)
		}
		return nil
	})
	return count, size, err
}
