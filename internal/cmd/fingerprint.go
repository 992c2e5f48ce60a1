package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/fingerprint"
	"github.com/humanmadecert/hmcert/upload"
)

// NewFingerprintCmd creates and returns the fingerprint subcommand.
// It computes the folder fingerprint of files and directories on disk.
func NewFingerprintCmd(flags *globalFlags) *cobra.Command {
	var (
		master   string
		order    string
		manifest string
		workers  int
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "fingerprint PATH...",
		Short: "Compute the folder fingerprint of files and directories",
		Long: `Compute the folder fingerprint of files and directories.

Directories contribute every regular file below them, named relative to the
directory's parent ("project/drums/kick.wav"). Plain files contribute their
base name. Files are hashed as one stream in path order, so the result is
independent of argument order.

With --master, exactly one PATH is expected: the project folder that goes with
the master recording. This is the same fingerprint the upload command uses.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := collectFiles(master, args)
			if err != nil {
				return err
			}

			o, err := a.order()
			if err != nil {
				return err
			}
			if order != "" {
				if o, err = fingerprint.ParseOrder(order); err != nil {
					return err
				}
			}
			if workers == 0 {
				workers = a.cfg.Fingerprint.Workers
			}
			opts := []fingerprint.Option{fingerprint.WithOrder(o), fingerprint.WithWorkers(workers)}

			start := time.Now()
			out := cmd.OutOrStdout()
			if manifest == "" {
				sum, err := fingerprint.Compute(cmd.Context(), fingerprint.AsFiles(files), opts...)
				if err != nil {
					return err
				}
				a.log.Debug("fingerprint computed",
					zap.Int("files", len(files)),
					zap.Duration("elapsed", time.Since(start)),
				)
				fmt.Fprintln(out, sum)
				return nil
			}

			m, err := fingerprint.BuildManifest(cmd.Context(), fingerprint.AsFiles(files), opts...)
			if err != nil {
				return err
			}
			if err := m.Save(manifest); err != nil {
				return err
			}
			if verbose {
				for entry := range m.Iterate {
					fmt.Fprintf(out, "%s  %s\n", entry.SHA256, entry.Path)
				}
				fmt.Fprintf(out, "%d files, %s, order %s\n", m.Len(), upload.FormatBytes(m.TotalSize()), o)
			}
			fmt.Fprintln(out, m.Fingerprint())
			return nil
		},
	}

	cmd.Flags().StringVarP(&master, "master", "m", "", "Master recording that goes with the project folder")
	cmd.Flags().StringVar(&order, "order", "", `Path order: "bytewise" or a BCP 47 collation tag such as "en" (default from config)`)
	cmd.Flags().StringVarP(&manifest, "manifest", "o", "", "Write a per-file manifest to this path")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Files opened ahead of the hasher (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every file when writing a manifest")

	return cmd
}

var errMasterNeedsOneDir = errors.New("--master expects exactly one project folder")

// collectFiles turns command-line paths into fingerprint inputs.
func collectFiles(master string, paths []string) ([]fingerprint.DiskFile, error) {
	if master != "" {
		if len(paths) != 1 {
			return nil, errMasterNeedsOneDir
		}
		return fingerprint.FromProject(master, paths[0])
	}

	var files []fingerprint.DiskFile
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			f, err := fingerprint.NewDiskFile(p)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}
		dir, err := fingerprint.FromDir(p)
		if err != nil {
			return nil, err
		}
		files = append(files, dir...)
	}
	return files, nil
}
