package cmd

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/humanmadecert/hmcert/upload"
)

// Directories and extensions of a generated project folder.
var (
	seedDirs = []string{"stems", "stems/drums", "midi", "bounces", "samples"}
	seedExts = []string{".wav", ".aif", ".mid", ".flac"}
)

// NewSeedCmd creates and returns the seed subcommand.
// It generates a fake submission (a master plus a project folder) for
// exercising the fingerprint, bundle and upload commands.
func NewSeedCmd() *cobra.Command {
	var (
		outputPath string
		fileCount  int
		lines      int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a fake submission for testing",
		Long: `Generate a fake submission for testing hmcert.

Creates master.wav and a project/ folder in the output directory. The project
holds a session file and randomly named files spread over stems, midi, bounces
and samples subfolders. Every file contains a random number of UUID lines, so
two runs never produce the same fingerprint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if verbose {
				fmt.Fprintf(out, "Generating a project with %d files in %s\n", fileCount, outputPath)
			}
			master, project, total, err := seedProject(outputPath, fileCount, lines)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "master:  %s\n", master)
			fmt.Fprintf(out, "project: %s\n", project)
			if verbose {
				fmt.Fprintf(out, "Wrote %d files, %s\n", fileCount+2, upload.FormatBytes(total))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path to output directory (required)")
	cmd.Flags().IntVarP(&fileCount, "count", "c", 20, "Number of project files to generate besides the session file")
	cmd.Flags().IntVarP(&lines, "lines", "l", 1000, "Maximum number of UUID lines per file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	cmd.MarkFlagRequired("output")

	return cmd
}

// seedProject writes a master and a project folder below outputPath and
// returns their paths and the number of bytes written.
func seedProject(outputPath string, fileCount, maxLines int) (string, string, int64, error) {
	if maxLines < 1 {
		maxLines = 1
	}
	project := filepath.Join(outputPath, "project")
	if err := os.MkdirAll(project, 0o755); err != nil {
		return "", "", 0, fmt.Errorf("create output directory: %w", err)
	}

	var total int64
	write := func(path string) error {
		n, err := randomInt(maxLines)
		if err != nil {
			return err
		}
		var b strings.Builder
		for range n + 1 {
			b.WriteString(uuid.New().String())
			b.WriteByte('\n')
		}
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		total += int64(b.Len())
		return nil
	}

	master := filepath.Join(outputPath, "master.wav")
	if err := write(master); err != nil {
		return "", "", 0, err
	}
	if err := write(filepath.Join(project, "session.als")); err != nil {
		return "", "", 0, err
	}

	for created := 0; created < fileCount; {
		d, err := randomInt(len(seedDirs))
		if err != nil {
			return "", "", 0, err
		}
		e, err := randomInt(len(seedExts))
		if err != nil {
			return "", "", 0, err
		}
		dir := filepath.Join(project, filepath.FromSlash(seedDirs[d]))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", 0, fmt.Errorf("create directory %s: %w", dir, err)
		}
		path := filepath.Join(dir, uuid.New().String()[:8]+seedExts[e])
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := write(path); err != nil {
			return "", "", 0, err
		}
		created++
	}
	return master, project, total, nil
}

// randomInt returns a uniform value in [0, n).
func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
