package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/bundle"
	"github.com/humanmadecert/hmcert/fingerprint"
)

var (
	errVerifyFailed = errors.New("verification failed")
	errVerifyMode   = errors.New("use either --bundle or --dir with --hash")
	errInvalidHash  = errors.New("not a folder fingerprint")
)

// NewVerifyCmd creates and returns the verify subcommand.
// It checks review bundles against their manifests, or a folder on disk
// against an expected fingerprint.
func NewVerifyCmd(flags *globalFlags) *cobra.Command {
	var (
		bundlePath string
		dir        string
		master     string
		hash       string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify review bundles or folders against a fingerprint",
		Long: `Verify review bundles or folders against a fingerprint.

With --bundle, every .hmcz file at the path (a single bundle or a directory
searched recursively) is re-fingerprinted with the ordering recorded in its
manifest, and each missing, extra or altered file is reported.

With --dir and --hash, the folder (plus --master when given) is fingerprinted
and compared with the expected value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			switch {
			case bundlePath != "" && dir == "" && hash == "":
				return runVerifyBundles(cmd, out, a.log, bundlePath, verbose)
			case bundlePath == "" && dir != "" && hash != "":
				return runVerifyDir(cmd, out, a, dir, master, hash)
			default:
				return errVerifyMode
			}
		},
	}

	cmd.Flags().StringVarP(&bundlePath, "bundle", "b", "", "Bundle file or directory of bundles to verify")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Project folder to fingerprint")
	cmd.Flags().StringVarP(&master, "master", "m", "", "Master recording that goes with --dir")
	cmd.Flags().StringVar(&hash, "hash", "", "Expected folder fingerprint for --dir")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

func runVerifyBundles(cmd *cobra.Command, out io.Writer, log *zap.Logger, root string, verbose bool) error {
	var totalProblems, totalBundles int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, bundle.Extension) {
			return nil
		}

		totalBundles++
		if verbose {
			fmt.Fprintf(out, "Verifying bundle: %s\n", path)
		}

		report, err := bundle.Verify(cmd.Context(), path)
		if err != nil {
			log.Warn("bundle unreadable", zap.String("path", path), zap.Error(err))
			fmt.Fprintf(out, "Bundle %s is unreadable: %v\n", path, err)
			totalProblems++
			return nil
		}
		if !report.OK() {
			fmt.Fprintf(out, "Bundle %s has %d problems:\n", path, len(report.Problems))
			for _, p := range report.Problems {
				fmt.Fprintf(out, "  - %s\n", p)
			}
			totalProblems += len(report.Problems)
		} else if verbose {
			fmt.Fprintf(out, "Bundle %s is valid (%s)\n", path, report.Actual.Fingerprint())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}

	fmt.Fprintf(out, "\nVerification complete:\n")
	fmt.Fprintf(out, "  Bundles checked: %d\n", totalBundles)
	fmt.Fprintf(out, "  Total problems: %d\n", totalProblems)

	if totalProblems > 0 {
		return errVerifyFailed
	}
	return nil
}

func runVerifyDir(cmd *cobra.Command, out io.Writer, a *app, dir, master, hash string) error {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !fingerprint.IsValid(hash) {
		return fmt.Errorf("%w: %q", errInvalidHash, hash)
	}
	if _, err := os.Stat(dir); err != nil {
		return err
	}

	files, err := collectFiles(master, []string{dir})
	if err != nil {
		return err
	}
	order, err := a.order()
	if err != nil {
		return err
	}
	sum, err := fingerprint.Compute(cmd.Context(), fingerprint.AsFiles(files), fingerprint.WithOrder(order))
	if err != nil {
		return err
	}
	if sum != hash {
		fmt.Fprintf(out, "MISMATCH\n  expected %s\n  actual   %s\n", hash, sum)
		return errVerifyFailed
	}
	fmt.Fprintf(out, "OK %s\n", sum)
	return nil
}
