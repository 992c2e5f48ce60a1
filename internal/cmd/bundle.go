package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/humanmadecert/hmcert/bundle"
	"github.com/humanmadecert/hmcert/fingerprint"
	"github.com/humanmadecert/hmcert/upload"
)

// NewBundleCmd creates and returns the bundle subcommand.
// It packs a submission into a review bundle carrying its manifest.
func NewBundleCmd(flags *globalFlags) *cobra.Command {
	var (
		master  string
		project string
		output  string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Pack a master and project folder into a review bundle",
		Long: `Pack a master recording and its project folder into a review bundle.

The bundle is a zip archive (.hmcz) holding every file in fingerprint order
plus a manifest with the folder fingerprint and a digest per file, so that a
reviewer can check it offline with "hmcert verify --bundle".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := bundle.CheckExtension(output); err != nil {
				return err
			}
			files, err := fingerprint.FromProject(master, project)
			if err != nil {
				return err
			}
			order, err := a.order()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				m, err := fingerprint.BuildManifest(cmd.Context(), fingerprint.AsFiles(files), fingerprint.WithOrder(order))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Would write %d files (%s) to %s\n", m.Len(), upload.FormatBytes(m.TotalSize()), output)
				fmt.Fprintln(out, m.Fingerprint())
				return nil
			}

			m, err := bundle.Create(cmd.Context(), output, fingerprint.AsFiles(files), fingerprint.WithOrder(order))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %d files (%s) to %s\n", m.Len(), upload.FormatBytes(m.TotalSize()), output)
			fmt.Fprintln(out, m.Fingerprint())
			return nil
		},
	}

	cmd.Flags().StringVarP(&master, "master", "m", "", "Master recording (required)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project folder (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Bundle file to write, ending in .hmcz (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without writing the bundle")

	cmd.MarkFlagRequired("master")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("output")

	return cmd
}
