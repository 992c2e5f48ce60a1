package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/upload"
)

// NewUploadCmd creates and returns the upload subcommand.
// It runs the full submission workflow against the configured store.
func NewUploadCmd(flags *globalFlags) *cobra.Command {
	var (
		master    string
		project   string
		name      string
		email     string
		trackName string
		authorID  string
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Fingerprint, store and record a submission",
		Long: `Fingerprint, store and record a submission.

The master recording and its project folder are fingerprinted once, every file
is uploaded under a prefix derived from the contact details and the
fingerprint, and the track is recorded in the catalogue with a pending
certification status. Any failure aborts the upload without recording it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			sub, err := upload.NewSubmission(name, email, trackName, master, project)
			if err != nil {
				return err
			}
			sub.AuthorID = authorID

			order, err := a.order()
			if err != nil {
				return err
			}
			store, _, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			cat, err := a.openCatalogue(cmd.Context())
			if err != nil {
				return err
			}
			defer cat.Close()

			out := cmd.OutOrStdout()
			w := &upload.Workflow{
				Store:        store,
				Catalogue:    cat,
				Order:        order,
				Workers:      a.cfg.Fingerprint.Workers,
				MaxTotalSize: a.cfg.Storage.MaxTotalSize,
				Log:          a.log.Named("upload"),
			}
			if !quiet {
				fmt.Fprintf(out, "Uploading %d files (%s)\n", len(sub.Files()), upload.FormatBytes(sub.TotalSize()))
				w.Progress = func(e upload.Event) {
					fmt.Fprintf(out, "[%3d%%] %d/%d %s\n", e.Percent, e.Uploaded, e.Total, e.Key)
				}
			}

			res, err := w.Run(cmd.Context(), sub)
			if err != nil {
				a.log.Error("upload failed", zap.Error(err))
				return err
			}
			fmt.Fprintf(out, "Recorded %q by %s\n", res.Track.Title, res.Track.ArtistName)
			fmt.Fprintf(out, "  id:     %s\n", res.Track.ID)
			fmt.Fprintf(out, "  hash:   %s\n", res.Track.FolderHash)
			fmt.Fprintf(out, "  prefix: %s\n", res.Prefix)
			return nil
		},
	}

	cmd.Flags().StringVarP(&master, "master", "m", "", "Master recording (required)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project folder (required)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Artist name (required)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Contact email (required)")
	cmd.Flags().StringVarP(&trackName, "track", "t", "", "Track name (required)")
	cmd.Flags().StringVar(&authorID, "author", "", "Account ID to record the track under")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	for _, f := range []string{"master", "project", "name", "email", "track"} {
		cmd.MarkFlagRequired(f)
	}

	return cmd
}
