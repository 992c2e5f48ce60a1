package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/humanmadecert/hmcert/catalogue"
)

// NewTracksCmd creates and returns the tracks subcommand.
// It lists recorded tracks, newest first.
func NewTracksCmd(flags *globalFlags) *cobra.Command {
	var (
		authorID string
		full     bool
	)

	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List recorded tracks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.openCatalogue(cmd.Context())
			if err != nil {
				return err
			}
			defer cat.Close()

			var tracks []catalogue.Track
			if authorID != "" {
				tracks, err = cat.TracksByAuthor(cmd.Context(), authorID)
			} else {
				tracks, err = cat.AllTracks(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tracks) == 0 {
				fmt.Fprintln(out, "No tracks recorded.")
				return nil
			}

			short := catalogue.Abbreviate
			if full {
				short = func(s string) string { return s }
			}
			rows := make([][]string, 0, len(tracks))
			for _, t := range tracks {
				rows = append(rows, []string{
					t.Title,
					short(t.ArtistName),
					string(t.Verification),
					short(t.FolderHash),
					short(t.TxHash),
					humanize.Time(t.CreatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Title", "Artist", "Verified", "Folder", "Tx", "Uploaded"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&authorID, "author", "a", "", "Only list tracks recorded under this account ID")
	cmd.Flags().BoolVar(&full, "full", false, "Show full hashes and names")

	return cmd
}
