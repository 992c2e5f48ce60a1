package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/humanmadecert/hmcert/catalogue"
)

// NewSearchCmd creates and returns the search subcommand.
func NewSearchCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search tracks and artists in the catalogue",
		Long: `Search tracks and artists in the catalogue.

Tracks match on title, artist name or folder fingerprint; artists match on
name, username or artist name. Matching is case-insensitive and queries
shorter than two characters return nothing.`,
		Args: cobra.MinimumNArgs(1),
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

			res, err := cat.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			if len(res.Tracks) == 0 && len(res.Users) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			if len(res.Tracks) > 0 {
				rows := make([][]string, 0, len(res.Tracks))
				for _, t := range res.Tracks {
					rows = append(rows, []string{
						t.Title,
						t.ArtistName,
						string(t.VerificationStatus),
						catalogue.Abbreviate(t.FolderHash),
						catalogue.Abbreviate(t.TxHash),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Title", "Artist", "Verified", "Folder", "Tx"}, rows, nil))
			}
			if len(res.Users) > 0 {
				rows := make([][]string, 0, len(res.Users))
				for _, u := range res.Users {
					rows = append(rows, []string{u.ArtistName, u.Name, u.Username})
				}
				fmt.Fprintln(out, renderTable([]string{"Artist", "Name", "Username"}, rows, nil))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}
