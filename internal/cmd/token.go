package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/humanmadecert/hmcert/auth"
)

// NewTokenCmd creates and returns the token subcommand.
// It issues bearer tokens signed with the configured secret, for testing the
// API and for scripted uploads.
func NewTokenCmd(flags *globalFlags) *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token AUTHOR_ID",
		Short: "Issue a bearer token for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := auth.Issue(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer, args[0], name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
