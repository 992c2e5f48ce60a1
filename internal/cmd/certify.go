package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/humanmadecert/hmcert/catalogue"
	"github.com/humanmadecert/hmcert/fingerprint"
)

var errBadStatus = errors.New(`status must be "yes", "no" or "pending"`)

// NewCertifyCmd creates and returns the certify subcommand.
// It records a review outcome for an uploaded track.
func NewCertifyCmd(flags *globalFlags) *cobra.Command {
	var (
		status string
		txHash string
	)

	cmd := &cobra.Command{
		Use:   "certify HASH",
		Short: "Record the review outcome of a track",
		Long: `Record the review outcome of a track identified by its folder fingerprint.

--status is one of "yes" (human-made), "no" or "pending". --tx records the
transaction hash of the on-chain certificate; an existing transaction hash is
kept when --tx is omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := strings.ToLower(strings.TrimSpace(args[0]))
			if !fingerprint.IsValid(hash) {
				return fmt.Errorf("%w: %q", errInvalidHash, args[0])
			}
			v := catalogue.ParseVerification(status)
			if v == catalogue.VerificationPending && !strings.EqualFold(strings.TrimSpace(status), string(catalogue.VerificationPending)) {
				return errBadStatus
			}

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

			if err := cat.SetVerification(cmd.Context(), hash, v, txHash); err != nil {
				return err
			}
			t, err := cat.TrackByHash(cmd.Context(), hash)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s by %s: %s (tx %s)\n",
				t.Title, t.ArtistName, t.Verification, catalogue.Abbreviate(t.TxHash))
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", `Review outcome: "yes", "no" or "pending" (required)`)
	cmd.Flags().StringVar(&txHash, "tx", "", "Transaction hash of the certificate")

	cmd.MarkFlagRequired("status")

	return cmd
}
