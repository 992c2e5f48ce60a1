package cmd

import (
	"github.com/humanmadecert/hmcert/version"
	"github.com/spf13/cobra"
)

const (
	groupCertification = "certification"
	groupService       = "service"
	groupUtilities     = "utilities"
)

// NewRootCmd creates and returns the root cobra command for the hmcert CLI.
// It sets up all subcommands, command groups, and the persistent flags shared
// by every subcommand.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "hmcert",
		Short: "hmcert - fingerprint, upload and certify human-made music projects",
		Long: `hmcert fingerprints a music project (a master recording plus its project
folder), uploads it to object storage under the fingerprint and records it in a
catalogue that reviewers and listeners can search.

Use subcommands to perform different operations:
  - fingerprint: Compute the folder fingerprint of files and directories
  - upload: Fingerprint, store and record a submission
  - serve: Run the HTTP API used by the web front end
  - mount: Browse the catalogue as a read-only filesystem`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file (default ~/.config/hmcert/config.toml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")
	pf.StringVar(&flags.logFormat, "log-format", "", "Override the configured log format (json or console)")

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupCertification,
		Title: "Certification Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupService,
		Title: "Service Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	certification := []*cobra.Command{
		NewFingerprintCmd(&flags),
		NewVerifyCmd(&flags),
		NewBundleCmd(&flags),
		NewUploadCmd(&flags),
		NewCertifyCmd(&flags),
	}
	service := []*cobra.Command{
		NewServeCmd(&flags),
		NewMountCmd(&flags),
		NewSearchCmd(&flags),
		NewTracksCmd(&flags),
		NewTokenCmd(&flags),
	}
	utilities := []*cobra.Command{
		NewCountCmd(),
		NewSeedCmd(),
		NewConfigCmd(&flags),
		NewVersionCmd(),
	}

	for _, c := range certification {
		c.GroupID = groupCertification
		rootCmd.AddCommand(c)
	}
	for _, c := range service {
		c.GroupID = groupService
		rootCmd.AddCommand(c)
	}
	for _, c := range utilities {
		c.GroupID = groupUtilities
		rootCmd.AddCommand(c)
	}

	return rootCmd
}
