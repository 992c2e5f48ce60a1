package cmd

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/auth"
	"github.com/humanmadecert/hmcert/captcha"
	"github.com/humanmadecert/hmcert/metrics"
	"github.com/humanmadecert/hmcert/server"
	"github.com/humanmadecert/hmcert/version"
)

// NewServeCmd creates and returns the serve subcommand.
// It runs the HTTP API until interrupted.
func NewServeCmd(flags *globalFlags) *cobra.Command {
	var (
		bind         string
		presignRate  float64
		presignBurst int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API used by the web front end.

The API issues presigned upload URLs, records completed uploads, searches the
catalogue and lists an artist's tracks. Prometheus metrics are served at
/metrics. The server shuts down gracefully on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			store, _, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			cat, err := a.openCatalogue(ctx)
			if err != nil {
				return err
			}
			defer cat.Close()

			verifier, err := auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer)
			if errors.Is(err, auth.ErrNoSecret) {
				a.log.Warn("no JWT secret configured, authenticated routes are disabled")
			} else if err != nil {
				return err
			}

			checker := captcha.NewVerifier(a.cfg.Captcha.SecretKey,
				captcha.WithURL(a.cfg.Captcha.VerifyURL),
				captcha.WithMinScore(a.cfg.Captcha.MinScore),
				captcha.WithLogger(a.log.Named("captcha")),
			)
			if !checker.Enabled() {
				a.log.Warn("no reCAPTCHA secret configured, presign requests are not verified")
			}

			if bind == "" {
				bind = a.cfg.Server.Bind
			}
			srv := server.New(server.Options{
				Store:        store,
				Catalogue:    cat,
				Captcha:      checker,
				Auth:         verifier,
				Metrics:      metrics.New(prometheus.DefaultRegisterer),
				Gatherer:     prometheus.DefaultGatherer,
				Logger:       a.log.Named("http"),
				MaxFileSize:  a.cfg.Storage.MaxFileSize,
				PresignRate:  presignRate,
				PresignBurst: presignBurst,
			})

			a.log.Info("starting",
				zap.String("version", version.GetFullVersion()),
				zap.String("bind", bind),
				zap.String("backend", a.cfg.Storage.Backend),
				zap.String("catalogue", cat.Path()),
			)
			return srv.ListenAndServe(ctx, bind, a.cfg.ShutdownTimeout())
		},
	}

	cmd.Flags().StringVarP(&bind, "bind", "b", "", "Address to listen on (default from config)")
	cmd.Flags().Float64Var(&presignRate, "presign-rate", 1, "Presign requests per second allowed per client (0 disables)")
	cmd.Flags().IntVar(&presignBurst, "presign-burst", 10, "Presign request burst per client")

	return cmd
}
