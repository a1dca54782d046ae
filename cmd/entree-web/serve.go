package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entreepos/entree-web/internal/messenger"
	"github.com/entreepos/entree-web/internal/router"
	"github.com/entreepos/entree-web/internal/server"
	"github.com/entreepos/entree-web/internal/views"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.HTTPAddr = serveAddr
		}
		if err := cfg.Client.Validate(); err != nil {
			logger.Warn("Messenger button will be inert", zap.Error(err))
		}
		if cfg.AuthBackendURL == "" {
			logger.Warn("No auth backend configured; login and register forms will answer 503")
		}

		bootstrap := messenger.NewBootstrap(cfg.Client, logger.Named("messenger"))
		renderer, err := views.NewRenderer(bootstrap, logger.Named("views"))
		if err != nil {
			return err
		}

		srv, err := server.NewServer(server.Options{
			Address:        cfg.HTTPAddr,
			Renderer:       renderer,
			Routes:         router.DefaultTable(),
			PublicDir:      cfg.PublicDir,
			AuthBackendURL: cfg.AuthBackendURL,
			Logger:         logger.Named("http"),
		})
		if err != nil {
			return err
		}
		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides ENTREE_HTTP_ADDR)")
}
