package cmd

import (
	"context"

	"api-testgen/internal/parser"
	"api-testgen/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow over a JSON HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		controller, err := a.newController()
		if err != nil {
			return err
		}

		snapshots, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer snapshots.Close()

		opts := server.Options{
			Controller:  controller,
			Coordinator: a.newCoordinator(controller),
			Fetcher:     parser.NewFetcher(a.timeout(), a.logger),
			Store:       snapshots,
			SnapshotKey: a.config.Server.SnapshotKey,
			Logger:      a.logger,
		}
		if suggester, err := a.newSuggester(); err != nil {
			a.logger.Warn("relation suggestions disabled", zap.Error(err))
		} else {
			opts.Suggester = suggester
		}

		srv := server.New(opts)
		if err := srv.Restore(ctx); err != nil {
			a.logger.Warn("ignoring unreadable workflow snapshot", zap.Error(err))
		}

		addr := a.config.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		a.logger.Info("starting server", zap.String("addr", addr))
		return srv.Router().Run(addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default is server.addr from the config)")
}
