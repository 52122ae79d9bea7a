package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"excalidash/handlers/auth"
	"excalidash/server"
	"excalidash/stores"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var listen string
	storage := app.cfg.Storage

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			store, err := stores.GetStore(ctx, storage)
			if err != nil {
				return err
			}
			provider := auth.NewProvider(ctx, app.cfg.Auth)
			return server.ListenAndServe(ctx, listen, server.NewRouter(store, provider))
		},
	}

	cmd.Flags().StringVar(&listen, "listen", app.cfg.ListenAddr, "The address to listen on")
	cmd.Flags().StringVar(&storage.Type, "storage", storage.Type, "Storage backend (memory|filesystem|sqlite|s3)")
	cmd.Flags().StringVar(&storage.LocalPath, "data-dir", storage.LocalPath, "Directory of the filesystem store")
	cmd.Flags().StringVar(&storage.DataSourceName, "dsn", storage.DataSourceName, "sqlite data source name")
	cmd.Flags().StringVar(&storage.BucketName, "bucket", storage.BucketName, "S3 bucket name")
	return cmd
}
