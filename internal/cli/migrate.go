package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/infrastructure/storage"
)

// NewMigrateCommand prepares the configured store: SQLite schema migrations or Mongo unique indexes.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the storage schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch cfg.Storage.Driver {
			case config.DriverSQLite:
				store, err := storage.OpenSQLite(ctx, cfg.Storage.SQLite.Path)
				if err != nil {
					return err
				}
				defer store.Close(ctx)

				version, dirty, err := store.SchemaVersion()
				if err != nil {
					return err
				}
				logger.Info("sqlite schema ready", "path", cfg.Storage.SQLite.Path, "version", version, "dirty", dirty)
				fmt.Fprintf(out, "sqlite schema at version %d\n", version)
			case config.DriverMongo:
				store, err := storage.OpenMongo(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database)
				if err != nil {
					return err
				}
				defer store.Close(ctx)

				logger.Info("mongo indexes ready", "database", cfg.Storage.Mongo.Database)
				fmt.Fprintln(out, "mongo unique indexes ensured")
			default:
				fmt.Fprintf(out, "storage driver %s has no schema to migrate\n", cfg.Storage.Driver)
			}
			return nil
		},
	}
}
