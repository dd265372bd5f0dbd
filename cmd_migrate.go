package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"realestate-ingest/storage"
)

func (a *app) migrateCommand() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the PostgreSQL schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			if a.cfg.StoreBackend == "mongo" {
				return fmt.Errorf("migrate: the mongo backend has no schema, indexes are created on connect")
			}

			store, err := storage.NewPostgresStore(cmd.Context(), a.cfg.DSN(), a.retryConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			if direction == "down" {
				return storage.MigrateDown(store.DB(), steps, a.logger)
			}
			return storage.MigrateUp(store.DB(), a.logger)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back with down")
	return cmd
}
