package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/arcadia-bio/biocore/pkg/commands"
	"github.com/arcadia-bio/biocore/pkg/configuration"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the built-in collection sites and order categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()

			pool, err := pgxpool.New(cmd.Context(), conf.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer pool.Close()

			return commands.SeedReferenceData(cmd.Context(), pool, conf.Logger())
		},
	}
}
