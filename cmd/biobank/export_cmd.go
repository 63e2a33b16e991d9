package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/arcadia-bio/biocore/internal/blob"
	"github.com/arcadia-bio/biocore/modules/biobank/infrastructure/persistence"
	"github.com/arcadia-bio/biocore/modules/biobank/services"
	"github.com/arcadia-bio/biocore/pkg/composables"
	"github.com/arcadia-bio/biocore/pkg/configuration"
)

type runOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Entries    int    `json:"entries"`
	Artifacts  []any  `json:"artifacts"`
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export every ledger entry with no export reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			logger := conf.Logger()

			pool, err := pgxpool.New(cmd.Context(), conf.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer pool.Close()

			store, err := blob.Open(cmd.Context(), conf.Blob)
			if err != nil {
				return err
			}

			exporter := services.NewExportService(
				persistence.NewLedgerRepository(),
				persistence.NewOrderRepository(),
				persistence.NewCategoryRepository(),
				store,
				logger,
				conf.Biobank.ExportDestination,
			)

			ctx := composables.WithPool(cmd.Context(), pool)
			start := time.Now()
			report, err := exporter.Run(ctx)
			if err != nil {
				return err
			}

			out := runOutput{
				Command:    "export",
				DurationMS: time.Since(start).Milliseconds(),
				Entries:    report.Entries,
			}
			for _, a := range report.Artifacts {
				out.Artifacts = append(out.Artifacts, map[string]any{
					"id":          a.ID,
					"blob_key":    a.BlobKey,
					"sha256":      a.SHA256,
					"entry_count": a.EntryCount,
				})
			}
			return writeJSON(out)
		},
	}
}
