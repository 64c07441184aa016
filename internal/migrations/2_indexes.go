package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	// Migration 2: indexes. The unique archive index is what makes
	// re-archiving a superseded version a no-op.
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_panels_rcode ON panels(rcode)",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_archive_triple ON panel_genes_archive(panel_id, hgnc_id, version)",
			"CREATE INDEX IF NOT EXISTS idx_panel_genes_hgnc ON panel_genes(hgnc_id)",
			"CREATE INDEX IF NOT EXISTS idx_patient_records_patient ON patient_records(patient_id)",
			"CREATE INDEX IF NOT EXISTS idx_patient_records_rcode ON patient_records(rcode)",
			"CREATE INDEX IF NOT EXISTS idx_bed_regions_gene ON bed_regions(genome_build, hgnc_id)",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"DROP INDEX IF EXISTS idx_panels_rcode",
			"DROP INDEX IF EXISTS idx_archive_triple",
			"DROP INDEX IF EXISTS idx_panel_genes_hgnc",
			"DROP INDEX IF EXISTS idx_patient_records_patient",
			"DROP INDEX IF EXISTS idx_patient_records_rcode",
			"DROP INDEX IF EXISTS idx_bed_regions_gene",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	})
}
