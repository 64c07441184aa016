package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/panelhub/paneltrack/internal/database"
	"github.com/panelhub/paneltrack/internal/migrations"
	"github.com/panelhub/paneltrack/internal/models"
	"github.com/panelhub/paneltrack/internal/sources/panelapp"
)

// newTestDB opens a fresh named in-memory database, migrated. The name
// keeps connections in the pool pointed at the same store while isolating
// tests from each other.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := database.NewDB(dsn, false)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedPanel(t *testing.T, db *bun.DB, panelID int, rcode string, version float64, genes models.GeneSet) {
	t.Helper()
	ctx := context.Background()

	panel := &models.Panel{PanelID: panelID, Rcode: rcode, Version: version}
	if _, err := db.NewInsert().Model(panel).Exec(ctx); err != nil {
		t.Fatalf("seed panel: %v", err)
	}
	for hgnc, conf := range genes {
		row := &models.PanelGene{PanelID: panelID, HGNCID: hgnc, Confidence: conf}
		if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
			t.Fatalf("seed panel gene: %v", err)
		}
	}
}

func seedGeneInfo(t *testing.T, db *bun.DB, genes ...models.GeneInfo) {
	t.Helper()
	for i := range genes {
		if _, err := db.NewInsert().Model(&genes[i]).Exec(context.Background()); err != nil {
			t.Fatalf("seed gene info: %v", err)
		}
	}
}

func seedPatientRecord(t *testing.T, db *bun.DB, patientID string, panelID int, rcode string, version float64, date time.Time) {
	t.Helper()
	rec := &models.PatientRecord{
		PatientID: patientID,
		PanelID:   panelID,
		Rcode:     rcode,
		Version:   version,
		Date:      date,
	}
	if _, err := db.NewInsert().Model(rec).Exec(context.Background()); err != nil {
		t.Fatalf("seed patient record: %v", err)
	}
}

func geneInfoFixture(hgnc, symbol string) models.GeneInfo {
	return models.GeneInfo{
		HGNCID:      hgnc,
		GeneSymbol:  symbol,
		HGNCSymbol:  symbol,
		GRCh37Chr:   "17",
		GRCh37Start: 1000,
		GRCh37Stop:  2000,
		GRCh38Chr:   "17",
		GRCh38Start: 1100,
		GRCh38Stop:  2100,
	}
}

// fakeRegistry substitutes the upstream registry in tests.
type fakeRegistry struct {
	version    float64
	versionErr error
	genes      models.GeneSet
	genesErr   error
	payload    *panelapp.PanelPayload
	payloadErr error
}

func (f *fakeRegistry) LatestSignedOffVersion(_ context.Context, _ int) (float64, error) {
	if f.versionErr != nil {
		return 0, f.versionErr
	}
	return f.version, nil
}

func (f *fakeRegistry) GenesForRcode(_ context.Context, _ string) (models.GeneSet, error) {
	if f.genesErr != nil {
		return nil, f.genesErr
	}
	return f.genes, nil
}

func (f *fakeRegistry) PanelVersion(_ context.Context, _ int, _ float64) (*panelapp.PanelPayload, error) {
	if f.payloadErr != nil {
		return nil, f.payloadErr
	}
	return f.payload, nil
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
