package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/panelhub/paneltrack/internal/bed"
	"github.com/panelhub/paneltrack/internal/database"
	"github.com/panelhub/paneltrack/internal/migrations"
	"github.com/panelhub/paneltrack/internal/models"
	"github.com/panelhub/paneltrack/internal/sources/panelapp"
)

type fakeRegistry struct {
	version    float64
	versionErr error
	genes      models.GeneSet
	genesErr   error
	payload    *panelapp.PanelPayload
	payloadErr error
}

func (f *fakeRegistry) LatestSignedOffVersion(ctx context.Context, panelID int) (float64, error) {
	return f.version, f.versionErr
}

func (f *fakeRegistry) GenesForRcode(ctx context.Context, rcode string) (models.GeneSet, error) {
	return f.genes, f.genesErr
}

func (f *fakeRegistry) PanelVersion(ctx context.Context, panelID int, version float64) (*panelapp.PanelPayload, error) {
	return f.payload, f.payloadErr
}

type fakeCoords struct {
	rows []bed.Row
	err  error
}

func (f *fakeCoords) GeneRegions(ctx context.Context, geneQuery string, build models.GenomeBuild, transcriptSet, limitTranscripts string) ([]bed.Row, error) {
	return f.rows, f.err
}

func newTestServer(t *testing.T, registry *fakeRegistry, coords *fakeCoords) (*Server, *bun.DB) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name)
	db, err := database.NewDB(dsn, false)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	if registry == nil {
		registry = &fakeRegistry{}
	}
	if coords == nil {
		coords = &fakeCoords{}
	}
	return NewServer(db, registry, coords, nil, zerolog.Nop()), db
}

func seedTestPanel(t *testing.T, db *bun.DB) {
	t.Helper()
	ctx := context.Background()

	panel := &models.Panel{PanelID: 100001, Rcode: "R208", Version: 2.5}
	if _, err := db.NewInsert().Model(panel).Exec(ctx); err != nil {
		t.Fatalf("seed panel: %v", err)
	}

	genes := []models.GeneInfo{
		{HGNCID: "HGNC:1100", GeneSymbol: "BRCA1", HGNCSymbol: "BRCA1",
			GRCh37Chr: "chr17", GRCh37Start: 41196312, GRCh37Stop: 41277500,
			GRCh38Chr: "chr17", GRCh38Start: 43044295, GRCh38Stop: 43125364},
		{HGNCID: "HGNC:1101", GeneSymbol: "BRCA2", HGNCSymbol: "BRCA2",
			GRCh37Chr: "chr13", GRCh37Start: 32889611, GRCh37Stop: 32973805,
			GRCh38Chr: "chr13", GRCh38Start: 32315474, GRCh38Stop: 32400266},
	}
	if _, err := db.NewInsert().Model(&genes).Exec(ctx); err != nil {
		t.Fatalf("seed gene info: %v", err)
	}

	panelGenes := []models.PanelGene{
		{PanelID: 100001, HGNCID: "HGNC:1100", Confidence: models.ConfidenceGreen},
		{PanelID: 100001, HGNCID: "HGNC:1101", Confidence: models.ConfidenceAmber},
	}
	if _, err := db.NewInsert().Model(&panelGenes).Exec(ctx); err != nil {
		t.Fatalf("seed panel genes: %v", err)
	}
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestSearchPanelsByID(t *testing.T) {
	s, db := newTestServer(t, nil, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodGet, "/panels?ID=100001")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		PanelID int `json:"panel_id"`
		Records []struct {
			HGNCID string `json:"hgnc_id"`
		} `json:"records"`
	}
	decodeJSON(t, rec, &resp)
	if resp.PanelID != 100001 || len(resp.Records) != 2 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestSearchPanelsByRcode(t *testing.T) {
	s, db := newTestServer(t, nil, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodGet, "/panels?ID=R208")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSearchPanelsNotFound(t *testing.T) {
	s, db := newTestServer(t, nil, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodGet, "/panels?ID=999999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["Key"] != "999999" || resp["Message"] != "No matches found." {
		t.Fatalf("unexpected not-found payload: %v", resp)
	}
}

func TestSearchPanelsValidation(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	for _, target := range []string{
		"/panels",
		"/panels?ID=100001&HGNC_ID=HGNC:1100",
		"/panels?ID=not-an-id",
		"/panels?HGNC_ID=BRCA1",
	} {
		rec := doRequest(t, s, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestSearchPanelsByGeneList(t *testing.T) {
	s, db := newTestServer(t, nil, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodGet, "/panels?HGNC_ID=HGNC:1100,HGNC:1101")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var hits []struct {
		PanelID int    `json:"panel_id"`
		HGNCID  string `json:"hgnc_id"`
	}
	decodeJSON(t, rec, &hits)
	if len(hits) != 2 || hits[0].PanelID != 100001 {
		t.Fatalf("unexpected hits: %v", hits)
	}
}

func TestPanelGenes(t *testing.T) {
	s, db := newTestServer(t, nil, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodGet, "/panels/genes?ID=R208")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID    string   `json:"ID"`
		Genes []string `json:"Genes"`
	}
	decodeJSON(t, rec, &resp)
	if len(resp.Genes) != 2 || resp.Genes[0] != "HGNC:1100" {
		t.Fatalf("unexpected genes: %v", resp.Genes)
	}
}

func TestDownloadBedLocal(t *testing.T) {
	s, db := newTestServer(t, nil, nil)
	seedTestPanel(t, db)

	regions := []models.BedRegion{
		{Build: models.BuildGRCh38, Chromosome: "chr17", Start: 43044295, End: 43125364,
			Name: "BRCA1", HGNCID: "HGNC:1100", Transcript: "NM_007294.4", Strand: "-", Type: "gene"},
		{Build: models.BuildGRCh38, Chromosome: "chr13", Start: 32315474, End: 32400266,
			Name: "BRCA2", HGNCID: "HGNC:1101", Transcript: "NM_000059.4", Strand: "+", Type: "gene"},
	}
	if _, err := db.NewInsert().Model(&regions).Exec(context.Background()); err != nil {
		t.Fatalf("seed bed regions: %v", err)
	}

	rec := doRequest(t, s, http.MethodGet, "/panels/download?ID=100001&source=local")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "panel_100001_GRCh38.bed") {
		t.Fatalf("unexpected content disposition: %s", cd)
	}

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 bed lines, got %d: %q", len(lines), rec.Body.String())
	}
	// chr13 sorts before chr17.
	if !strings.HasPrefix(lines[0], "chr13\t") || !strings.HasPrefix(lines[1], "chr17\t") {
		t.Fatalf("bed lines not in genomic order: %v", lines)
	}
}

func TestDownloadBedRemote(t *testing.T) {
	coords := &fakeCoords{rows: []bed.Row{
		{Chrom: "chr17", Start: "43044295", End: "43045802", Name: "BRCA1_exon1_NM_007294.4", Strand: "-"},
	}}
	s, db := newTestServer(t, nil, coords)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodGet, "/panels/download?ID=100001")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Body.String(), "chr17\t43044295\t43045802\t") {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestDownloadBedRemoteUnavailable(t *testing.T) {
	coords := &fakeCoords{err: errors.New("connection refused")}
	s, db := newTestServer(t, nil, coords)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodGet, "/panels/download?ID=100001")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecordPatientTest(t *testing.T) {
	registry := &fakeRegistry{
		version: 3.0,
		genes:   models.GeneSet{"HGNC:1100": 3},
	}
	s, db := newTestServer(t, registry, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodPost, "/patient?Patient_ID=PT-1&R_code=R208")
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	decodeJSON(t, rec, &resp)
	if resp["Version"] != 3.0 {
		t.Fatalf("record not at reconciled version: %v", resp)
	}

	// Posting again for the same version is reported, not duplicated.
	rec = doRequest(t, s, http.MethodPost, "/patient?Patient_ID=PT-1&R_code=R208")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	decodeJSON(t, rec, &resp)
	if resp["Message"] == nil {
		t.Fatalf("expected already-recorded message: %v", resp)
	}

	count, err := db.NewSelect().Model((*models.PatientRecord)(nil)).Count(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("expected exactly 1 record, got %d (%v)", count, err)
	}
}

func TestRecordPatientTestRegistryDown(t *testing.T) {
	registry := &fakeRegistry{versionErr: errors.New("connection refused")}
	s, db := newTestServer(t, registry, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodPost, "/patient?Patient_ID=PT-1&R_code=R208")
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	decodeJSON(t, rec, &resp)
	if resp["Disclaimer"] == nil {
		t.Fatalf("expected staleness disclaimer: %v", resp)
	}
	if resp["Version"] != 2.5 {
		t.Fatalf("expected stored version 2.5, got %v", resp["Version"])
	}
}

func TestPatientHistory(t *testing.T) {
	registry := &fakeRegistry{version: 2.5}
	s, db := newTestServer(t, registry, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodPost, "/patient?Patient_ID=PT-1&R_code=R208")
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed record: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/patient?Patient_ID=PT-1&R_code=R208")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	decodeJSON(t, rec, &resp)
	if resp["Tested"] != true || resp["Version"] != 2.5 {
		t.Fatalf("unexpected history payload: %v", resp)
	}

	rec = doRequest(t, s, http.MethodGet, "/patient?Patient_ID=PT-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var records []map[string]interface{}
	decodeJSON(t, rec, &records)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %v", records)
	}

	rec = doRequest(t, s, http.MethodGet, "/patient")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without parameters, got %d", rec.Code)
	}
}

func TestDowngradePanel(t *testing.T) {
	registry := &fakeRegistry{
		payload: &panelapp.PanelPayload{
			ID:      100001,
			Version: "2.0",
			Genes: []panelapp.GeneEntry{
				{GeneData: panelapp.GeneData{HGNCID: "HGNC:1100"}, ConfidenceLevel: "3"},
			},
		},
	}
	s, db := newTestServer(t, registry, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodPost, "/panels/downgrade?R_code=R208&version=2.0")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		PreviousVersion float64 `json:"previous_version"`
		NewVersion      float64 `json:"new_version"`
	}
	decodeJSON(t, rec, &resp)
	if resp.PreviousVersion != 2.5 || resp.NewVersion != 2.0 {
		t.Fatalf("unexpected result: %+v", resp)
	}
}

func TestDowngradePanelRegistryDown(t *testing.T) {
	registry := &fakeRegistry{payloadErr: errors.New("connection refused")}
	s, db := newTestServer(t, registry, nil)
	seedTestPanel(t, db)

	rec := doRequest(t, s, http.MethodPost, "/panels/downgrade?R_code=R208&version=2.0")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := doRequest(t, s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
