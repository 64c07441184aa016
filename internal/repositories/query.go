package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"

	"github.com/panelhub/paneltrack/internal/models"
)

// Query provides the read-only resolution operations over the panel
// store. It never mutates state.
type Query struct {
	db bun.IDB
}

// NewQuery creates a Query over a database or transaction handle.
func NewQuery(db bun.IDB) *Query {
	return &Query{db: db}
}

// GeneRecord is one gene of a resolved panel, joined with its reference
// coordinates in both genome builds.
type GeneRecord struct {
	PanelID     int               `bun:"panel_id" json:"panel_id"`
	Rcode       string            `bun:"rcode" json:"rcode"`
	Version     float64           `bun:"version" json:"version"`
	Confidence  models.Confidence `bun:"confidence" json:"confidence"`
	HGNCID      string            `bun:"hgnc_id" json:"hgnc_id"`
	GeneSymbol  string            `bun:"gene_symbol" json:"gene_symbol"`
	HGNCSymbol  string            `bun:"hgnc_symbol" json:"hgnc_symbol"`
	GRCh37Chr   string            `bun:"grch37_chr" json:"grch37_chr"`
	GRCh37Start int64             `bun:"grch37_start" json:"grch37_start"`
	GRCh37Stop  int64             `bun:"grch37_stop" json:"grch37_stop"`
	GRCh38Chr   string            `bun:"grch38_chr" json:"grch38_chr"`
	GRCh38Start int64             `bun:"grch38_start" json:"grch38_start"`
	GRCh38Stop  int64             `bun:"grch38_stop" json:"grch38_stop"`
}

// PanelRecords is a resolved panel with its gene membership.
type PanelRecords struct {
	PanelID int          `json:"panel_id,omitempty"`
	Rcode   string       `json:"rcode,omitempty"`
	Records []GeneRecord `json:"records"`
}

func (q *Query) selectGeneRecords(ctx context.Context, where string, args ...interface{}) ([]GeneRecord, error) {
	var records []GeneRecord
	err := q.db.NewSelect().
		ColumnExpr("p.panel_id AS panel_id, p.rcode AS rcode, p.version AS version").
		ColumnExpr("pg.confidence AS confidence").
		ColumnExpr("g.hgnc_id AS hgnc_id, g.gene_symbol AS gene_symbol, g.hgnc_symbol AS hgnc_symbol").
		ColumnExpr("g.grch37_chr, g.grch37_start, g.grch37_stop").
		ColumnExpr("g.grch38_chr, g.grch38_start, g.grch38_stop").
		TableExpr("panels AS p").
		Join("JOIN panel_genes AS pg ON pg.panel_id = p.panel_id").
		Join("JOIN gene_info AS g ON g.hgnc_id = pg.hgnc_id").
		Where(where, args...).
		OrderExpr("g.hgnc_id").
		Scan(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("select gene records: %w", err)
	}
	return records, nil
}

// PanelData resolves a panel's gene membership by panel ID. With similar
// set, the ID is matched as a substring of its decimal form.
func (q *Query) PanelData(ctx context.Context, panelID int, similar bool) (*PanelRecords, error) {
	if panelID <= 0 {
		return nil, ErrPanelIDRequired
	}

	var (
		records []GeneRecord
		err     error
	)
	if similar {
		pattern := "%" + strconv.Itoa(panelID) + "%"
		records, err = q.selectGeneRecords(ctx, "CAST(p.panel_id AS TEXT) LIKE ?", pattern)
	} else {
		records, err = q.selectGeneRecords(ctx, "p.panel_id = ?", panelID)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Key: strconv.Itoa(panelID), Message: "No matches found."}
	}
	return &PanelRecords{PanelID: panelID, Records: records}, nil
}

// PanelsByRcode resolves a panel's gene membership by disease code,
// optionally by substring.
func (q *Query) PanelsByRcode(ctx context.Context, rcode string, similar bool) (*PanelRecords, error) {
	if rcode == "" {
		return nil, ErrRcodeRequired
	}

	var (
		records []GeneRecord
		err     error
	)
	if similar {
		records, err = q.selectGeneRecords(ctx, "p.rcode LIKE ?", "%"+rcode+"%")
	} else {
		records, err = q.selectGeneRecords(ctx, "p.rcode = ?", rcode)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Key: rcode, Message: "No matches found for this rcode."}
	}
	return &PanelRecords{Rcode: rcode, Records: records}, nil
}

// PanelHit is a panel containing at least one of the queried genes.
type PanelHit struct {
	PanelID    int    `bun:"panel_id" json:"panel_id"`
	Rcode      string `bun:"rcode" json:"rcode"`
	HGNCID     string `bun:"hgnc_id" json:"hgnc_id"`
	GeneSymbol string `bun:"gene_symbol" json:"gene_symbol"`
}

// PanelsFromGeneList returns the panels containing any of the supplied
// HGNC IDs. Substring matching across multiple gene IDs is not supported
// and reported as such, never silently degraded.
func (q *Query) PanelsFromGeneList(ctx context.Context, hgncIDs []string, similar bool) ([]PanelHit, error) {
	if len(hgncIDs) == 0 {
		return nil, ErrGeneIDsRequired
	}
	if similar {
		return nil, ErrNotImplemented
	}

	var hits []PanelHit
	err := q.db.NewSelect().
		ColumnExpr("p.panel_id AS panel_id, p.rcode AS rcode").
		ColumnExpr("pg.hgnc_id AS hgnc_id, g.gene_symbol AS gene_symbol").
		TableExpr("panels AS p").
		Join("JOIN panel_genes AS pg ON pg.panel_id = p.panel_id").
		Join("JOIN gene_info AS g ON g.hgnc_id = pg.hgnc_id").
		Where("pg.hgnc_id IN (?)", bun.In(hgncIDs)).
		OrderExpr("p.panel_id, pg.hgnc_id").
		Scan(ctx, &hits)
	if err != nil {
		return nil, fmt.Errorf("select panels by genes: %w", err)
	}
	if len(hits) == 0 {
		return nil, &NotFoundError{
			Key:     fmt.Sprintf("%v", hgncIDs),
			Message: "Could not find any match for the provided HGNC IDs.",
		}
	}
	return hits, nil
}

// GeneList resolves a panel by ID or R code and returns the set of HGNC
// IDs it contains. A no-data result from the underlying lookup is
// propagated untouched so callers can distinguish it structurally.
func (q *Query) GeneList(ctx context.Context, panelID int, rcode string, similar bool) (map[string]struct{}, error) {
	var (
		data *PanelRecords
		err  error
	)
	switch {
	case panelID > 0:
		data, err = q.PanelData(ctx, panelID, similar)
	case rcode != "":
		data, err = q.PanelsByRcode(ctx, rcode, similar)
	default:
		return nil, ErrPanelIDRequired
	}
	if err != nil {
		return nil, err
	}

	genes := make(map[string]struct{}, len(data.Records))
	for _, rec := range data.Records {
		genes[rec.HGNCID] = struct{}{}
	}
	return genes, nil
}

// LatestVersion returns the version currently stored for an R code.
func (q *Query) LatestVersion(ctx context.Context, rcode string) (float64, error) {
	var version float64
	err := q.db.NewSelect().
		ColumnExpr("version").
		TableExpr("panels").
		Where("rcode = ?", rcode).
		Scan(ctx, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &NotFoundError{Key: rcode, Message: "No matches found for this rcode."}
	}
	if err != nil {
		return 0, fmt.Errorf("select stored version: %w", err)
	}
	return version, nil
}

// RcodeToPanelID resolves a disease code to its registry panel ID.
func (q *Query) RcodeToPanelID(ctx context.Context, rcode string) (int, error) {
	var panelID int
	err := q.db.NewSelect().
		ColumnExpr("panel_id").
		TableExpr("panels").
		Where("rcode = ?", rcode).
		Scan(ctx, &panelID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &NotFoundError{Key: rcode, Message: "No matches found for this rcode."}
	}
	if err != nil {
		return 0, fmt.Errorf("select panel id: %w", err)
	}
	return panelID, nil
}

// AllPatientRecords returns a patient's full test history in insertion
// order.
func (q *Query) AllPatientRecords(ctx context.Context, patientID string) ([]models.PatientRecord, error) {
	var records []models.PatientRecord
	err := q.db.NewSelect().
		Model(&records).
		Where("patient_id = ?", patientID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select patient records: %w", err)
	}
	return records, nil
}

// AllPatientsForRcode returns every recorded test against an R code.
func (q *Query) AllPatientsForRcode(ctx context.Context, rcode string) ([]models.PatientRecord, error) {
	var records []models.PatientRecord
	err := q.db.NewSelect().
		Model(&records).
		Where("rcode = ?", rcode).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select rcode records: %w", err)
	}
	return records, nil
}

// PatientLatestVersion returns the panel version of a patient's most
// recent test for an R code. Two tests on the same date are tie-broken
// toward the highest version so the answer is deterministic. The second
// return is false when the patient has no history for the code.
func (q *Query) PatientLatestVersion(ctx context.Context, patientID, rcode string) (float64, bool, error) {
	var version float64
	err := q.db.NewSelect().
		ColumnExpr("version").
		TableExpr("patient_records").
		Where("patient_id = ? AND rcode = ?", patientID, rcode).
		OrderExpr("date DESC, version DESC").
		Limit(1).
		Scan(ctx, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select patient history: %w", err)
	}
	return version, true, nil
}

func (q *Query) scanGeneSet(ctx context.Context, table, where string, args ...interface{}) (models.GeneSet, error) {
	var rows []struct {
		HGNCID     string            `bun:"hgnc_id"`
		Confidence models.Confidence `bun:"confidence"`
	}
	err := q.db.NewSelect().
		ColumnExpr("hgnc_id, confidence").
		TableExpr(table).
		Where(where, args...).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	set := make(models.GeneSet, len(rows))
	for _, row := range rows {
		set[row.HGNCID] = row.Confidence
	}
	return set, nil
}

// CurrentPanelContents snapshots a panel's present gene membership.
func (q *Query) CurrentPanelContents(ctx context.Context, panelID int) (models.GeneSet, error) {
	return q.scanGeneSet(ctx, "panel_genes", "panel_id = ?", panelID)
}

// HistoricPanelContents returns the archived gene membership of an exact
// superseded version. The result is empty when that version was never
// archived.
func (q *Query) HistoricPanelContents(ctx context.Context, panelID int, version float64) (models.GeneSet, error) {
	return q.scanGeneSet(ctx, "panel_genes_archive", "panel_id = ? AND version = ?", panelID, version)
}

// GeneSymbols maps HGNC IDs to their HGNC symbols, for genes the
// coordinate service cannot resolve by ID.
func (q *Query) GeneSymbols(ctx context.Context, hgncIDs []string) (map[string]string, error) {
	if len(hgncIDs) == 0 {
		return map[string]string{}, nil
	}

	var rows []struct {
		HGNCID     string `bun:"hgnc_id"`
		HGNCSymbol string `bun:"hgnc_symbol"`
	}
	err := q.db.NewSelect().
		ColumnExpr("hgnc_id, hgnc_symbol").
		TableExpr("gene_info").
		Where("hgnc_id IN (?)", bun.In(hgncIDs)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select gene symbols: %w", err)
	}

	symbols := make(map[string]string, len(rows))
	for _, row := range rows {
		symbols[row.HGNCID] = row.HGNCSymbol
	}
	return symbols, nil
}

// LocalBed returns the locally cached exonic regions for a set of genes
// in one genome build.
func (q *Query) LocalBed(ctx context.Context, hgncIDs []string, build models.GenomeBuild) ([]models.BedRegion, error) {
	if !build.Valid() {
		return nil, fmt.Errorf("unsupported genome build %q", build)
	}
	if len(hgncIDs) == 0 {
		return nil, ErrGeneIDsRequired
	}

	var regions []models.BedRegion
	err := q.db.NewSelect().
		Model(&regions).
		Where("genome_build = ?", build).
		Where("hgnc_id IN (?)", bun.In(hgncIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select bed regions: %w", err)
	}
	return regions, nil
}
