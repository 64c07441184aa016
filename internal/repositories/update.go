package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/panelhub/paneltrack/internal/models"
	"github.com/panelhub/paneltrack/internal/sources/panelapp"
)

// Registry is the narrow contract the write paths need from the upstream
// panel registry.
type Registry interface {
	LatestSignedOffVersion(ctx context.Context, panelID int) (float64, error)
	GenesForRcode(ctx context.Context, rcode string) (models.GeneSet, error)
	PanelVersion(ctx context.Context, panelID int, version float64) (*panelapp.PanelPayload, error)
}

// Update keeps the stored panels synchronized with the registry and
// records patient tests.
type Update struct {
	db       *bun.DB
	registry Registry
	query    *Query
	log      zerolog.Logger
}

// NewUpdate creates the update component. The registry is injected so
// tests can substitute a fake without process-wide state.
func NewUpdate(db *bun.DB, registry Registry, logger zerolog.Logger) *Update {
	return &Update{
		db:       db,
		registry: registry,
		query:    NewQuery(db),
		log:      logger,
	}
}

// CheckPresence reports whether a patient already has a record for the
// current stored version of an R code. It is pure and repeatable; callers
// use it to avoid duplicate AddRecord calls for the same version.
func (u *Update) CheckPresence(ctx context.Context, patientID, rcode string) (float64, bool, error) {
	version, err := u.query.LatestVersion(ctx, rcode)
	if err != nil {
		return 0, false, err
	}

	exists, err := u.db.NewSelect().
		Model((*models.PatientRecord)(nil)).
		Where("patient_id = ? AND rcode = ? AND version = ?", patientID, rcode, version).
		Exists(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("check patient presence: %w", err)
	}
	return version, exists, nil
}

// AddRecord inserts one patient test record dated today, at the current
// stored version of the R code. It does not guard against duplicates;
// callers must consult CheckPresence first.
func (u *Update) AddRecord(ctx context.Context, patientID, rcode string) (*models.PatientRecord, error) {
	version, err := u.query.LatestVersion(ctx, rcode)
	if err != nil {
		return nil, err
	}
	panelID, err := u.query.RcodeToPanelID(ctx, rcode)
	if err != nil {
		return nil, err
	}

	record := &models.PatientRecord{
		PatientID: patientID,
		PanelID:   panelID,
		Rcode:     rcode,
		Version:   version,
		Date:      time.Now().UTC().Truncate(24 * time.Hour),
	}
	if _, err := u.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert patient record: %w", err)
	}

	u.log.Info().
		Str("patient_id", patientID).
		Str("rcode", rcode).
		Float64("version", version).
		Msg("patient record added")
	return record, nil
}

// UpdatePanelVersion sets the stored version of a panel in place. A zero
// row count is reported as ErrNoPanelRow so the caller can react instead
// of silently proceeding.
func (u *Update) UpdatePanelVersion(ctx context.Context, rcode string, version float64, panelID int) error {
	return updatePanelVersion(ctx, u.db, rcode, version, panelID)
}

func updatePanelVersion(ctx context.Context, db bun.IDB, rcode string, version float64, panelID int) error {
	res, err := db.NewUpdate().
		Model((*models.Panel)(nil)).
		Set("version = ?", version).
		Where("panel_id = ? AND rcode = ?", panelID, rcode).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update panel version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update panel version: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w for panel %d rcode %s", ErrNoPanelRow, panelID, rcode)
	}
	return nil
}

// ArchivePanelContents copies a panel's current gene membership into the
// archive, tagged with the version being superseded. Triples already
// archived are skipped, so retries are no-ops.
func (u *Update) ArchivePanelContents(ctx context.Context, panelID int, supersededVersion float64) error {
	return archivePanelContents(ctx, u.db, panelID, supersededVersion)
}

func archivePanelContents(ctx context.Context, db bun.IDB, panelID int, supersededVersion float64) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO panel_genes_archive (panel_id, hgnc_id, version, confidence)
		SELECT panel_id, hgnc_id, ?, confidence
		FROM panel_genes
		WHERE panel_id = ?
	`, supersededVersion, panelID)
	if err != nil {
		return fmt.Errorf("archive panel contents: %w", err)
	}
	return nil
}

// replaceGeneContents swaps a panel's entire gene membership for the
// supplied set. Runs inside the caller's transaction so readers never
// observe the panel empty.
func replaceGeneContents(ctx context.Context, db bun.IDB, panelID int, genes models.GeneSet) error {
	if _, err := db.NewDelete().
		Model((*models.PanelGene)(nil)).
		Where("panel_id = ?", panelID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete panel genes: %w", err)
	}

	if len(genes) == 0 {
		return nil
	}

	rows := make([]models.PanelGene, 0, len(genes))
	for hgnc, conf := range genes {
		rows = append(rows, models.PanelGene{PanelID: panelID, HGNCID: hgnc, Confidence: conf})
	}
	if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert panel genes: %w", err)
	}
	return nil
}

// UpdateGeneContents fetches the registry's current gene mapping for an
// R code and replaces the panel's stored membership with it wholesale,
// inside one transaction.
func (u *Update) UpdateGeneContents(ctx context.Context, rcode string, panelID int) (models.GeneSet, error) {
	genes, err := u.registry.GenesForRcode(ctx, rcode)
	if err != nil {
		return nil, fmt.Errorf("fetch registry genes: %w", err)
	}

	err = u.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return replaceGeneContents(ctx, tx, panelID, genes)
	})
	if err != nil {
		return nil, err
	}
	return genes, nil
}

// ReconcileResult describes the outcome of one reconciliation pass.
type ReconcileResult struct {
	Rcode               string  `json:"rcode"`
	PanelID             int     `json:"panel_id"`
	Version             float64 `json:"version"`
	PreviousVersion     float64 `json:"previous_version"`
	Updated             bool    `json:"updated"`
	RegistryUnavailable bool    `json:"registry_unavailable"`
}

// Reconcile brings the stored panel for an R code in sync with the
// registry's latest signed-off version. Registry unreachability is not an
// error: the result is flagged so the caller can attach a staleness
// disclaimer and proceed with stored data. All registry fetching happens
// before the write transaction opens; the staleness check is repeated
// inside the transaction so two concurrent reconciliations cannot both
// apply.
func (u *Update) Reconcile(ctx context.Context, rcode string) (*ReconcileResult, error) {
	storedVersion, err := u.query.LatestVersion(ctx, rcode)
	if err != nil {
		return nil, err
	}
	panelID, err := u.query.RcodeToPanelID(ctx, rcode)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		Rcode:           rcode,
		PanelID:         panelID,
		Version:         storedVersion,
		PreviousVersion: storedVersion,
	}

	registryVersion, err := u.registry.LatestSignedOffVersion(ctx, panelID)
	if err != nil {
		u.log.Warn().Err(err).
			Str("rcode", rcode).
			Int("panel_id", panelID).
			Msg("registry unreachable, serving stored data")
		result.RegistryUnavailable = true
		return result, nil
	}

	if registryVersion == storedVersion {
		return result, nil
	}

	// Stale. Fetch the fresh membership before opening the write
	// transaction so no network I/O happens while the lock is held.
	genes, err := u.registry.GenesForRcode(ctx, rcode)
	if err != nil {
		u.log.Warn().Err(err).
			Str("rcode", rcode).
			Msg("registry gene fetch failed, serving stored data")
		result.RegistryUnavailable = true
		return result, nil
	}

	err = u.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Re-validate staleness: a concurrent reconciliation may have
		// completed between the initial read and this transaction.
		current, err := NewQuery(tx).LatestVersion(ctx, rcode)
		if err != nil {
			return err
		}
		if current == registryVersion {
			result.Version = current
			return nil
		}

		if err := archivePanelContents(ctx, tx, panelID, current); err != nil {
			return err
		}
		if err := updatePanelVersion(ctx, tx, rcode, registryVersion, panelID); err != nil {
			return err
		}
		if err := replaceGeneContents(ctx, tx, panelID, genes); err != nil {
			return err
		}

		result.PreviousVersion = current
		result.Version = registryVersion
		result.Updated = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", rcode, err)
	}

	if result.Updated {
		u.log.Info().
			Str("rcode", rcode).
			Int("panel_id", panelID).
			Float64("from", result.PreviousVersion).
			Float64("to", result.Version).
			Msg("panel reconciled")
	}
	return result, nil
}
