package repositories

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/panelhub/paneltrack/internal/sources/panelapp"
)

// Downgrade forcibly resets a panel to an earlier registry version. An
// administrative operation, separate from normal reconciliation: any
// partial application is a correctness violation, so the whole sequence
// commits or none of it does.
type Downgrade struct {
	db  *bun.DB
	log zerolog.Logger
}

// NewDowngrade creates the downgrade component.
func NewDowngrade(db *bun.DB, logger zerolog.Logger) *Downgrade {
	return &Downgrade{db: db, log: logger}
}

// DowngradeResult reports what a downgrade changed.
type DowngradeResult struct {
	PanelID         int     `json:"panel_id"`
	Rcode           string  `json:"rcode"`
	PreviousVersion float64 `json:"previous_version"`
	NewVersion      float64 `json:"new_version"`
	NoChange        bool    `json:"no_change,omitempty"`
	Message         string  `json:"message,omitempty"`
	Changes         *Diff   `json:"changes,omitempty"`
}

// Process applies a downgrade to the registry payload's version. The
// caller resolves the panel ID and fetches the versioned payload up
// front; Process extracts the gene set, diffs it against the stored
// membership with the shared comparison algorithm, and only rewrites the
// gene table when the diff is non-empty.
func (d *Downgrade) Process(ctx context.Context, rcode string, panelID int, version float64, payload *panelapp.PanelPayload) (*DowngradeResult, error) {
	if panelID <= 0 {
		return nil, ErrPanelIDRequired
	}
	if payload == nil || len(payload.Genes) == 0 {
		return nil, ErrNoRegistryRecords
	}

	result := &DowngradeResult{PanelID: panelID, Rcode: rcode, NewVersion: version}

	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := NewQuery(tx)

		current, err := query.LatestVersion(ctx, rcode)
		if err != nil {
			return err
		}
		result.PreviousVersion = current

		if current == version {
			result.NoChange = true
			result.Message = fmt.Sprintf("Panel %d is already at version %s.", panelID, formatVersion(version))
			return nil
		}

		if err := updatePanelVersion(ctx, tx, rcode, version, panelID); err != nil {
			return err
		}

		newGenes := panelapp.GeneSetFromPayload(payload)
		currentGenes, err := query.CurrentPanelContents(ctx, panelID)
		if err != nil {
			return err
		}

		diff := ComparePanelVersions(currentGenes, newGenes)
		if diff.Empty() {
			// Version row updated, gene table left untouched.
			result.NoChange = true
			result.Message = "No changes detected between versions."
			return nil
		}

		if err := replaceGeneContents(ctx, tx, panelID, newGenes); err != nil {
			return err
		}
		result.Changes = &diff
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("downgrade %s to %s: %w", rcode, formatVersion(version), err)
	}

	d.log.Info().
		Str("rcode", rcode).
		Int("panel_id", panelID).
		Float64("from", result.PreviousVersion).
		Float64("to", version).
		Bool("no_change", result.NoChange).
		Msg("panel downgraded")
	return result, nil
}

func formatVersion(v float64) string {
	return fmt.Sprintf("%g", v)
}
