// Package sync keeps the whole local panel store aligned with the
// registry's signed-off listing.
package sync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/panelhub/paneltrack/internal/metrics"
	"github.com/panelhub/paneltrack/internal/models"
	"github.com/panelhub/paneltrack/internal/repositories"
	"github.com/panelhub/paneltrack/internal/sources/panelapp"
)

// Lister enumerates the registry's signed-off panels. Satisfied by the
// panelapp client.
type Lister interface {
	SignedOffPanels(ctx context.Context) ([]panelapp.PanelSummary, error)
}

// Syncer walks the signed-off listing, reconciles every known panel and
// adopts panels not yet stored locally.
type Syncer struct {
	db       *bun.DB
	lister   Lister
	registry repositories.Registry
	log      zerolog.Logger
}

// New creates a Syncer.
func New(db *bun.DB, lister Lister, registry repositories.Registry, logger zerolog.Logger) *Syncer {
	return &Syncer{db: db, lister: lister, registry: registry, log: logger}
}

// Summary reports what one sync pass did.
type Summary struct {
	Seen     int
	Updated  int
	Inserted int
	Skipped  int
	Failed   int
}

// Run performs one full pass over the signed-off listing. Individual
// panel failures are logged and counted, never fatal; only a failure to
// list the registry aborts the pass.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	panels, err := s.lister.SignedOffPanels(ctx)
	if err != nil {
		metrics.RegistryErrorsTotal.WithLabelValues("panelapp").Inc()
		return nil, fmt.Errorf("list signed-off panels: %w", err)
	}

	update := repositories.NewUpdate(s.db, s.registry, s.log)
	query := repositories.NewQuery(s.db)
	summary := &Summary{Seen: len(panels)}

	for _, panel := range panels {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rcode := panel.Rcode()
		if rcode == "" {
			// Signed-off panels without a disease code are not orderable
			// tests and stay out of the store.
			summary.Skipped++
			metrics.SyncPanelsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		_, err := query.RcodeToPanelID(ctx, rcode)
		switch {
		case err == nil:
			result, err := update.Reconcile(ctx, rcode)
			if err != nil || result.RegistryUnavailable {
				s.log.Warn().Err(err).Str("rcode", rcode).Msg("sync reconcile failed")
				summary.Failed++
				metrics.SyncPanelsTotal.WithLabelValues("failed").Inc()
				continue
			}
			if result.Updated {
				summary.Updated++
				metrics.SyncPanelsTotal.WithLabelValues("updated").Inc()
			} else {
				metrics.SyncPanelsTotal.WithLabelValues("noop").Inc()
			}
		case repositories.IsNotFound(err):
			if err := s.adopt(ctx, panel, rcode); err != nil {
				s.log.Warn().Err(err).Str("rcode", rcode).Msg("sync adopt failed")
				summary.Failed++
				metrics.SyncPanelsTotal.WithLabelValues("failed").Inc()
				continue
			}
			summary.Inserted++
			metrics.SyncPanelsTotal.WithLabelValues("inserted").Inc()
		default:
			return summary, err
		}
	}

	s.log.Info().
		Int("seen", summary.Seen).
		Int("updated", summary.Updated).
		Int("inserted", summary.Inserted).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("sync pass complete")
	return summary, nil
}

// adopt stores a panel seen in the listing for the first time, with its
// current gene membership.
func (s *Syncer) adopt(ctx context.Context, panel panelapp.PanelSummary, rcode string) error {
	version, err := strconv.ParseFloat(panel.Version, 64)
	if err != nil {
		return fmt.Errorf("parse version %q: %w", panel.Version, err)
	}

	genes, err := s.registry.GenesForRcode(ctx, rcode)
	if err != nil {
		return fmt.Errorf("fetch genes: %w", err)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := &models.Panel{PanelID: panel.ID, Rcode: rcode, Version: version}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert panel: %w", err)
		}

		rows := make([]models.PanelGene, 0, len(genes))
		for hgnc, conf := range genes {
			rows = append(rows, models.PanelGene{PanelID: panel.ID, HGNCID: hgnc, Confidence: conf})
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert panel genes: %w", err)
		}
		return nil
	})
}

// RunEvery repeats Run on a fixed interval until the context ends. The
// first pass runs immediately.
func (s *Syncer) RunEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("sync pass failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
