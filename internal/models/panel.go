package models

import (
	"errors"

	"github.com/uptrace/bun"
)

// Panel is the locally stored snapshot of a registry panel: the version we
// currently believe to be the latest signed-off one for its R code.
type Panel struct {
	bun.BaseModel `bun:"table:panels,alias:p"`

	PanelID int     `bun:"panel_id,pk" json:"panel_id"`
	Rcode   string  `bun:"rcode,notnull" json:"rcode"`
	Version float64 `bun:"version,notnull" json:"version"`
}

// Validate checks that required panel fields are present.
func (p *Panel) Validate() error {
	if p.PanelID <= 0 {
		return errors.New("panel ID must be positive")
	}
	if p.Rcode == "" {
		return errors.New("rcode is required")
	}
	if p.Version <= 0 {
		return errors.New("version must be positive")
	}
	return nil
}

// PanelGene is one row of a panel's current gene membership. The whole set
// for a panel is replaced wholesale on every version change, never patched.
type PanelGene struct {
	bun.BaseModel `bun:"table:panel_genes,alias:pg"`

	PanelID    int        `bun:"panel_id,pk" json:"panel_id"`
	HGNCID     string     `bun:"hgnc_id,pk" json:"hgnc_id"`
	Confidence Confidence `bun:"confidence,notnull" json:"confidence"`
}

// PanelGeneArchive preserves a panel's membership at a superseded version.
// Rows are append-only; the (panel, gene, version) triple is unique so
// re-archiving the same version is a no-op.
type PanelGeneArchive struct {
	bun.BaseModel `bun:"table:panel_genes_archive,alias:pga"`

	PanelID    int        `bun:"panel_id,pk" json:"panel_id"`
	HGNCID     string     `bun:"hgnc_id,pk" json:"hgnc_id"`
	Version    float64    `bun:"version,pk" json:"version"`
	Confidence Confidence `bun:"confidence,notnull" json:"confidence"`
}
