package models

import (
	"errors"

	"github.com/uptrace/bun"
)

// GeneInfo is static reference data for a gene: its identifiers and its
// span in both supported genome builds. Populated by an ingestion step,
// read-only to the service.
type GeneInfo struct {
	bun.BaseModel `bun:"table:gene_info,alias:g"`

	HGNCID     string `bun:"hgnc_id,pk" json:"hgnc_id"`
	GeneSymbol string `bun:"gene_symbol,notnull" json:"gene_symbol"`
	HGNCSymbol string `bun:"hgnc_symbol,notnull" json:"hgnc_symbol"`

	GRCh37Chr   string `bun:"grch37_chr" json:"grch37_chr"`
	GRCh37Start int64  `bun:"grch37_start" json:"grch37_start"`
	GRCh37Stop  int64  `bun:"grch37_stop" json:"grch37_stop"`

	GRCh38Chr   string `bun:"grch38_chr" json:"grch38_chr"`
	GRCh38Start int64  `bun:"grch38_start" json:"grch38_start"`
	GRCh38Stop  int64  `bun:"grch38_stop" json:"grch38_stop"`
}

// Validate checks that identifier fields are present.
func (g *GeneInfo) Validate() error {
	if g.HGNCID == "" {
		return errors.New("HGNC ID is required")
	}
	if g.GeneSymbol == "" && g.HGNCSymbol == "" {
		return errors.New("at least one gene symbol is required")
	}
	return nil
}

// Span returns the chromosome and coordinates for the requested build.
func (g *GeneInfo) Span(build GenomeBuild) (chr string, start, stop int64) {
	if build == BuildGRCh37 {
		return g.GRCh37Chr, g.GRCh37Start, g.GRCh37Stop
	}
	return g.GRCh38Chr, g.GRCh38Start, g.GRCh38Stop
}
