package models

import (
	"errors"

	"github.com/uptrace/bun"
)

// BedRegion is a pre-resolved exonic interval for a gene in one genome
// build, used to serve BED downloads without calling the remote
// coordinate service.
type BedRegion struct {
	bun.BaseModel `bun:"table:bed_regions,alias:b"`

	ID         int64       `bun:"id,pk,autoincrement" json:"id"`
	Build      GenomeBuild `bun:"genome_build,notnull" json:"genome_build"`
	Chromosome string      `bun:"chromosome,notnull" json:"chromosome"`
	Start      int64       `bun:"start,notnull" json:"start"`
	End        int64       `bun:"end,notnull" json:"end"`
	Name       string      `bun:"name,notnull" json:"name"`
	HGNCID     string      `bun:"hgnc_id,notnull" json:"hgnc_id"`
	Transcript string      `bun:"transcript" json:"transcript"`
	Strand     string      `bun:"strand" json:"strand"`
	Type       string      `bun:"region_type" json:"type"`
}

// Validate checks interval sanity before insertion.
func (b *BedRegion) Validate() error {
	if !b.Build.Valid() {
		return errors.New("genome build must be GRCh37 or GRCh38")
	}
	if b.Chromosome == "" {
		return errors.New("chromosome is required")
	}
	if b.End < b.Start {
		return errors.New("end must not precede start")
	}
	if b.HGNCID == "" {
		return errors.New("HGNC ID is required")
	}
	return nil
}
