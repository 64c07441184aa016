package models

// Confidence is the registry's traffic-light evidence rating for a gene's
// membership in a panel.
type Confidence int

const (
	ConfidenceNone  Confidence = 0
	ConfidenceRed   Confidence = 1
	ConfidenceAmber Confidence = 2
	ConfidenceGreen Confidence = 3
)

// IsGreen reports whether the gene carries the highest evidence rating.
func (c Confidence) IsGreen() bool {
	return c == ConfidenceGreen
}

// Valid reports whether the rating is within the registry's 0-3 range.
func (c Confidence) Valid() bool {
	return c >= ConfidenceNone && c <= ConfidenceGreen
}

func (c Confidence) String() string {
	switch c {
	case ConfidenceGreen:
		return "green"
	case ConfidenceAmber:
		return "amber"
	case ConfidenceRed:
		return "red"
	default:
		return "none"
	}
}

// GenomeBuild identifies a human reference assembly.
type GenomeBuild string

const (
	BuildGRCh37 GenomeBuild = "GRCh37"
	BuildGRCh38 GenomeBuild = "GRCh38"
)

// Valid reports whether the build is one of the two supported assemblies.
func (b GenomeBuild) Valid() bool {
	return b == BuildGRCh37 || b == BuildGRCh38
}

// GeneSet maps HGNC IDs to the confidence the panel assigns them. It is the
// unit of comparison between two panel versions.
type GeneSet map[string]Confidence
