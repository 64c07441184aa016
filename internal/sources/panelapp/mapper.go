package panelapp

import (
	"regexp"
	"strconv"

	"github.com/panelhub/paneltrack/internal/models"
)

var rcodeShape = regexp.MustCompile(`^[rR]\d+(\.\d+)?$`)

// Rcode returns the panel's first R-code-shaped relevant disorder, or
// the empty string when the panel has no disease code.
func (p PanelSummary) Rcode() string {
	for _, d := range p.RelevantDisorders {
		if rcodeShape.MatchString(d) {
			return d
		}
	}
	return ""
}

// GeneSetFromEntries flattens registry gene entries into the
// gene-to-confidence mapping the comparison algorithm works on. Entries
// without an HGNC ID are dropped; an unparseable confidence maps to 0.
func GeneSetFromEntries(entries []GeneEntry) models.GeneSet {
	set := make(models.GeneSet, len(entries))
	for _, e := range entries {
		if e.GeneData.HGNCID == "" {
			continue
		}
		conf, err := strconv.Atoi(e.ConfidenceLevel)
		if err != nil {
			conf = 0
		}
		set[e.GeneData.HGNCID] = models.Confidence(conf)
	}
	return set
}

// GeneSetFromPayload extracts the gene-to-confidence mapping from a raw
// versioned panel document.
func GeneSetFromPayload(payload *PanelPayload) models.GeneSet {
	if payload == nil {
		return models.GeneSet{}
	}
	return GeneSetFromEntries(payload.Genes)
}
