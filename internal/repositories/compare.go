package repositories

import "github.com/panelhub/paneltrack/internal/models"

// ConfidenceChange records a gene whose rating differs between two panel
// versions.
type ConfidenceChange struct {
	Old models.Confidence `json:"old_confidence"`
	New models.Confidence `json:"new_confidence"`
}

// Diff is the set-difference between two versions of a panel's gene
// content. A gene present in both versions with an unchanged rating
// appears in none of the three sets.
type Diff struct {
	Added   models.GeneSet              `json:"added"`
	Removed models.GeneSet              `json:"removed"`
	Changed map[string]ConfidenceChange `json:"confidence_changed"`
}

// Empty reports whether the two versions have identical gene content.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// ComparePanelVersions partitions the genes of two versions into added,
// removed and confidence-changed sets. It is total: empty, disjoint and
// identical inputs are all well defined, and a gene is only ever
// "changed" when both versions know it and disagree on its rating.
func ComparePanelVersions(old, new models.GeneSet) Diff {
	diff := Diff{
		Added:   make(models.GeneSet),
		Removed: make(models.GeneSet),
		Changed: make(map[string]ConfidenceChange),
	}

	for gene, conf := range new {
		oldConf, known := old[gene]
		switch {
		case !known:
			diff.Added[gene] = conf
		case oldConf != conf:
			diff.Changed[gene] = ConfidenceChange{Old: oldConf, New: conf}
		}
	}

	for gene, conf := range old {
		if _, known := new[gene]; !known {
			diff.Removed[gene] = conf
		}
	}

	return diff
}
