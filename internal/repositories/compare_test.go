package repositories

import (
	"testing"

	"github.com/panelhub/paneltrack/internal/models"
)

func TestComparePanelVersions(t *testing.T) {
	tests := []struct {
		name        string
		old, new    models.GeneSet
		wantAdded   models.GeneSet
		wantRemoved models.GeneSet
		wantChanged map[string]ConfidenceChange
	}{
		{
			name:        "both empty",
			old:         models.GeneSet{},
			new:         models.GeneSet{},
			wantAdded:   models.GeneSet{},
			wantRemoved: models.GeneSet{},
			wantChanged: map[string]ConfidenceChange{},
		},
		{
			name:        "identical",
			old:         models.GeneSet{"HGNC:1": 3, "HGNC:2": 2},
			new:         models.GeneSet{"HGNC:1": 3, "HGNC:2": 2},
			wantAdded:   models.GeneSet{},
			wantRemoved: models.GeneSet{},
			wantChanged: map[string]ConfidenceChange{},
		},
		{
			name:        "fully disjoint",
			old:         models.GeneSet{"HGNC:1": 3},
			new:         models.GeneSet{"HGNC:9": 1},
			wantAdded:   models.GeneSet{"HGNC:9": 1},
			wantRemoved: models.GeneSet{"HGNC:1": 3},
			wantChanged: map[string]ConfidenceChange{},
		},
		{
			name:        "empty old",
			old:         models.GeneSet{},
			new:         models.GeneSet{"HGNC:1": 3},
			wantAdded:   models.GeneSet{"HGNC:1": 3},
			wantRemoved: models.GeneSet{},
			wantChanged: map[string]ConfidenceChange{},
		},
		{
			name:        "empty new",
			old:         models.GeneSet{"HGNC:1": 3},
			new:         models.GeneSet{},
			wantAdded:   models.GeneSet{},
			wantRemoved: models.GeneSet{"HGNC:1": 3},
			wantChanged: map[string]ConfidenceChange{},
		},
		{
			name:        "confidence change only",
			old:         models.GeneSet{"HGNC:1": 2},
			new:         models.GeneSet{"HGNC:1": 3},
			wantAdded:   models.GeneSet{},
			wantRemoved: models.GeneSet{},
			wantChanged: map[string]ConfidenceChange{"HGNC:1": {Old: 2, New: 3}},
		},
		{
			name:        "mixed",
			old:         models.GeneSet{"HGNC:1": 3, "HGNC:2": 2},
			new:         models.GeneSet{"HGNC:1": 3, "HGNC:3": 3},
			wantAdded:   models.GeneSet{"HGNC:3": 3},
			wantRemoved: models.GeneSet{"HGNC:2": 2},
			wantChanged: map[string]ConfidenceChange{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := ComparePanelVersions(tt.old, tt.new)

			if len(diff.Added) != len(tt.wantAdded) {
				t.Fatalf("added: want %v, got %v", tt.wantAdded, diff.Added)
			}
			for g, c := range tt.wantAdded {
				if diff.Added[g] != c {
					t.Fatalf("added[%s]: want %v, got %v", g, c, diff.Added[g])
				}
			}
			if len(diff.Removed) != len(tt.wantRemoved) {
				t.Fatalf("removed: want %v, got %v", tt.wantRemoved, diff.Removed)
			}
			for g, c := range tt.wantRemoved {
				if diff.Removed[g] != c {
					t.Fatalf("removed[%s]: want %v, got %v", g, c, diff.Removed[g])
				}
			}
			if len(diff.Changed) != len(tt.wantChanged) {
				t.Fatalf("changed: want %v, got %v", tt.wantChanged, diff.Changed)
			}
			for g, c := range tt.wantChanged {
				if diff.Changed[g] != c {
					t.Fatalf("changed[%s]: want %v, got %v", g, c, diff.Changed[g])
				}
			}
		})
	}
}

// Every gene in the union of old and new keys lands in exactly one of
// the four classes: added, removed, changed, unchanged.
func TestComparePartitionsUnion(t *testing.T) {
	old := models.GeneSet{"HGNC:1": 3, "HGNC:2": 2, "HGNC:4": 1, "HGNC:5": 0}
	new := models.GeneSet{"HGNC:1": 3, "HGNC:2": 3, "HGNC:6": 2, "HGNC:5": 0}

	diff := ComparePanelVersions(old, new)

	union := make(map[string]struct{})
	for g := range old {
		union[g] = struct{}{}
	}
	for g := range new {
		union[g] = struct{}{}
	}

	for g := range union {
		classes := 0
		if _, ok := diff.Added[g]; ok {
			classes++
		}
		if _, ok := diff.Removed[g]; ok {
			classes++
		}
		if _, ok := diff.Changed[g]; ok {
			classes++
		}
		_, inOld := old[g]
		_, inNew := new[g]
		unchanged := inOld && inNew && old[g] == new[g]
		if unchanged {
			classes++
		}
		if classes != 1 {
			t.Fatalf("gene %s classified %d times", g, classes)
		}
	}
}

func TestDiffEmpty(t *testing.T) {
	if !(Diff{Added: models.GeneSet{}, Removed: models.GeneSet{}, Changed: map[string]ConfidenceChange{}}).Empty() {
		t.Fatalf("expected empty diff")
	}
	if (Diff{Added: models.GeneSet{"HGNC:1": 3}}).Empty() {
		t.Fatalf("expected non-empty diff")
	}
}
